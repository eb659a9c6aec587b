package models

import "time"

// ContractMetrics is the daily rollup row for one tenant scope. Rows are
// recomputed wholesale and upserted on (tenant_id, date).
type ContractMetrics struct {
	ID                 string    `db:"id" json:"id"`
	TenantID           *string   `db:"tenant_id" json:"tenant_id,omitempty"`
	Date               time.Time `db:"metric_date" json:"date"`
	TotalContracts     int       `db:"total_contracts" json:"total_contracts"`
	StatusDistribution []byte    `db:"status_distribution" json:"status_distribution,omitempty"`
	CompletionRate     float64   `db:"completion_rate" json:"completion_rate"`
	NewContractsToday  int       `db:"new_contracts_today" json:"new_contracts_today"`
	CompletedToday     int       `db:"completed_today" json:"completed_today"`
	Stale              bool      `db:"stale" json:"stale"`
	ComputedAt         time.Time `db:"computed_at" json:"computed_at"`
}

// StatusCounts is the decoded shape of StatusDistribution.
type StatusCounts struct {
	Offen   int `json:"offen"`
	InBearb int `json:"inbearb"`
	Fertig  int `json:"fertig"`
}

// SystemMetrics is a lightweight process health snapshot for the ops
// endpoint; the full series lives in the Prometheus registry.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	WorkflowTransitions      uint64    `json:"workflow_transitions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
