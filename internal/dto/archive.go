package dto

// SweepRequest triggers a retention sweep. RetentionDays of zero falls
// back to the configured default.
type SweepRequest struct {
	TenantID      string `json:"tenant_id"`
	RetentionDays int    `json:"retention_days"`
}
