package models

import "time"

// Archive reasons recorded on ContractArchive rows.
const (
	ArchiveReasonRetention   = "retention_policy"
	ArchiveReasonManual      = "manual"
	ArchiveReasonDataRequest = "data_request"
	ArchiveReasonMerge       = "duplicate_merge"
)

// ContractArchive is a write-once snapshot of a removed contract and its
// history, kept until retention expiry.
type ContractArchive struct {
	ID             string    `db:"id" json:"id"`
	OriginalID     string    `db:"original_id" json:"original_id"`
	TenantID       *string   `db:"tenant_id" json:"tenant_id,omitempty"`
	ContractData   []byte    `db:"contract_data" json:"contract_data"`
	HistoryData    []byte    `db:"history_data" json:"history_data"`
	ArchivedBy     *string   `db:"archived_by" json:"archived_by,omitempty"`
	ArchivedAt     time.Time `db:"archived_at" json:"archived_at"`
	RetentionUntil time.Time `db:"retention_until" json:"retention_until"`
	Reason         string    `db:"reason" json:"reason"`
}

// ArchiveReport summarises one archiveAged batch run.
type ArchiveReport struct {
	Candidates int       `json:"candidates"`
	Archived   int       `json:"archived"`
	Failed     int       `json:"failed"`
	FailedIDs  []string  `json:"failed_ids,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Cancelled  bool      `json:"cancelled"`
}

// ArchiveFilter narrows archive listing queries.
type ArchiveFilter struct {
	Scope      Scope
	OriginalID string
	Reason     string
	Limit      int
	Offset     int
}
