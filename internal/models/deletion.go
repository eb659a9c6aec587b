package models

import "time"

// DeletionRequestType enumerates supported deletion request kinds.
type DeletionRequestType string

const (
	DeletionTypeUserData DeletionRequestType = "user_data"
	DeletionTypeContract DeletionRequestType = "contract"
	DeletionTypeAllData  DeletionRequestType = "all_data"
)

// Valid reports whether the request type is known.
func (t DeletionRequestType) Valid() bool {
	switch t {
	case DeletionTypeUserData, DeletionTypeContract, DeletionTypeAllData:
		return true
	}
	return false
}

// DeletionStatus enumerates request processing states. A request stuck in
// processing signals a partial failure requiring manual follow-up.
type DeletionStatus string

const (
	DeletionStatusPending    DeletionStatus = "pending"
	DeletionStatusProcessing DeletionStatus = "processing"
	DeletionStatusCompleted  DeletionStatus = "completed"
	DeletionStatusRejected   DeletionStatus = "rejected"
)

// DeletionRequest is a GDPR-style removal request spanning live and
// archived data.
type DeletionRequest struct {
	ID          string              `db:"id" json:"id"`
	TenantID    *string             `db:"tenant_id" json:"tenant_id,omitempty"`
	RequestedBy string              `db:"requested_by" json:"requested_by"`
	RequestType DeletionRequestType `db:"request_type" json:"request_type"`
	TargetID    string              `db:"target_id" json:"target_id"`
	Status      DeletionStatus      `db:"status" json:"status"`
	Note        *string             `db:"note" json:"note,omitempty"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time          `db:"processed_at" json:"processed_at,omitempty"`
	ProcessedBy *string             `db:"processed_by" json:"processed_by,omitempty"`
}

// DeletionFilter narrows deletion request listing queries.
type DeletionFilter struct {
	Scope  Scope
	Status DeletionStatus
	Type   DeletionRequestType
	Limit  int
	Offset int
}
