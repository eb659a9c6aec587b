package dto

import (
	"encoding/json"
	"time"
)

// TransitionRequest asks the workflow engine to move a contract to a
// new status. Override permits skipping or reversing the forward-only
// graph and then requires a reason.
type TransitionRequest struct {
	ToStatus string          `json:"to_status" validate:"required"`
	Reason   string          `json:"reason"`
	Override bool            `json:"override"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// RequestApprovalRequest opens an approval round on a contract.
type RequestApprovalRequest struct {
	ApproverID string `json:"approver_id" validate:"required"`
	Comments   string `json:"comments"`
}

// ResolveApprovalRequest records an approve or reject decision.
type ResolveApprovalRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Comments string `json:"comments"`
}

// CreateSLARequest attaches a timing target to a contract.
type CreateSLARequest struct {
	SLAType     string     `json:"sla_type" validate:"required"`
	TargetValue string     `json:"target_value" validate:"required"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}
