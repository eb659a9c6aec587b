package models

import "time"

// WorkflowTransition is one append-only audit entry for an accepted
// status change.
type WorkflowTransition struct {
	ID           string          `db:"id" json:"id"`
	ContractID   string          `db:"contract_id" json:"contract_id"`
	FromStatus   *ContractStatus `db:"from_status" json:"from_status,omitempty"`
	ToStatus     ContractStatus  `db:"to_status" json:"to_status"`
	TransitionBy *string         `db:"transition_by" json:"transition_by,omitempty"`
	Reason       *string         `db:"reason" json:"reason,omitempty"`
	Metadata     []byte          `db:"metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// ContractApproval tracks a single approval round for a contract. At
// most one pending approval may exist per contract.
type ContractApproval struct {
	ID          string         `db:"id" json:"id"`
	ContractID  string         `db:"contract_id" json:"contract_id"`
	ApproverID  string         `db:"approver_id" json:"approver_id"`
	RequestedBy *string        `db:"requested_by" json:"requested_by,omitempty"`
	Status      ApprovalStatus `db:"status" json:"status"`
	Comments    *string        `db:"comments" json:"comments,omitempty"`
	RequestedAt time.Time      `db:"requested_at" json:"requested_at"`
	ActionDate  *time.Time     `db:"action_date" json:"action_date,omitempty"`
}

// SLAStatus enumerates SLA compliance states.
type SLAStatus string

const (
	SLAStatusPending  SLAStatus = "pending"
	SLAStatusMet      SLAStatus = "met"
	SLAStatusAtRisk   SLAStatus = "at_risk"
	SLAStatusBreached SLAStatus = "breached"
)

// ContractSLA tracks one timing or compliance target on a contract.
type ContractSLA struct {
	ID          string     `db:"id" json:"id"`
	ContractID  string     `db:"contract_id" json:"contract_id"`
	SLAType     string     `db:"sla_type" json:"sla_type"`
	TargetValue string     `db:"target_value" json:"target_value"`
	ActualValue *string    `db:"actual_value" json:"actual_value,omitempty"`
	Status      SLAStatus  `db:"status" json:"status"`
	DueDate     *time.Time `db:"due_date" json:"due_date,omitempty"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// TransitionFilter narrows transition log queries.
type TransitionFilter struct {
	ContractID string
	ToStatus   ContractStatus
	Since      *time.Time
	Limit      int
	Offset     int
}
