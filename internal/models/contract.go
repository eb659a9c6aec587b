package models

import "time"

// ContractStatus enumerates the lifecycle states of a contract.
type ContractStatus string

const (
	ContractStatusOffen   ContractStatus = "offen"
	ContractStatusInBearb ContractStatus = "inbearb"
	ContractStatusFertig  ContractStatus = "fertig"
)

// NextStatus returns the immediate successor in the forward-only graph,
// or empty when the status is terminal or unknown.
func (s ContractStatus) NextStatus() ContractStatus {
	switch s {
	case ContractStatusOffen:
		return ContractStatusInBearb
	case ContractStatusInBearb:
		return ContractStatusFertig
	}
	return ""
}

// Valid reports whether the status is one of the known states.
func (s ContractStatus) Valid() bool {
	switch s {
	case ContractStatusOffen, ContractStatusInBearb, ContractStatusFertig:
		return true
	}
	return false
}

// ApprovalStatus enumerates approval outcomes.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// Contract is the primary workflow entity.
type Contract struct {
	ID             string         `db:"id" json:"id"`
	TenantID       *string        `db:"tenant_id" json:"tenant_id,omitempty"`
	Auftrag        string         `db:"auftrag" json:"auftrag"`
	Titel          string         `db:"titel" json:"titel"`
	Standort       string         `db:"standort" json:"standort"`
	GeraetNr       string         `db:"geraet_nr" json:"geraet_nr"`
	Beschreibung   *string        `db:"beschreibung" json:"beschreibung,omitempty"`
	Status         ContractStatus `db:"status" json:"status"`
	ApprovalStatus ApprovalStatus `db:"approval_status" json:"approval_status"`
	AssignedTo     *string        `db:"assigned_to" json:"assigned_to,omitempty"`
	ApproverID     *string        `db:"approver_id" json:"approver_id,omitempty"`
	ApprovalDate   *time.Time     `db:"approval_date" json:"approval_date,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Fields flattens the mutable business fields for rule evaluation and
// history diffing. Keys match validation rule field names.
func (c *Contract) Fields() map[string]string {
	fields := map[string]string{
		"auftrag":   c.Auftrag,
		"titel":     c.Titel,
		"standort":  c.Standort,
		"geraet_nr": c.GeraetNr,
		"status":    string(c.Status),
	}
	if c.Beschreibung != nil {
		fields["beschreibung"] = *c.Beschreibung
	}
	if c.AssignedTo != nil {
		fields["assigned_to"] = *c.AssignedTo
	}
	return fields
}

// Scope returns the tenant scope this contract belongs to.
func (c *Contract) Scope() Scope {
	if c.TenantID != nil {
		return ForTenant(*c.TenantID)
	}
	return GlobalScope()
}

// ContractHistory is one append-only field change record.
type ContractHistory struct {
	ID         string    `db:"id" json:"id"`
	ContractID string    `db:"contract_id" json:"contract_id"`
	FieldName  string    `db:"field_name" json:"field_name"`
	OldValue   *string   `db:"old_value" json:"old_value,omitempty"`
	NewValue   *string   `db:"new_value" json:"new_value,omitempty"`
	ChangedBy  *string   `db:"changed_by" json:"changed_by,omitempty"`
	ChangedAt  time.Time `db:"changed_at" json:"changed_at"`
}

// ContractFilter narrows contract listing queries.
type ContractFilter struct {
	Scope      Scope
	Status     ContractStatus
	AssignedTo string
	Search     string
	Limit      int
	Offset     int
}
