package models

import "time"

// Scope identifies the tenant isolation boundary for an operation. The
// zero value is invalid; use GlobalScope or ForTenant.
type Scope struct {
	tenantID string
	valid    bool
}

// GlobalScope applies across all tenants (unscoped rules, system jobs).
func GlobalScope() Scope {
	return Scope{valid: true}
}

// ForTenant restricts an operation to a single tenant.
func ForTenant(tenantID string) Scope {
	return Scope{tenantID: tenantID, valid: true}
}

// IsGlobal reports whether the scope spans all tenants.
func (s Scope) IsGlobal() bool {
	return s.valid && s.tenantID == ""
}

// TenantID returns the tenant identifier and whether one is set.
func (s Scope) TenantID() (string, bool) {
	if !s.valid || s.tenantID == "" {
		return "", false
	}
	return s.tenantID, true
}

// Ref returns the nullable column value persisted for this scope.
func (s Scope) Ref() *string {
	if id, ok := s.TenantID(); ok {
		return &id
	}
	return nil
}

// Tenant represents a customer organisation owning scoped entities.
// Tenants are never hard-deleted, only deactivated.
type Tenant struct {
	ID            string     `db:"id" json:"id"`
	Name          string     `db:"name" json:"name"`
	Slug          string     `db:"slug" json:"slug"`
	Active        bool       `db:"active" json:"active"`
	Settings      []byte     `db:"settings" json:"settings,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	DeactivatedAt *time.Time `db:"deactivated_at" json:"deactivated_at,omitempty"`
}
