package dto

import "encoding/json"

// CreateTenantRequest onboards a tenant.
type CreateTenantRequest struct {
	Name     string          `json:"name" validate:"required"`
	Slug     string          `json:"slug" validate:"required"`
	Settings json.RawMessage `json:"settings,omitempty"`
}

// UpdateTenantSettingsRequest replaces the opaque settings document.
type UpdateTenantSettingsRequest struct {
	Settings json.RawMessage `json:"settings" validate:"required"`
}
