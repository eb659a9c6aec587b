package dto

// ResolveDuplicateRequest records a review decision on a flagged pair.
// CanonicalID is required for merge and names the surviving contract.
type ResolveDuplicateRequest struct {
	Decision    string `json:"decision" validate:"required,oneof=merge dismiss"`
	CanonicalID string `json:"canonical_id"`
}
