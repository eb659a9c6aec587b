package models

import "time"

// DuplicateStatus enumerates resolution states of a duplicate pair.
type DuplicateStatus string

const (
	DuplicateStatusPending   DuplicateStatus = "pending"
	DuplicateStatusMerged    DuplicateStatus = "merged"
	DuplicateStatusDismissed DuplicateStatus = "dismissed"
)

// ContractDuplicate records one flagged near-duplicate pair. The pair is
// stored in canonical order (Contract1ID < Contract2ID) so that exactly
// one row can exist per unordered pair.
type ContractDuplicate struct {
	ID              string          `db:"id" json:"id"`
	Contract1ID     string          `db:"contract1_id" json:"contract1_id"`
	Contract2ID     string          `db:"contract2_id" json:"contract2_id"`
	SimilarityScore float64         `db:"similarity_score" json:"similarity_score"`
	Reasons         []byte          `db:"reasons" json:"reasons,omitempty"`
	Status          DuplicateStatus `db:"status" json:"status"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	ResolvedBy      *string         `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
}

// CanonicalPair orders two contract ids so the lower id comes first.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// DuplicateFilter narrows duplicate listing queries.
type DuplicateFilter struct {
	Scope    Scope
	Status   DuplicateStatus
	MinScore float64
	Limit    int
	Offset   int
}
