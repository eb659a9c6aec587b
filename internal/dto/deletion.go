package dto

// CreateDeletionRequest submits a GDPR-style removal request. TargetID
// is a contract id for type contract and a user id otherwise.
type CreateDeletionRequest struct {
	RequestType string `json:"request_type" validate:"required,oneof=user_data contract all_data"`
	TargetID    string `json:"target_id" validate:"required"`
}
