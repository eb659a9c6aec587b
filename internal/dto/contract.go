package dto

// CreateContractRequest is the payload for registering a new contract.
type CreateContractRequest struct {
	Auftrag      string `json:"auftrag" validate:"required"`
	Titel        string `json:"titel" validate:"required"`
	Standort     string `json:"standort"`
	GeraetNr     string `json:"geraet_nr"`
	Beschreibung string `json:"beschreibung"`
	AssignedTo   string `json:"assigned_to"`
}

// UpdateContractRequest carries a partial field update. Nil fields are
// left untouched; status is never updated here.
type UpdateContractRequest struct {
	Auftrag      *string `json:"auftrag,omitempty"`
	Titel        *string `json:"titel,omitempty"`
	Standort     *string `json:"standort,omitempty"`
	GeraetNr     *string `json:"geraet_nr,omitempty"`
	Beschreibung *string `json:"beschreibung,omitempty"`
	AssignedTo   *string `json:"assigned_to,omitempty"`
}
