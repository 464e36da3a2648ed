package dto

type CreateAllowlistRequest struct {
	Email  string  `json:"email"`
	Status string  `json:"status,omitempty"`
	Label  *string `json:"label,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

type UpdateAllowlistRequest struct {
	Status *string `json:"status,omitempty"`
	Label  *string `json:"label,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

type ImportAllowlistRequest struct {
	CSV  string `json:"csv"`
	Mode string `json:"mode,omitempty"`
}
