package organisation

import "time"

// Organisation is a named group of users.
type Organisation struct {
	ID          string    `json:"orgId"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedBy   string    `json:"-"`
	CreatedAt   time.Time `json:"-"`
}

// CreateOrganisationInput is the payload for creating an organisation.
type CreateOrganisationInput struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}
