package user

import "time"

// User represents a registered user account.
type User struct {
	ID           string    `json:"userId"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        *string   `json:"phone"`
	CreatedAt    time.Time `json:"-"`
}

// CreateUserInput holds the fields required to create a new user. Password is
// the plaintext secret; the store hashes it.
type CreateUserInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     *string
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	FirstName string  `json:"firstName" validate:"required,max=255"`
	LastName  string  `json:"lastName" validate:"required,max=255"`
	Email     string  `json:"email" validate:"required,email,max=255"`
	Password  string  `json:"password" validate:"required"`
	Phone     *string `json:"phone" validate:"omitempty,max=50"`
}

// AuthResult is returned by a successful registration or login.
type AuthResult struct {
	AccessToken string `json:"accessToken"`
	User        *User  `json:"user"`
}
