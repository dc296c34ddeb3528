package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alecgard/orgbook/internal/validate"
)

// maxPasswordBytes is the longest password bcrypt can hash.
const maxPasswordBytes = 72

// ErrAuthenticationFailed is returned by Login for an unknown email and for a
// wrong password alike.
var ErrAuthenticationFailed = errors.New("authentication failed")

// dummyHash is compared against when the email is unknown so that a failed
// login costs one bcrypt comparison whether or not the account exists.
var dummyHash = mustHash("orgbook-timing-equaliser")

func mustHash(s string) string {
	h, err := HashPassword(s)
	if err != nil {
		panic(err)
	}
	return h
}

// Repository is the persistence surface the service needs.
type Repository interface {
	Create(ctx context.Context, in CreateUserInput) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// TokenIssuer issues session tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// Service implements registration and login.
type Service struct {
	repo   Repository
	tokens TokenIssuer
}

// NewService creates a new user service.
func NewService(repo Repository, tokens TokenIssuer) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Register validates the payload, creates the account and signs the user in.
// Validation failures, including an email already in use, are reported as
// *validate.Error.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in = normalize(in)
	if err := validateRegister(in); err != nil {
		return nil, err
	}

	_, err := s.repo.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, emailTaken()
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("checking email: %w", err)
	}

	u, err := s.repo.Create(ctx, CreateUserInput{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  in.Password,
		Phone:     in.Phone,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, emailTaken()
		}
		return nil, fmt.Errorf("registering user: %w", err)
	}

	return s.signIn(u)
}

// Login checks credentials and returns a fresh token. Any credential mismatch
// is ErrAuthenticationFailed.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrAuthenticationFailed
	}

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			CheckPassword(&User{PasswordHash: dummyHash}, password)
			return nil, ErrAuthenticationFailed
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !CheckPassword(u, password) {
		return nil, ErrAuthenticationFailed
	}

	return s.signIn(u)
}

func (s *Service) signIn(u *User) (*AuthResult, error) {
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return &AuthResult{AccessToken: token, User: u}, nil
}

func normalize(in RegisterInput) RegisterInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	if in.Phone != nil {
		p := strings.TrimSpace(*in.Phone)
		if p == "" {
			in.Phone = nil
		} else {
			in.Phone = &p
		}
	}
	return in
}

func validateRegister(in RegisterInput) error {
	err := validate.Struct(in)
	if len(in.Password) <= maxPasswordBytes {
		return err
	}

	tooLong := fmt.Sprintf("The password field must not be greater than %d bytes.", maxPasswordBytes)
	if verr, ok := validate.As(err); ok {
		verr.Fields["password"] = tooLong
		return verr
	}
	if err != nil {
		return err
	}
	return validate.Field("password", tooLong)
}

func emailTaken() error {
	return validate.Field("email", "The email has already been taken.")
}
