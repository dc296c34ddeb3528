package organisation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alecgard/orgbook/internal/validate"
)

var (
	// ErrNotFound is returned for organisations that do not exist and for
	// organisations the caller is not a member of.
	ErrNotFound = errors.New("organisation not found")
	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// OrganisationRepository persists organisations.
type OrganisationRepository interface {
	Create(ctx context.Context, creatorID string, in CreateOrganisationInput) (*Organisation, error)
	GetByID(ctx context.Context, orgID string) (*Organisation, error)
}

// MembershipRepository persists user/organisation memberships.
type MembershipRepository interface {
	Add(ctx context.Context, userID, orgID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]*Organisation, error)
	IsMember(ctx context.Context, userID, orgID string) (bool, error)
	SharesOrganisation(ctx context.Context, userA, userB string) (bool, error)
}

// UserLookup checks that a user exists.
type UserLookup interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// Service implements the organisation and membership operations.
type Service struct {
	orgs    OrganisationRepository
	members MembershipRepository
	users   UserLookup
}

// NewService creates a new organisation service.
func NewService(orgs OrganisationRepository, members MembershipRepository, users UserLookup) *Service {
	return &Service{orgs: orgs, members: members, users: users}
}

// List returns every organisation userID belongs to.
func (s *Service) List(ctx context.Context, userID string) ([]*Organisation, error) {
	orgs, err := s.members.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orgs == nil {
		orgs = []*Organisation{}
	}
	return orgs, nil
}

// Get returns the organisation if it exists and userID is a member of it.
// Both a missing organisation and one the user cannot see are ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, orgID string) (*Organisation, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	ok, err := s.members.IsMember(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return org, nil
}

// Create validates the input and creates an organisation with userID as its
// first member.
func (s *Service) Create(ctx context.Context, userID string, in CreateOrganisationInput) (*Organisation, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			in.Description = nil
		} else {
			in.Description = &d
		}
	}

	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	return s.orgs.Create(ctx, userID, in)
}

// AddMember adds targetUserID to orgID on behalf of requesterID. It reports
// whether a membership was created; repeating the call for an existing member
// succeeds without change. Any authenticated user may add members to any
// organisation, so requesterID is only recorded.
func (s *Service) AddMember(ctx context.Context, requesterID, orgID, targetUserID string) (bool, error) {
	targetUserID = strings.ToLower(strings.TrimSpace(targetUserID))
	if err := validate.Var("userId", targetUserID, "required,uuid"); err != nil {
		return false, err
	}

	exists, err := s.users.Exists(ctx, targetUserID)
	if err != nil {
		return false, fmt.Errorf("looking up user: %w", err)
	}
	if !exists {
		return false, userIDNotFound()
	}

	if _, err := s.orgs.GetByID(ctx, orgID); err != nil {
		return false, err
	}

	added, err := s.members.Add(ctx, targetUserID, orgID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, userIDNotFound()
		}
		return false, err
	}
	slog.DebugContext(ctx, "organisation member added",
		"org_id", orgID,
		"user_id", targetUserID,
		"requester_id", requesterID,
		"added", added,
	)
	return added, nil
}

// CanView reports whether viewerID may see the profile of userID: users can
// see themselves and anyone they share an organisation with.
func (s *Service) CanView(ctx context.Context, viewerID, userID string) (bool, error) {
	if viewerID == userID {
		return true, nil
	}
	return s.members.SharesOrganisation(ctx, viewerID, userID)
}

func userIDNotFound() error {
	return validate.Field("userId", "The selected userId is invalid.")
}
