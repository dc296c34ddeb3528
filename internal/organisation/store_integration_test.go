//go:build integration

package organisation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alecgard/orgbook/internal/testutil"
	"github.com/alecgard/orgbook/internal/user"
)

func TestIntegration_OrganisationStore(t *testing.T) {
	ctx := context.Background()
	pool := testutil.Postgres(t)
	users := user.NewStore(pool)
	store := NewStore(pool)
	svc := NewService(store, store, users)

	newUser := func(email string) *user.User {
		u, err := users.Create(ctx, user.CreateUserInput{
			FirstName: "Test",
			LastName:  "User",
			Email:     email,
			Password:  "pw",
		})
		require.NoError(t, err)
		return u
	}

	owner := newUser("owner@example.com")
	member := newUser("member@example.com")
	outsider := newUser("outsider@example.com")

	desc := "First org"
	first, err := svc.Create(ctx, owner.ID, CreateOrganisationInput{Name: "First", Description: &desc})
	require.NoError(t, err)
	require.Equal(t, owner.ID, first.CreatedBy)
	require.Equal(t, desc, *first.Description)

	second, err := svc.Create(ctx, owner.ID, CreateOrganisationInput{Name: "Second"})
	require.NoError(t, err)
	require.Nil(t, second.Description)

	t.Run("creator is a member", func(t *testing.T) {
		ok, err := store.IsMember(ctx, owner.ID, first.ID)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("list in membership order", func(t *testing.T) {
		orgs, err := svc.List(ctx, owner.ID)
		require.NoError(t, err)
		require.Len(t, orgs, 2)
		require.Equal(t, first.ID, orgs[0].ID)
		require.Equal(t, second.ID, orgs[1].ID)

		orgs, err = svc.List(ctx, outsider.ID)
		require.NoError(t, err)
		require.Empty(t, orgs)
	})

	t.Run("add member is idempotent", func(t *testing.T) {
		added, err := svc.AddMember(ctx, owner.ID, second.ID, member.ID)
		require.NoError(t, err)
		require.True(t, added)

		added, err = svc.AddMember(ctx, owner.ID, second.ID, member.ID)
		require.NoError(t, err)
		require.False(t, added)

		orgs, err := svc.List(ctx, member.ID)
		require.NoError(t, err)
		require.Len(t, orgs, 1)
		require.Equal(t, second.ID, orgs[0].ID)
	})

	t.Run("visibility", func(t *testing.T) {
		_, err := svc.Get(ctx, outsider.ID, first.ID)
		require.True(t, errors.Is(err, ErrNotFound))

		_, err = svc.Get(ctx, owner.ID, "4b1c0d9e-0000-4000-8000-000000000000")
		require.True(t, errors.Is(err, ErrNotFound))

		_, err = svc.Get(ctx, owner.ID, "not-a-uuid")
		require.True(t, errors.Is(err, ErrNotFound))

		shared, err := svc.CanView(ctx, member.ID, owner.ID)
		require.NoError(t, err)
		require.True(t, shared)

		shared, err = svc.CanView(ctx, outsider.ID, owner.ID)
		require.NoError(t, err)
		require.False(t, shared)
	})

	t.Run("add to missing org", func(t *testing.T) {
		_, err := svc.AddMember(ctx, owner.ID, "4b1c0d9e-0000-4000-8000-000000000000", member.ID)
		require.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("store maps foreign key violations", func(t *testing.T) {
		_, err := store.Add(ctx, "4b1c0d9e-0000-4000-8000-000000000001", first.ID)
		require.True(t, errors.Is(err, ErrUserNotFound), "got %v", err)

		_, err = store.Add(ctx, member.ID, "4b1c0d9e-0000-4000-8000-000000000001")
		require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	})
}
