package access

import (
	"context"
	"errors"
	"testing"

	"github.com/chepyr/team-kanban/shared/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memberKey struct{ user, team uuid.UUID }

type fakeMemberships struct {
	rows  map[memberKey]string
	calls int
	err   error
}

func (f *fakeMemberships) FindMembership(_ context.Context, userID, teamID uuid.UUID) (models.Membership, bool, error) {
	f.calls++
	if f.err != nil {
		return models.Membership{}, false, f.err
	}
	role, ok := f.rows[memberKey{userID, teamID}]
	if !ok {
		return models.Membership{}, false, nil
	}
	return models.Membership{UserID: userID, TeamID: teamID, Role: role}, true, nil
}

func TestMembershipResolver_Require(t *testing.T) {
	user, teamA, teamB := uuid.New(), uuid.New(), uuid.New()
	store := &fakeMemberships{rows: map[memberKey]string{
		{user, teamA}: "editor",
	}}
	r := NewMembershipResolver(store)
	ctx := context.Background()

	role, err := r.Require(ctx, user, teamA, RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, RoleEditor, role)

	_, err = r.Require(ctx, user, teamA, RoleAdmin)
	assert.ErrorIs(t, err, ErrInsufficientRole)

	// editor in team A grants nothing in team B
	_, err = r.Require(ctx, user, teamB, RoleViewer)
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestMembershipResolver_NoCaching(t *testing.T) {
	user, team := uuid.New(), uuid.New()
	store := &fakeMemberships{rows: map[memberKey]string{{user, team}: "admin"}}
	r := NewMembershipResolver(store)
	ctx := context.Background()

	_, err := r.Require(ctx, user, team, RoleAdmin)
	require.NoError(t, err)

	store.rows[memberKey{user, team}] = "viewer"
	_, err = r.Require(ctx, user, team, RoleEditor)
	assert.ErrorIs(t, err, ErrInsufficientRole)
	assert.Equal(t, 2, store.calls)
}

func TestMembershipResolver_CorruptRoleAndStoreError(t *testing.T) {
	user, team := uuid.New(), uuid.New()
	r := NewMembershipResolver(&fakeMemberships{rows: map[memberKey]string{{user, team}: "owner"}})
	_, err := r.Resolve(context.Background(), user, team)
	assert.ErrorIs(t, err, ErrUnknownRole)

	boom := errors.New("connection reset")
	r = NewMembershipResolver(&fakeMemberships{err: boom})
	_, err = r.Resolve(context.Background(), user, team)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotMember)
}
