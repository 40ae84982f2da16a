package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/chepyr/team-kanban/internal/access"
	"github.com/chepyr/team-kanban/internal/logger"
	"github.com/chepyr/team-kanban/shared/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUsers struct {
	users  map[uuid.UUID]*models.User
	failed bool
}

func newMockUsers() *mockUsers {
	return &mockUsers{users: make(map[uuid.UUID]*models.User)}
}

func (m *mockUsers) Create(_ context.Context, user *models.User) error {
	if m.failed {
		return errors.New("db down")
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return errors.New("duplicate email")
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUsers) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	u, ok := m.users[id]
	if !ok {
		return errors.New("not found")
	}
	u.IsActive = active
	return nil
}

type mockTeams struct {
	teams   map[uuid.UUID]*models.Team
	members map[[2]uuid.UUID]string
}

func newMockTeams() *mockTeams {
	return &mockTeams{teams: make(map[uuid.UUID]*models.Team), members: make(map[[2]uuid.UUID]string)}
}

func (m *mockTeams) Create(_ context.Context, team *models.Team) error {
	m.teams[team.ID] = team
	return nil
}

func (m *mockTeams) AddMember(_ context.Context, mem models.Membership) error {
	m.members[[2]uuid.UUID{mem.UserID, mem.TeamID}] = mem.Role
	return nil
}

func (m *mockTeams) RemoveMember(_ context.Context, userID, teamID uuid.UUID) error {
	delete(m.members, [2]uuid.UUID{userID, teamID})
	return nil
}

func TestAddUser(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		failing bool
		wantErr error
	}{
		{name: "valid", email: "test@example.com"},
		{name: "surrounding spaces", email: "  spaced@example.com "},
		{name: "invalid email", email: "invalid", wantErr: ErrInvalidEmail},
		{name: "missing tld", email: "a@b", wantErr: ErrInvalidEmail},
		{name: "store failure", email: "x@example.com", failing: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newMockUsers()
			users.failed = tt.failing
			p := New(users, newMockTeams(), logger.NewNop())

			user, err := p.AddUser(context.Background(), tt.email, "")
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.failing:
				assert.ErrorContains(t, err, "cannot save user")
			default:
				require.NoError(t, err)
				assert.True(t, user.IsActive)
				assert.Equal(t, user.Email, user.Name)
				assert.Contains(t, users.users, user.ID)
			}
		})
	}
}

func TestSetUserActive(t *testing.T) {
	users := newMockUsers()
	p := New(users, newMockTeams(), logger.NewNop())
	user, err := p.AddUser(context.Background(), "a@example.com", "A")
	require.NoError(t, err)

	require.NoError(t, p.SetUserActive(context.Background(), user.ID, false))
	assert.False(t, users.users[user.ID].IsActive)
	assert.Error(t, p.SetUserActive(context.Background(), uuid.New(), false))
}

func TestTeamsAndMembers(t *testing.T) {
	teams := newMockTeams()
	p := New(newMockUsers(), teams, logger.NewNop())
	ctx := context.Background()

	_, err := p.AddTeam(ctx, "  ", "")
	assert.ErrorIs(t, err, ErrEmptyName)

	team, err := p.AddTeam(ctx, "Platform", "infra folks")
	require.NoError(t, err)
	userID := uuid.New()
	key := [2]uuid.UUID{userID, team.ID}

	require.NoError(t, p.SetMember(ctx, userID, team.ID, " Editor "))
	assert.Equal(t, "editor", teams.members[key])

	assert.ErrorIs(t, p.SetMember(ctx, userID, team.ID, "owner"), access.ErrUnknownRole)
	assert.Equal(t, "editor", teams.members[key])

	require.NoError(t, p.RemoveMember(ctx, userID, team.ID))
	assert.NotContains(t, teams.members, key)
}
