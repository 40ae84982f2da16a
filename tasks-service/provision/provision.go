// Package provision creates the users, teams and memberships the task
// service authorizes against. It backs the user and team subcommands;
// credentials are issued elsewhere.
package provision

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/chepyr/team-kanban/internal/access"
	"github.com/chepyr/team-kanban/internal/logger"
	"github.com/chepyr/team-kanban/shared/models"
	"github.com/google/uuid"
)

var (
	ErrInvalidEmail = errors.New("invalid email")
	ErrEmptyName    = errors.New("name cannot be empty")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type TeamStore interface {
	Create(ctx context.Context, team *models.Team) error
	AddMember(ctx context.Context, m models.Membership) error
	RemoveMember(ctx context.Context, userID, teamID uuid.UUID) error
}

type Provisioner struct {
	users UserStore
	teams TeamStore
	log   *logger.Logger
}

func New(users UserStore, teams TeamStore, log *logger.Logger) *Provisioner {
	return &Provisioner{users: users, teams: teams, log: log}
}

func (p *Provisioner) AddUser(ctx context.Context, email, name string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if !isValidEmail(email) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = email
	}
	now := time.Now().UTC()
	user := &models.User{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("cannot save user: %w", err)
	}
	p.log.Audit("user added", "user_id", user.ID, "email", user.Email)
	return user, nil
}

func (p *Provisioner) SetUserActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := p.users.SetActive(ctx, id, active); err != nil {
		return err
	}
	p.log.Audit("user activation changed", "user_id", id, "active", active)
	return nil
}

func (p *Provisioner) AddTeam(ctx context.Context, name, description string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	now := time.Now().UTC()
	team := &models.Team{ID: uuid.New(), Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
	if err := p.teams.Create(ctx, team); err != nil {
		return nil, fmt.Errorf("cannot save team: %w", err)
	}
	p.log.Audit("team added", "team_id", team.ID, "name", team.Name)
	return team, nil
}

// SetMember grants role in the team, replacing any previous role.
func (p *Provisioner) SetMember(ctx context.Context, userID, teamID uuid.UUID, role string) error {
	r, err := access.ParseRole(strings.ToLower(strings.TrimSpace(role)))
	if err != nil {
		return err
	}
	if err := p.teams.AddMember(ctx, models.Membership{UserID: userID, TeamID: teamID, Role: r.String()}); err != nil {
		return fmt.Errorf("cannot save membership: %w", err)
	}
	p.log.Audit("membership set", "user_id", userID, "team_id", teamID, "role", r.String())
	return nil
}

func (p *Provisioner) RemoveMember(ctx context.Context, userID, teamID uuid.UUID) error {
	if err := p.teams.RemoveMember(ctx, userID, teamID); err != nil {
		return err
	}
	p.log.Audit("membership removed", "user_id", userID, "team_id", teamID)
	return nil
}

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
