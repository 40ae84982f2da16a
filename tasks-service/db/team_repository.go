package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chepyr/team-kanban/shared/models"
	"github.com/google/uuid"
)

// TeamRepository owns teams and the team_members junction.
type TeamRepository struct {
	db *sql.DB
}

func NewTeamRepository(db *sql.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) Create(ctx context.Context, team *models.Team) error {
	query := `INSERT INTO teams (id, name, description, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, team.ID, team.Name, team.Description, team.CreatedAt, team.UpdatedAt)
	return err
}

// AddMember inserts or replaces the member's role.
func (r *TeamRepository) AddMember(ctx context.Context, m models.Membership) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM team_members WHERE user_id = $1 AND team_id = $2`, m.UserID, m.TeamID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO team_members (user_id, team_id, role, created_at) VALUES ($1, $2, $3, $4)`,
			m.UserID, m.TeamID, m.Role, time.Now().UTC())
		return err
	})
}

func (r *TeamRepository) RemoveMember(ctx context.Context, userID, teamID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE user_id = $1 AND team_id = $2`, userID, teamID)
	return err
}

// FindMembership implements access.MembershipStore.
func (r *TeamRepository) FindMembership(ctx context.Context, userID, teamID uuid.UUID) (models.Membership, bool, error) {
	m := models.Membership{UserID: userID, TeamID: teamID}
	err := r.db.QueryRowContext(ctx,
		`SELECT role FROM team_members WHERE user_id = $1 AND team_id = $2`, userID, teamID,
	).Scan(&m.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Membership{}, false, nil
	}
	if err != nil {
		return models.Membership{}, false, fmt.Errorf("membership %s/%s: %w", userID, teamID, err)
	}
	return m, true, nil
}
