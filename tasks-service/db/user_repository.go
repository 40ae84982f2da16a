package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/chepyr/team-kanban/shared/models"
	"github.com/google/uuid"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, email, name, is_active, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(
		ctx, query, user.ID, user.Email, user.Name, user.IsActive, user.CreatedAt, user.UpdatedAt)
	return err
}

// FindUser implements access.UserStore.
func (r *UserRepository) FindUser(ctx context.Context, id uuid.UUID) (models.User, bool, error) {
	query := `SELECT id, email, name, is_active, created_at, updated_at FROM users WHERE id = $1`
	var user models.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, err
	}
	return user, true, nil
}

// SetActive enables or disables a user. Disabled users keep their rows
// and memberships but can no longer authenticate.
func (r *UserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`, active, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return expectOne(res, "user", id)
}
