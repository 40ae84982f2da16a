package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chepyr/team-kanban/shared/models"
	"github.com/google/uuid"
)

type BoardRepository struct {
	db *sql.DB
}

func NewBoardRepository(db *sql.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

func (r *BoardRepository) Create(ctx context.Context, board *models.Board) error {
	if len(board.Columns) == 0 {
		board.Columns = models.DefaultColumns()
	}
	columns, err := json.Marshal(board.Columns)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}

	query := `INSERT INTO boards (id, team_id, name, description, columns, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.db.ExecContext(
		ctx, query, board.ID, board.TeamID, board.Name, board.Description, string(columns),
		board.CreatedAt, board.UpdatedAt)
	return err
}

const boardColumns = `id, team_id, name, description, columns, created_at, updated_at`

func (r *BoardRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards WHERE id = $1`
	board, err := scanBoard(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("board %s: %w", id, ErrNotFound)
	}
	return board, err
}

func (r *BoardRepository) ListByTeamID(ctx context.Context, teamID uuid.UUID) ([]*models.Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards WHERE team_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var boards []*models.Board
	for rows.Next() {
		board, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		boards = append(boards, board)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return boards, nil
}

// Delete removes the board; its tasks go with it (ON DELETE CASCADE).
func (r *BoardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("board %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBoard(row rowScanner) (*models.Board, error) {
	board := &models.Board{}
	var columns string
	if err := row.Scan(
		&board.ID, &board.TeamID, &board.Name, &board.Description, &columns,
		&board.CreatedAt, &board.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(columns), &board.Columns); err != nil {
		return nil, fmt.Errorf("decode columns of board %s: %w", board.ID, err)
	}
	return board, nil
}
