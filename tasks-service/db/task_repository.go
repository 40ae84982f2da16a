package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/chepyr/team-kanban/internal/ordering"
	"github.com/chepyr/team-kanban/shared/models"
	"github.com/google/uuid"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, board_id, column_id, position, title, description, status, priority,
 task_type, creator_id, assignee_id, parent_task_id, due_date, estimated_hours, actual_hours,
 tags, created_at, updated_at`

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return getTask(ctx, r.db, id)
}

// TaskFilter narrows ListByBoardID. Nil fields do not filter; a zero Limit
// returns every matching row and ignores Offset.
type TaskFilter struct {
	AssigneeID *uuid.UUID
	Status     *models.TaskStatus
	Limit      int
	Offset     int
}

// ListByBoardID returns the board's tasks grouped by column, each column in
// position order.
func (r *TaskRepository) ListByBoardID(ctx context.Context, boardID uuid.UUID, filter TaskFilter) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE board_id = $1`
	args := []any{boardID}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		query += fmt.Sprintf(` AND assignee_id = $%d`, len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY column_id, position`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// InTx runs fn inside one store transaction. Transactions aborted by the
// store are re-run from scratch, so fn must not carry state between
// attempts.
func (r *TaskRepository) InTx(ctx context.Context, fn func(*TaskTx) error) error {
	return withRetry(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&TaskTx{tx: tx})
	})
}

// TaskTx is the set of reads and writes allowed while reordering. Shifts
// only happen through ApplyPlan, together with the acting task's write.
type TaskTx struct {
	tx *sql.Tx
}

// LockBoards takes a write lock on each board row, in a fixed order so two
// cross-board moves cannot deadlock. Everything read after this call is
// stable until commit.
func (t *TaskTx) LockBoards(ctx context.Context, ids ...uuid.UUID) error {
	ids = slices.Clone(ids)
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	ids = slices.Compact(ids)

	for _, id := range ids {
		res, err := t.tx.ExecContext(ctx, `UPDATE boards SET version = version + 1 WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("lock board %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("board %s: %w", id, ErrNotFound)
		}
	}
	return nil
}

func (t *TaskTx) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return getTask(ctx, t.tx, id)
}

// TaskExistsOnBoard is used to validate parent task references.
func (t *TaskTx) TaskExistsOnBoard(ctx context.Context, id, boardID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1 AND board_id = $2)`, id, boardID,
	).Scan(&exists)
	return exists, err
}

// DetachSubtasks clears the parent reference of every subtask of id.
func (t *TaskTx) DetachSubtasks(ctx context.Context, id uuid.UUID) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE tasks SET parent_task_id = NULL WHERE parent_task_id = $1`, id)
	return err
}

// CountInColumn counts the tasks in slot, ignoring exclude.
func (t *TaskTx) CountInColumn(ctx context.Context, slot ordering.Slot, exclude uuid.UUID) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE board_id = $1 AND column_id = $2 AND id <> $3`,
		slot.BoardID, slot.ColumnID, exclude,
	).Scan(&n)
	return n, err
}

// ApplyPlan executes every shift of plan and then writes task: inserted for
// OpInsert, rewritten at its new placement for OpMove, deleted for
// OpRemove. task.BoardID, ColumnID and Position are set from the plan.
func (t *TaskTx) ApplyPlan(ctx context.Context, plan ordering.Plan, task *models.Task) error {
	if task == nil || task.ID != plan.TaskID {
		return fmt.Errorf("plan for task %s applied to a different task", plan.TaskID)
	}
	if (plan.Placement == nil) != (plan.Op == ordering.OpRemove) {
		return fmt.Errorf("plan for task %s: placement does not match op", plan.TaskID)
	}

	for _, s := range plan.Shifts {
		if err := t.shift(ctx, s, plan.TaskID); err != nil {
			return err
		}
	}

	switch plan.Op {
	case ordering.OpInsert:
		placeTask(task, plan.Placement)
		return insertTask(ctx, t.tx, task)
	case ordering.OpMove:
		placeTask(task, plan.Placement)
		return t.UpdateTask(ctx, task)
	default:
		res, err := t.tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, task.ID)
		if err != nil {
			return err
		}
		return expectOne(res, "task", task.ID)
	}
}

func (t *TaskTx) shift(ctx context.Context, s ordering.RangeShift, exclude uuid.UUID) error {
	query := `UPDATE tasks SET position = position + $1
	 WHERE board_id = $2 AND column_id = $3 AND position >= $4 AND id <> $5`
	args := []any{s.Delta, s.Slot.BoardID, s.Slot.ColumnID, s.From, exclude}
	if s.To != ordering.Unbounded {
		query += ` AND position <= $6`
		args = append(args, s.To)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("shift %s from %d by %d: %w", s.Slot, s.From, s.Delta, err)
	}
	return nil
}

// UpdateTask rewrites every column of an existing task.
func (t *TaskTx) UpdateTask(ctx context.Context, task *models.Task) error {
	tags, err := encodeTags(task.Tags)
	if err != nil {
		return err
	}
	query := `UPDATE tasks SET board_id = $1, column_id = $2, position = $3, title = $4,
	 description = $5, status = $6, priority = $7, task_type = $8, assignee_id = $9,
	 parent_task_id = $10, due_date = $11, estimated_hours = $12, actual_hours = $13,
	 tags = $14, updated_at = $15
	 WHERE id = $16`
	res, err := t.tx.ExecContext(ctx, query,
		task.BoardID, task.ColumnID, task.Position, task.Title,
		task.Description, task.Status, task.Priority, task.Type, nullUUID(task.AssigneeID),
		nullUUID(task.ParentTaskID), nullTime(task.DueDate), nullInt(task.EstimatedHours), nullInt(task.ActualHours),
		tags, task.UpdatedAt,
		task.ID)
	if err != nil {
		return err
	}
	return expectOne(res, "task", task.ID)
}

func placeTask(task *models.Task, p *ordering.Placement) {
	task.BoardID = p.Slot.BoardID
	task.ColumnID = p.Slot.ColumnID
	task.Position = p.Position
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTask(ctx context.Context, q querier, id uuid.UUID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return task, err
}

func insertTask(ctx context.Context, tx *sql.Tx, task *models.Task) error {
	tags, err := encodeTags(task.Tags)
	if err != nil {
		return err
	}
	query := `INSERT INTO tasks (id, board_id, column_id, position, title, description, status,
	 priority, task_type, creator_id, assignee_id, parent_task_id, due_date, estimated_hours,
	 actual_hours, tags, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err = tx.ExecContext(ctx, query,
		task.ID, task.BoardID, task.ColumnID, task.Position, task.Title, task.Description, task.Status,
		task.Priority, task.Type, task.CreatorID, nullUUID(task.AssigneeID), nullUUID(task.ParentTaskID),
		nullTime(task.DueDate), nullInt(task.EstimatedHours),
		nullInt(task.ActualHours), tags, task.CreatedAt, task.UpdatedAt)
	return err
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var (
		assignee, parent  uuid.NullUUID
		due               sql.NullTime
		estimated, actual sql.NullInt64
		tags              string
	)
	if err := row.Scan(
		&task.ID, &task.BoardID, &task.ColumnID, &task.Position, &task.Title, &task.Description,
		&task.Status, &task.Priority, &task.Type, &task.CreatorID, &assignee, &parent,
		&due, &estimated, &actual, &tags, &task.CreatedAt, &task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if assignee.Valid {
		task.AssigneeID = &assignee.UUID
	}
	if parent.Valid {
		task.ParentTaskID = &parent.UUID
	}
	if due.Valid {
		d := due.Time
		task.DueDate = &d
	}
	task.EstimatedHours = intPtr(estimated)
	task.ActualHours = intPtr(actual)
	if err := json.Unmarshal([]byte(tags), &task.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of task %s: %w", task.ID, err)
	}
	if task.Tags == nil {
		task.Tags = []string{}
	}
	return task, nil
}

func expectOne(res sql.Result, what string, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
