// Package service holds the task orchestration: every mutation is
// authorized against team membership, reordered through internal/ordering
// inside one store transaction, and announced to board subscribers after
// commit.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/chepyr/team-kanban/internal/access"
	"github.com/chepyr/team-kanban/internal/logger"
	"github.com/chepyr/team-kanban/internal/ordering"
	"github.com/chepyr/team-kanban/shared/models"
	"github.com/chepyr/team-kanban/tasks-service/db"
	"github.com/chepyr/team-kanban/tasks-service/notify"
	"github.com/google/uuid"
)

const (
	maxTitleLength  = 255
	defaultColumnID = "todo"
)

type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListByBoardID(ctx context.Context, boardID uuid.UUID, filter db.TaskFilter) ([]*models.Task, error)
	InTx(ctx context.Context, fn func(*db.TaskTx) error) error
}

type BoardStore interface {
	Create(ctx context.Context, board *models.Board) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Board, error)
	ListByTeamID(ctx context.Context, teamID uuid.UUID) ([]*models.Board, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type TaskService struct {
	tasks    TaskStore
	boards   BoardStore
	members  *access.MembershipResolver
	notifier notify.Notifier
	log      *logger.Logger
	now      func() time.Time
}

func NewTaskService(
	tasks TaskStore,
	boards BoardStore,
	members *access.MembershipResolver,
	notifier notify.Notifier,
	log *logger.Logger,
) *TaskService {
	return &TaskService{
		tasks:    tasks,
		boards:   boards,
		members:  members,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateTaskRequest encapsulates all data needed to create a task.
// ColumnID defaults to "todo"; a nil Position appends to the column.
type CreateTaskRequest struct {
	BoardID        uuid.UUID           `json:"board_id"`
	ColumnID       string              `json:"column_id"`
	Position       *int                `json:"position"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Priority       models.TaskPriority `json:"priority"`
	Type           models.TaskType     `json:"task_type"`
	AssigneeID     *uuid.UUID          `json:"assignee_id"`
	ParentTaskID   *uuid.UUID          `json:"parent_task_id"`
	DueDate        *time.Time          `json:"due_date"`
	EstimatedHours *int                `json:"estimated_hours"`
	Tags           []string            `json:"tags"`
}

// MoveTaskRequest places a task at Position of ColumnID, on BoardID when
// set, otherwise on its current board.
type MoveTaskRequest struct {
	ColumnID string     `json:"column_id"`
	Position int        `json:"position"`
	BoardID  *uuid.UUID `json:"board_id"`
}

func (s *TaskService) GetTask(ctx context.Context, actor access.Principal, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	board, err := s.loadBoard(ctx, task.BoardID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, board.TeamID, access.RoleViewer); err != nil {
		return nil, err
	}
	return task, nil
}

// MaxPageSize caps TaskFilter.Limit.
const MaxPageSize = 100

// ListBoardTasks returns the board's tasks ordered by column, then position.
// A zero filter returns the whole board. An Offset without a Limit pages by
// MaxPageSize.
func (s *TaskService) ListBoardTasks(ctx context.Context, actor access.Principal, boardID uuid.UUID, filter db.TaskFilter) ([]*models.Task, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, validation(fmt.Errorf("%w: %q", ErrInvalidStatus, *filter.Status))
	}
	if filter.Limit < 0 || filter.Limit > MaxPageSize || filter.Offset < 0 {
		return nil, validation(ErrInvalidPage)
	}
	if filter.Offset > 0 && filter.Limit == 0 {
		filter.Limit = MaxPageSize
	}

	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, board.TeamID, access.RoleViewer); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListByBoardID(ctx, boardID, filter)
	if err != nil {
		return nil, storeError("list tasks", err)
	}
	return tasks, nil
}

// CreateTask adds a task to a board column. An assignee who is not a
// member of the board's team is dropped; the task is still created.
func (s *TaskService) CreateTask(ctx context.Context, actor access.Principal, req CreateTaskRequest) (*models.Task, error) {
	board, err := s.loadBoard(ctx, req.BoardID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, board.TeamID, access.RoleEditor); err != nil {
		return nil, err
	}

	title, err := validateTitle(req.Title)
	if err != nil {
		return nil, err
	}
	columnID := req.ColumnID
	if columnID == "" {
		columnID = defaultColumnID
	}
	if !board.HasColumn(columnID) {
		return nil, validation(fmt.Errorf("%w: %q", ErrUnknownColumn, columnID))
	}
	if req.Position != nil && *req.Position < 0 {
		return nil, validation(ordering.ErrNegativePosition)
	}
	priority := req.Priority
	if priority == "" {
		priority = models.TaskPriorityMedium
	}
	if !priority.Valid() {
		return nil, validation(fmt.Errorf("%w: %q", ErrInvalidPriority, priority))
	}
	taskType := req.Type
	if taskType == "" {
		taskType = models.TaskTypeTask
	}
	if !taskType.Valid() {
		return nil, validation(fmt.Errorf("%w: %q", ErrInvalidType, taskType))
	}
	if req.EstimatedHours != nil && *req.EstimatedHours < 0 {
		return nil, validation(ErrNegativeHours)
	}

	assignee := req.AssigneeID
	if assignee != nil {
		ok, err := s.isMember(ctx, *assignee, board.TeamID)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.log.Info("dropping assignee outside the team", "assignee_id", *assignee, "board_id", board.ID)
			assignee = nil
		}
	}

	now := s.now()
	template := models.Task{
		ID:             uuid.New(),
		BoardID:        board.ID,
		ColumnID:       columnID,
		Title:          title,
		Description:    req.Description,
		Status:         StatusForColumn(columnID, models.TaskStatusToDo),
		Priority:       priority,
		Type:           taskType,
		CreatorID:      actor.ID,
		AssigneeID:     assignee,
		ParentTaskID:   req.ParentTaskID,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		Tags:           cleanTags(req.Tags),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var created *models.Task
	err = s.tasks.InTx(ctx, func(tx *db.TaskTx) error {
		if err := tx.LockBoards(ctx, board.ID); err != nil {
			return err
		}
		if template.ParentTaskID != nil {
			ok, err := tx.TaskExistsOnBoard(ctx, *template.ParentTaskID, board.ID)
			if err != nil {
				return err
			}
			if !ok {
				return validation(ErrInvalidParent)
			}
		}
		slot := ordering.Slot{BoardID: board.ID, ColumnID: columnID}
		count, err := tx.CountInColumn(ctx, slot, uuid.Nil)
		if err != nil {
			return err
		}
		plan, err := ordering.Insert(template.ID, slot, count, req.Position)
		if err != nil {
			return err
		}
		task := template
		task.Tags = slices.Clone(template.Tags)
		if err := tx.ApplyPlan(ctx, plan, &task); err != nil {
			return err
		}
		created = &task
		return nil
	})
	if err != nil {
		return nil, s.failed("create task", err)
	}

	s.auditLog(ctx, actor).Audit("task created", "task_id", created.ID, "board_id", board.ID,
		"column_id", created.ColumnID, "position", created.Position)
	s.publish(ctx, notify.Event{Type: notify.TaskCreated, BoardID: board.ID, Task: created})
	return created, nil
}

// UpdateTask applies the supplied non-positional fields.
func (s *TaskService) UpdateTask(ctx context.Context, actor access.Principal, taskID uuid.UUID, req UpdateTaskRequest) (*models.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	board, err := s.loadBoard(ctx, task.BoardID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, board.TeamID, access.RoleEditor); err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	dropAssignee := false
	if req.AssigneeID.HasValue() {
		ok, err := s.isMember(ctx, req.AssigneeID.Value, board.TeamID)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.log.Info("ignoring assignee outside the team", "assignee_id", req.AssigneeID.Value, "task_id", taskID)
			dropAssignee = true
		}
	}

	var updated *models.Task
	err = s.tasks.InTx(ctx, func(tx *db.TaskTx) error {
		if err := tx.LockBoards(ctx, board.ID); err != nil {
			return err
		}
		cur, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if cur.BoardID != board.ID {
			return fmt.Errorf("task %s left board %s: %w", taskID, board.ID, db.ErrConflict)
		}
		if req.ParentTaskID.HasValue() {
			parent := req.ParentTaskID.Value
			if parent == taskID {
				return validation(ErrInvalidParent)
			}
			ok, err := tx.TaskExistsOnBoard(ctx, parent, board.ID)
			if err != nil {
				return err
			}
			if !ok {
				return validation(ErrInvalidParent)
			}
		}
		req.apply(cur, dropAssignee)
		cur.UpdatedAt = s.now()
		if err := tx.UpdateTask(ctx, cur); err != nil {
			return err
		}
		updated = cur
		return nil
	})
	if err != nil {
		return nil, s.failed("update task", err)
	}

	s.auditLog(ctx, actor).Audit("task updated", "task_id", taskID, "board_id", board.ID)
	s.publish(ctx, notify.Event{Type: notify.TaskUpdated, BoardID: board.ID, Task: updated})
	return updated, nil
}

// MoveTask places a task at a column/position, possibly on another board.
// Membership is checked on the source board and, for cross-board moves,
// on the destination board before anything is written. A task leaving its
// board loses its parent and its subtasks lose it; an assignee outside the
// destination team is dropped.
func (s *TaskService) MoveTask(ctx context.Context, actor access.Principal, taskID uuid.UUID, req MoveTaskRequest) (*models.Task, error) {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	source, err := s.loadBoard(ctx, task.BoardID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, source.TeamID, access.RoleEditor); err != nil {
		return nil, err
	}

	dest := source
	if req.BoardID != nil && *req.BoardID != source.ID {
		dest, err = s.loadBoard(ctx, *req.BoardID)
		if err != nil {
			return nil, err
		}
		if err := s.authorize(ctx, actor, dest.TeamID, access.RoleEditor); err != nil {
			return nil, err
		}
	}

	if !dest.HasColumn(req.ColumnID) {
		return nil, validation(fmt.Errorf("%w: %q", ErrUnknownColumn, req.ColumnID))
	}
	if req.Position < 0 {
		return nil, validation(ordering.ErrNegativePosition)
	}

	crossTeam := dest.TeamID != source.TeamID
	var keepAssignee *uuid.UUID
	if crossTeam && task.AssigneeID != nil {
		ok, err := s.isMember(ctx, *task.AssigneeID, dest.TeamID)
		if err != nil {
			return nil, err
		}
		if ok {
			keepAssignee = task.AssigneeID
		}
	}

	var (
		moved   *models.Task
		dropped *uuid.UUID
	)
	err = s.tasks.InTx(ctx, func(tx *db.TaskTx) error {
		if err := tx.LockBoards(ctx, source.ID, dest.ID); err != nil {
			return err
		}
		cur, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if cur.BoardID != source.ID {
			return fmt.Errorf("task %s left board %s: %w", taskID, source.ID, db.ErrConflict)
		}

		from := ordering.Slot{BoardID: cur.BoardID, ColumnID: cur.ColumnID}
		to := ordering.Slot{BoardID: dest.ID, ColumnID: req.ColumnID}
		destCount, err := tx.CountInColumn(ctx, to, cur.ID)
		if err != nil {
			return err
		}
		plan, err := ordering.Move(cur.ID, from, cur.Position, to, req.Position, destCount)
		if err != nil {
			return err
		}
		dropped = nil
		if plan.Noop(ordering.Placement{Slot: from, Position: cur.Position}) {
			moved = cur
			return nil
		}

		if source.ID != dest.ID {
			if err := tx.DetachSubtasks(ctx, cur.ID); err != nil {
				return err
			}
			cur.ParentTaskID = nil
		}
		// assignee checked before the tx may have been replaced since
		if crossTeam && cur.AssigneeID != nil && (keepAssignee == nil || *cur.AssigneeID != *keepAssignee) {
			dropped = cur.AssigneeID
			cur.AssigneeID = nil
		}
		cur.Status = StatusForColumn(req.ColumnID, cur.Status)
		cur.UpdatedAt = s.now()
		if err := tx.ApplyPlan(ctx, plan, cur); err != nil {
			return err
		}
		moved = cur
		return nil
	})
	if err != nil {
		return nil, s.failed("move task", err)
	}
	if dropped != nil {
		s.log.Info("dropping assignee outside the destination team", "assignee_id", *dropped, "task_id", taskID, "board_id", dest.ID)
	}

	s.auditLog(ctx, actor).Audit("task moved", "task_id", taskID, "from_board_id", source.ID, "board_id", dest.ID,
		"column_id", moved.ColumnID, "position", moved.Position)
	s.publish(ctx, notify.Event{Type: notify.TaskMoved, BoardID: dest.ID, Task: moved})
	if source.ID != dest.ID {
		s.publish(ctx, notify.Event{Type: notify.TaskMoved, BoardID: source.ID, Task: moved})
	}
	return moved, nil
}

// DeleteTask removes a task and closes the gap it leaves in its column.
// Subtasks lose their parent reference.
func (s *TaskService) DeleteTask(ctx context.Context, actor access.Principal, taskID uuid.UUID) error {
	task, err := s.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	board, err := s.loadBoard(ctx, task.BoardID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, board.TeamID, access.RoleEditor); err != nil {
		return err
	}

	err = s.tasks.InTx(ctx, func(tx *db.TaskTx) error {
		if err := tx.LockBoards(ctx, board.ID); err != nil {
			return err
		}
		cur, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if cur.BoardID != board.ID {
			return fmt.Errorf("task %s left board %s: %w", taskID, board.ID, db.ErrConflict)
		}
		plan := ordering.Remove(cur.ID, ordering.Slot{BoardID: cur.BoardID, ColumnID: cur.ColumnID}, cur.Position)
		return tx.ApplyPlan(ctx, plan, cur)
	})
	if err != nil {
		return s.failed("delete task", err)
	}

	s.auditLog(ctx, actor).Audit("task deleted", "task_id", taskID, "board_id", board.ID)
	s.publish(ctx, notify.Event{Type: notify.TaskDeleted, BoardID: board.ID, TaskID: &taskID})
	return nil
}

func (s *TaskService) authorize(ctx context.Context, actor access.Principal, teamID uuid.UUID, required access.Role) error {
	return authorize(ctx, s.members, actor, teamID, required)
}

func authorize(ctx context.Context, members *access.MembershipResolver, actor access.Principal, teamID uuid.UUID, required access.Role) error {
	if !actor.IsActive {
		return forbidden(access.ErrInactivePrincipal)
	}
	_, err := members.Require(ctx, actor.ID, teamID, required)
	return authError(err)
}

func (s *TaskService) isMember(ctx context.Context, userID, teamID uuid.UUID) (bool, error) {
	_, err := s.members.Resolve(ctx, userID, teamID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, access.ErrNotMember):
		return false, nil
	}
	return false, fmt.Errorf("%w: %w", ErrPersistence, err)
}

func (s *TaskService) loadTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("load task", err)
	}
	return task, nil
}

func (s *TaskService) loadBoard(ctx context.Context, id uuid.UUID) (*models.Board, error) {
	board, err := s.boards.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("load board", err)
	}
	return board, nil
}

func (s *TaskService) failed(op string, err error) error {
	err = storeError(op, err)
	if errors.Is(err, ErrPersistence) {
		s.log.Error(op+" failed", "error", err)
	}
	return err
}

// publish runs after commit. A failed notification is logged, never
// returned: the change itself already happened.
func (s *TaskService) publish(ctx context.Context, ev notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.WithContext(ctx).WithFields(map[string]interface{}{
			"type":     ev.Type,
			"board_id": ev.BoardID,
		}).Warn("board notification failed", "error", err)
	}
}

func (s *TaskService) auditLog(ctx context.Context, actor access.Principal) *logger.Logger {
	return s.log.WithContext(ctx).WithUser(actor.ID.String())
}

func validateTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", validation(ErrEmptyTitle)
	}
	if len(title) > maxTitleLength {
		return "", validation(ErrTitleTooLong)
	}
	return title, nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
