package service

import (
	"fmt"
	"time"

	"github.com/chepyr/team-kanban/shared/models"
	"github.com/google/uuid"
)

// UpdateTaskRequest is a partial update. Fields left unset are not
// touched; a null clears the field where that is allowed. Placement is
// changed through MoveTask only.
type UpdateTaskRequest struct {
	Title          models.Optional[string]              `json:"title"`
	Description    models.Optional[string]              `json:"description"`
	Status         models.Optional[models.TaskStatus]   `json:"status"`
	Priority       models.Optional[models.TaskPriority] `json:"priority"`
	Type           models.Optional[models.TaskType]     `json:"task_type"`
	AssigneeID     models.Optional[uuid.UUID]           `json:"assignee_id"`
	ParentTaskID   models.Optional[uuid.UUID]           `json:"parent_task_id"`
	DueDate        models.Optional[time.Time]           `json:"due_date"`
	EstimatedHours models.Optional[int]                 `json:"estimated_hours"`
	ActualHours    models.Optional[int]                 `json:"actual_hours"`
	Tags           models.Optional[[]string]            `json:"tags"`
}

func (r *UpdateTaskRequest) validate() error {
	if r.Title.Set {
		if r.Title.Null {
			return validation(fmt.Errorf("%w: title", ErrNotNullable))
		}
		title, err := validateTitle(r.Title.Value)
		if err != nil {
			return err
		}
		r.Title.Value = title
	}
	if r.Status.Set && (r.Status.Null || !r.Status.Value.Valid()) {
		return validation(fmt.Errorf("%w: %q", ErrInvalidStatus, r.Status.Value))
	}
	if r.Priority.Set && (r.Priority.Null || !r.Priority.Value.Valid()) {
		return validation(fmt.Errorf("%w: %q", ErrInvalidPriority, r.Priority.Value))
	}
	if r.Type.Set && (r.Type.Null || !r.Type.Value.Valid()) {
		return validation(fmt.Errorf("%w: %q", ErrInvalidType, r.Type.Value))
	}
	if r.EstimatedHours.HasValue() && r.EstimatedHours.Value < 0 {
		return validation(ErrNegativeHours)
	}
	if r.ActualHours.HasValue() && r.ActualHours.Value < 0 {
		return validation(ErrNegativeHours)
	}
	return nil
}

// apply copies the supplied fields onto task. With dropAssignee the
// assignee field is ignored and the previous assignee stays.
func (r *UpdateTaskRequest) apply(task *models.Task, dropAssignee bool) {
	if r.Title.HasValue() {
		task.Title = r.Title.Value
	}
	if r.Description.Set {
		task.Description = r.Description.Value
	}
	if r.Status.HasValue() {
		task.Status = r.Status.Value
	}
	if r.Priority.HasValue() {
		task.Priority = r.Priority.Value
	}
	if r.Type.HasValue() {
		task.Type = r.Type.Value
	}
	if r.AssigneeID.Set && !dropAssignee {
		task.AssigneeID = optionalPtr(r.AssigneeID)
	}
	if r.ParentTaskID.Set {
		task.ParentTaskID = optionalPtr(r.ParentTaskID)
	}
	if r.DueDate.Set {
		task.DueDate = optionalPtr(r.DueDate)
	}
	if r.EstimatedHours.Set {
		task.EstimatedHours = optionalPtr(r.EstimatedHours)
	}
	if r.ActualHours.Set {
		task.ActualHours = optionalPtr(r.ActualHours)
	}
	if r.Tags.Set {
		task.Tags = cleanTags(r.Tags.Value)
	}
}

func optionalPtr[T any](o models.Optional[T]) *T {
	if !o.HasValue() {
		return nil
	}
	v := o.Value
	return &v
}
