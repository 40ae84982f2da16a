package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusToDo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusBlocked    TaskStatus = "blocked"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusToDo, TaskStatusInProgress, TaskStatusReview, TaskStatusDone, TaskStatusBlocked:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

type TaskType string

const (
	TaskTypeTask    TaskType = "task"
	TaskTypeBug     TaskType = "bug"
	TaskTypeFeature TaskType = "feature"
	TaskTypeStory   TaskType = "story"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeTask, TaskTypeBug, TaskTypeFeature, TaskTypeStory:
		return true
	}
	return false
}

// Task is a card on a board. ColumnID and Position place it inside the
// board; positions within one (BoardID, ColumnID) are always 0..n-1.
type Task struct {
	ID             uuid.UUID    `json:"id"`
	BoardID        uuid.UUID    `json:"board_id"`
	ColumnID       string       `json:"column_id"`
	Position       int          `json:"position"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Status         TaskStatus   `json:"status"`
	Priority       TaskPriority `json:"priority"`
	Type           TaskType     `json:"task_type"`
	CreatorID      uuid.UUID    `json:"creator_id"`
	AssigneeID     *uuid.UUID   `json:"assignee_id"`
	ParentTaskID   *uuid.UUID   `json:"parent_task_id"`
	DueDate        *time.Time   `json:"due_date"`
	EstimatedHours *int         `json:"estimated_hours"`
	ActualHours    *int         `json:"actual_hours"`
	Tags           []string     `json:"tags"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
