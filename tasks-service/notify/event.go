// Package notify fans task changes out to the clients watching a board.
package notify

import (
	"context"

	"github.com/chepyr/team-kanban/shared/models"
	"github.com/google/uuid"
)

type EventType string

const (
	TaskCreated EventType = "task_created"
	TaskUpdated EventType = "task_updated"
	TaskMoved   EventType = "task_moved"
	TaskDeleted EventType = "task_deleted"
)

// Event is one change on one board. Deletions carry only TaskID.
type Event struct {
	Type    EventType    `json:"type"`
	BoardID uuid.UUID    `json:"board_id"`
	Task    *models.Task `json:"task,omitempty"`
	TaskID  *uuid.UUID   `json:"task_id,omitempty"`
}

// Notifier delivers events to the subscribers of Event.BoardID. Delivery
// is at-most-once; callers log errors and move on.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
