package models

import (
	"time"

	"github.com/google/uuid"
)

// Column is board configuration, not an entity: tasks reference it by ID.
type Column struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

type Board struct {
	ID          uuid.UUID `json:"id"`
	TeamID      uuid.UUID `json:"team_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Columns     []Column  `json:"columns"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultColumns is the layout given to boards created without one.
func DefaultColumns() []Column {
	return []Column{
		{ID: "todo", Name: "To Do", Order: 0},
		{ID: "in_progress", Name: "In Progress", Order: 1},
		{ID: "review", Name: "Review", Order: 2},
		{ID: "done", Name: "Done", Order: 3},
	}
}

// HasColumn reports whether id is one of the board's configured columns.
func (b *Board) HasColumn(id string) bool {
	for _, c := range b.Columns {
		if c.ID == id {
			return true
		}
	}
	return false
}
