package service

import "github.com/chepyr/team-kanban/shared/models"

// columnStatus maps the lifecycle column ids to their status. Custom
// columns are deliberately absent: moving into one keeps the status.
var columnStatus = map[string]models.TaskStatus{
	"todo":        models.TaskStatusToDo,
	"in_progress": models.TaskStatusInProgress,
	"review":      models.TaskStatusReview,
	"done":        models.TaskStatusDone,
}

// StatusForColumn returns the status a task gets in columnID.
func StatusForColumn(columnID string, current models.TaskStatus) models.TaskStatus {
	if s, ok := columnStatus[columnID]; ok {
		return s
	}
	return current
}
