package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/chepyr/team-kanban/shared"
	"github.com/chepyr/team-kanban/shared/models"
	"github.com/chepyr/team-kanban/tasks-service/db"
	"github.com/chepyr/team-kanban/tasks-service/service"
	"github.com/google/uuid"
)

// POST /api/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		shared.SendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var input service.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.SendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if input.BoardID == uuid.Nil {
		shared.SendError(w, "board_id is required (uuid)", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	task, err := h.Tasks.CreateTask(ctx, principal(r), input)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/tasks/"+task.ID.String())
	shared.SendJSON(w, http.StatusCreated, task)
}

// GET /api/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(r)
	if !ok {
		shared.SendError(w, "task_id must be a valid uuid", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	task, err := h.Tasks.GetTask(ctx, principal(r), taskID)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, task)
}

// PUT|PATCH /api/tasks/{id}. Both are partial; omitted fields are kept.
// Placement fields are rejected, moves go through /move.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(r)
	if !ok {
		shared.SendError(w, "task_id must be a valid uuid", http.StatusBadRequest)
		return
	}
	if !isJSONContentType(r) {
		shared.SendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var input service.UpdateTaskRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		shared.SendError(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	task, err := h.Tasks.UpdateTask(ctx, principal(r), taskID, input)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, task)
}

// POST /api/tasks/{id}/move
func (h *Handler) MoveTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(r)
	if !ok {
		shared.SendError(w, "task_id must be a valid uuid", http.StatusBadRequest)
		return
	}
	if !isJSONContentType(r) {
		shared.SendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var input struct {
		ColumnID string     `json:"column_id"`
		Position *int       `json:"position"`
		BoardID  *uuid.UUID `json:"board_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.SendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if input.ColumnID == "" || input.Position == nil {
		shared.SendError(w, "column_id and position are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	task, err := h.Tasks.MoveTask(ctx, principal(r), taskID, service.MoveTaskRequest{
		ColumnID: input.ColumnID,
		Position: *input.Position,
		BoardID:  input.BoardID,
	})
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, task)
}

// DELETE /api/tasks/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(r)
	if !ok {
		shared.SendError(w, "task_id must be a valid uuid", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.Tasks.DeleteTask(ctx, principal(r), taskID); err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/boards/{id}/tasks?assignee_id=&status=&limit=&offset=
func (h *Handler) ListBoardTasks(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(r)
	if !ok {
		shared.SendError(w, "board_id must be a valid uuid", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	filter, err := taskFilter(r.URL.Query())
	if err != nil {
		shared.SendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	tasks, err := h.Tasks.ListBoardTasks(ctx, principal(r), boardID, filter)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, tasks)
}

func taskFilter(q url.Values) (db.TaskFilter, error) {
	var filter db.TaskFilter
	if raw := q.Get("assignee_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("assignee_id must be a valid uuid")
		}
		filter.AssigneeID = &id
	}
	if raw := q.Get("status"); raw != "" {
		status := models.TaskStatus(raw)
		filter.Status = &status
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return filter, fmt.Errorf("%s must be an integer", name)
		}
		*dst = n
	}
	return filter, nil
}
