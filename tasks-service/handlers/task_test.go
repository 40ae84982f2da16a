package handlers

import (
	"net/http"
	"testing"

	"github.com/chepyr/team-kanban/internal/access"
	"github.com/chepyr/team-kanban/shared/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boardFixture struct {
	env         *testEnv
	board       models.Board
	adminToken  string
	editorToken string
	viewerToken string
	editorID    uuid.UUID
}

func newBoardFixture(t *testing.T) *boardFixture {
	t.Helper()
	env := setupHTTP(t)
	adminID, adminToken := env.user(t, true)
	editorID, editorToken := env.user(t, true)
	viewerID, viewerToken := env.user(t, true)
	teamID := env.team(t, map[uuid.UUID]access.Role{
		adminID:  access.RoleAdmin,
		editorID: access.RoleEditor,
		viewerID: access.RoleViewer,
	})

	rec := env.do(t, http.MethodPost, "/api/boards", adminToken, map[string]any{"team_id": teamID, "name": "Sprint 1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return &boardFixture{
		env:         env,
		board:       decode[models.Board](t, rec),
		adminToken:  adminToken,
		editorToken: editorToken,
		viewerToken: viewerToken,
		editorID:    editorID,
	}
}

func (f *boardFixture) createTask(t *testing.T, body map[string]any) models.Task {
	t.Helper()
	body["board_id"] = f.board.ID
	rec := f.env.do(t, http.MethodPost, "/api/tasks", f.editorToken, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.Task](t, rec)
}

func TestTasks_CreateGetUpdateMoveDelete(t *testing.T) {
	f := newBoardFixture(t)
	env := f.env

	a := f.createTask(t, map[string]any{"title": "A", "priority": "high", "tags": []string{"api"}})
	b := f.createTask(t, map[string]any{"title": "B"})
	assert.Equal(t, "todo", a.ColumnID)
	assert.Equal(t, 0, a.Position)
	assert.Equal(t, 1, b.Position)
	assert.Equal(t, models.TaskPriorityHigh, a.Priority)
	assert.Equal(t, f.editorID, a.CreatorID)

	rec := env.do(t, http.MethodGet, "/api/tasks/"+a.ID.String(), f.viewerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A", decode[models.Task](t, rec).Title)

	rec = env.do(t, http.MethodPatch, "/api/tasks/"+a.ID.String(), f.editorToken,
		map[string]any{"description": "details", "assignee_id": f.editorID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Task](t, rec)
	assert.Equal(t, "A", updated.Title)
	assert.Equal(t, "details", updated.Description)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, f.editorID, *updated.AssigneeID)

	rec = env.do(t, http.MethodPut, "/api/tasks/"+a.ID.String(), f.editorToken, map[string]any{"assignee_id": nil})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, decode[models.Task](t, rec).AssigneeID)

	rec = env.do(t, http.MethodPost, "/api/tasks/"+a.ID.String()+"/move", f.editorToken,
		map[string]any{"column_id": "done", "position": 0})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[models.Task](t, rec)
	assert.Equal(t, "done", moved.ColumnID)
	assert.Equal(t, models.TaskStatusDone, moved.Status)

	rec = env.do(t, http.MethodGet, "/api/boards/"+f.board.ID.String()+"/tasks", f.viewerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decode[[]models.Task](t, rec)
	require.Len(t, tasks, 2)
	assert.Equal(t, "done", tasks[0].ColumnID)
	assert.Equal(t, "B", tasks[1].Title)
	assert.Equal(t, 0, tasks[1].Position)

	rec = env.do(t, http.MethodDelete, "/api/tasks/"+b.ID.String(), f.editorToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/tasks/"+b.ID.String(), f.editorToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTasks_BadRequests(t *testing.T) {
	f := newBoardFixture(t)
	env := f.env
	task := f.createTask(t, map[string]any{"title": "A"})
	taskPath := "/api/tasks/" + task.ID.String()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"invalid task id", http.MethodGet, "/api/tasks/not-a-uuid", nil, http.StatusBadRequest},
		{"missing board", http.MethodPost, "/api/tasks", map[string]any{"title": "x"}, http.StatusBadRequest},
		{"empty title", http.MethodPost, "/api/tasks", map[string]any{"title": " ", "board_id": f.board.ID}, http.StatusBadRequest},
		{"unknown column", http.MethodPost, "/api/tasks", map[string]any{"title": "x", "board_id": f.board.ID, "column_id": "nope"}, http.StatusBadRequest},
		{"unknown board", http.MethodPost, "/api/tasks", map[string]any{"title": "x", "board_id": uuid.New()}, http.StatusNotFound},
		{"position in update", http.MethodPatch, taskPath, map[string]any{"position": 3}, http.StatusBadRequest},
		{"null title", http.MethodPatch, taskPath, map[string]any{"title": nil}, http.StatusBadRequest},
		{"move without position", http.MethodPost, taskPath + "/move", map[string]any{"column_id": "done"}, http.StatusBadRequest},
		{"move negative position", http.MethodPost, taskPath + "/move", map[string]any{"column_id": "done", "position": -1}, http.StatusBadRequest},
		{"move unknown task", http.MethodPost, "/api/tasks/" + uuid.NewString() + "/move", map[string]any{"column_id": "done", "position": 0}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, f.editorToken, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := env.do(t, http.MethodGet, taskPath, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTasks_ViewerAndOutsiderAreForbidden(t *testing.T) {
	f := newBoardFixture(t)
	env := f.env
	task := f.createTask(t, map[string]any{"title": "A"})
	taskPath := "/api/tasks/" + task.ID.String()
	_, outsiderToken := env.user(t, true)

	rec := env.do(t, http.MethodPost, "/api/tasks", f.viewerToken, map[string]any{"title": "x", "board_id": f.board.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodPatch, taskPath, f.viewerToken, map[string]any{"title": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodPost, taskPath+"/move", f.viewerToken, map[string]any{"column_id": "done", "position": 0})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodDelete, taskPath, f.viewerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, taskPath, outsiderToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/boards/"+f.board.ID.String()+"/tasks", outsiderToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, taskPath, f.editorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.Task](t, rec)
	assert.Equal(t, "A", got.Title)
	assert.Equal(t, "todo", got.ColumnID)
}

func TestTasks_ListFiltersAndPages(t *testing.T) {
	f := newBoardFixture(t)
	env := f.env
	f.createTask(t, map[string]any{"title": "A", "assignee_id": f.editorID})
	f.createTask(t, map[string]any{"title": "B"})
	f.createTask(t, map[string]any{"title": "C", "column_id": "done"})
	listPath := "/api/boards/" + f.board.ID.String() + "/tasks"

	list := func(query string) []string {
		t.Helper()
		rec := env.do(t, http.MethodGet, listPath+query, f.viewerToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out []string
		for _, task := range decode[[]models.Task](t, rec) {
			out = append(out, task.Title)
		}
		return out
	}
	assert.Equal(t, []string{"C", "A", "B"}, list(""))
	assert.Equal(t, []string{"A"}, list("?assignee_id="+f.editorID.String()))
	assert.Equal(t, []string{"C"}, list("?status=done"))
	assert.Equal(t, []string{"A"}, list("?limit=1&offset=1"))
	assert.Equal(t, []string{"B"}, list("?status=todo&offset=1"))

	for _, query := range []string{"?assignee_id=nope", "?status=archived", "?limit=x", "?limit=101", "?offset=-1"} {
		rec := env.do(t, http.MethodGet, listPath+query, f.viewerToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}
