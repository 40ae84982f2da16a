package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chepyr/team-kanban/internal/access"
	"github.com/chepyr/team-kanban/internal/logger"
	"github.com/chepyr/team-kanban/shared/models"
	tdb "github.com/chepyr/team-kanban/tasks-service/db"
	"github.com/chepyr/team-kanban/tasks-service/notify"
	"github.com/chepyr/team-kanban/tasks-service/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte(strings.Repeat("a", 32))

type testEnv struct {
	h      *Handler
	router *mux.Router
	users  *tdb.UserRepository
	teams  *tdb.TeamRepository
}

func setupHTTP(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dbx, err := tdb.Connect(ctx, tdb.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbx.Close() })
	require.NoError(t, tdb.Migrate(ctx, dbx))

	log := logger.NewNop()
	users := tdb.NewUserRepository(dbx)
	teams := tdb.NewTeamRepository(dbx)
	boards := tdb.NewBoardRepository(dbx)
	members := access.NewMembershipResolver(teams)
	hub := notify.NewHub(log)

	h := &Handler{
		Tasks:       service.NewTaskService(tdb.NewTaskRepository(dbx), boards, members, hub, log),
		Boards:      service.NewBoardService(boards, members, log),
		Principals:  access.NewPrincipalResolver(access.PrincipalConfig{Secret: testSecret}, users),
		Hub:         hub,
		RateLimiter: NewRateLimiter(5, time.Second),
		Log:         log,
	}
	return &testEnv{h: h, router: NewRouter(h), users: users, teams: teams}
}

// user creates a user and returns the bearer token for it.
func (e *testEnv) user(t *testing.T, active bool) (uuid.UUID, string) {
	t.Helper()
	now := time.Now().UTC()
	u := &models.User{ID: uuid.New(), Name: "u", IsActive: active, CreatedAt: now, UpdatedAt: now}
	u.Email = u.ID.String() + "@example.com"
	require.NoError(t, e.users.Create(context.Background(), u))
	return u.ID, signToken(t, jwt.MapClaims{"sub": u.ID.String(), "exp": time.Now().Add(time.Hour).Unix()})
}

func (e *testEnv) team(t *testing.T, members map[uuid.UUID]access.Role) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	team := &models.Team{ID: uuid.New(), Name: "team", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, e.teams.Create(ctx, team))
	for userID, role := range members {
		require.NoError(t, e.teams.AddMember(ctx, models.Membership{UserID: userID, TeamID: team.ID, Role: role.String()}))
	}
	return team.ID
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body=%s", rec.Body.String())
	return v
}

func TestClientIP_XForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "1.2.3.4", clientIP(req))
}

func TestClientIP_RemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	assert.Equal(t, "127.0.0.1", clientIP(req))
}

func TestCheckOrigin_EmptyListAllowsSameOriginOnly(t *testing.T) {
	h := &Handler{}
	tests := []struct {
		name   string
		origin string
		want   bool
	}{
		{"cross site", "https://evil.example", false},
		{"same host", "https://kanban.local", true},
		{"same host other case", "http://KANBAN.local", true},
		{"same name other port", "https://kanban.local:8443", false},
		{"no origin header", "", true},
		{"malformed", "://", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://kanban.local/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, h.checkOrigin(req))
		})
	}
}

func TestCheckOrigin_ListAllowAndDeny(t *testing.T) {
	h := &Handler{AllowedOrigins: []string{"https://a.example", "https://b.example"}}
	allowReq := httptest.NewRequest(http.MethodGet, "/", nil)
	allowReq.Header.Set("Origin", "https://b.example")
	denyReq := httptest.NewRequest(http.MethodGet, "/", nil)
	denyReq.Header.Set("Origin", "https://c.example")

	assert.True(t, h.checkOrigin(allowReq))
	assert.False(t, h.checkOrigin(denyReq))
}

func TestRateLimiter_AllowBlocksAndResets(t *testing.T) {
	rl := NewRateLimiter(2, 50*time.Millisecond)

	ip := "1.2.3.4"
	require.True(t, rl.Allow(ip) && rl.Allow(ip), "first two attempts should be allowed")
	require.False(t, rl.Allow(ip), "third attempt should be blocked")

	time.Sleep(120 * time.Millisecond) // wait for cleanup to run
	assert.True(t, rl.Allow(ip), "after window cleanup attempt should be allowed again")
}

func TestHealth(t *testing.T) {
	env := setupHTTP(t)
	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSendServiceError(t *testing.T) {
	h := &Handler{Log: logger.NewNop()}
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("load task: %w", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: x", service.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("%w: x", service.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: disk", service.ErrPersistence), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.sendServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}
