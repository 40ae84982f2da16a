package handlers

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chepyr/team-kanban/internal/access"
	"github.com/chepyr/team-kanban/internal/logger"
	"github.com/chepyr/team-kanban/shared"
	"github.com/chepyr/team-kanban/tasks-service/notify"
	"github.com/chepyr/team-kanban/tasks-service/service"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	requestTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20 // 1MB
)

type Handler struct {
	Tasks          *service.TaskService
	Boards         *service.BoardService
	Principals     *access.PrincipalResolver
	Hub            *notify.Hub
	RateLimiter    *RateLimiter
	AllowedOrigins []string
	Log            *logger.Logger
}

// NewRouter registers every route of the service. Everything below /api
// except the health check requires a bearer token.
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestIDMiddleware)
	router.HandleFunc("/api/health", h.HandleHealth).Methods(http.MethodGet)
	router.Handle("/ws", h.AuthMiddleware(http.HandlerFunc(h.HandleWebSocket))).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(h.AuthMiddleware)

	api.HandleFunc("/tasks", h.CreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", h.GetTask).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", h.UpdateTask).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/tasks/{id}", h.DeleteTask).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id}/move", h.MoveTask).Methods(http.MethodPost)

	api.HandleFunc("/boards", h.CreateBoard).Methods(http.MethodPost)
	api.HandleFunc("/boards/{id}", h.GetBoard).Methods(http.MethodGet)
	api.HandleFunc("/boards/{id}", h.DeleteBoard).Methods(http.MethodDelete)
	api.HandleFunc("/boards/{id}/tasks", h.ListBoardTasks).Methods(http.MethodGet)
	api.HandleFunc("/teams/{id}/boards", h.ListTeamBoards).Methods(http.MethodGet)

	return router
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	shared.SendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type RateLimiter struct {
	attempts map[string]int
	limit    int
	mutex    sync.Mutex
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		attempts: make(map[string]int),
		limit:    limit,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	count, exists := rl.attempts[ip]
	if !exists {
		rl.attempts[ip] = 1
		return true
	}
	if count >= rl.limit {
		return false
	}
	rl.attempts[ip]++
	return true
}

func (rl *RateLimiter) cleanup() {
	for {
		time.Sleep(rl.window)
		rl.mutex.Lock()
		rl.attempts = make(map[string]int)
		rl.mutex.Unlock()
	}
}

// clientIP prefers the first X-Forwarded-For hop over the socket address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// checkOrigin accepts the configured origins. With none configured only
// same-origin requests and clients that send no Origin are accepted.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if len(h.AllowedOrigins) == 0 {
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range h.AllowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

func isJSONContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(ct), "application/json")
}

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	return id, err == nil
}

// principal is set by AuthMiddleware on every protected route.
func principal(r *http.Request) access.Principal {
	p, _ := access.PrincipalFrom(r.Context())
	return p
}

// sendServiceError maps the service error classes to status codes.
// Persistence failures are logged and reported without detail.
func (h *Handler) sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		shared.SendError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrForbidden):
		shared.SendError(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, service.ErrValidation):
		shared.SendError(w, err.Error(), http.StatusBadRequest)
	default:
		h.Log.WithContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		shared.SendError(w, "Internal server error", http.StatusInternalServerError)
	}
}
