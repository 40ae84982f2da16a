package handlers

import (
	"errors"
	"net/http"

	"github.com/chepyr/team-kanban/internal/access"
	"github.com/chepyr/team-kanban/internal/logger"
	"github.com/chepyr/team-kanban/shared"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

/*
Validate the bearer token, load the user behind it and put the resulting
principal into the request context.
Browsers cannot set headers on a websocket handshake, so upgrade requests
may pass the token as the "token" query parameter instead.
*/
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential := r.Header.Get("Authorization")
		if credential == "" && websocket.IsWebSocketUpgrade(r) {
			credential = r.URL.Query().Get("token")
		}
		if credential == "" {
			shared.SendError(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		p, err := h.Principals.Authenticate(r.Context(), credential)
		switch {
		case errors.Is(err, access.ErrUnauthenticated):
			shared.SendError(w, "Invalid token", http.StatusUnauthorized)
			return
		case errors.Is(err, access.ErrInactivePrincipal):
			shared.SendError(w, "Inactive user", http.StatusForbidden)
			return
		case err != nil:
			h.Log.WithContext(r.Context()).Error("authenticate request", "error", err)
			shared.SendError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		ctx := access.WithPrincipal(r.Context(), p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDMiddleware tags the request with an id that the logger picks
// up. An incoming X-Request-ID is kept.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
	})
}
