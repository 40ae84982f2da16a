package handlers

import (
	"context"
	"net/http"

	"github.com/chepyr/team-kanban/shared"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// GET /ws?board_id={board_id}
// Viewers and above may subscribe. The connection only receives; anything
// the client sends is discarded.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.RateLimiter.Allow(clientIP(r)) {
		shared.SendError(w, "Too many WebSocket connection attempts", http.StatusTooManyRequests)
		return
	}

	boardID, err := uuid.Parse(r.URL.Query().Get("board_id"))
	if err != nil {
		shared.SendError(w, "board_id is required (uuid)", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	_, err = h.Boards.GetBoard(ctx, principal(r), boardID)
	cancel()
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.Log.Warn("websocket upgrade failed", "board_id", boardID, "error", err)
		return
	}

	h.Hub.Register(boardID, conn)
	defer func() {
		h.Hub.Unregister(boardID, conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.Log.Debug("websocket closed", "board_id", boardID, "error", err)
			return
		}
	}
}
