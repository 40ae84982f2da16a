package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/chepyr/team-kanban/shared"
	"github.com/chepyr/team-kanban/tasks-service/service"
	"github.com/google/uuid"
)

// POST /api/boards (team admins only)
func (h *Handler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		shared.SendError(w, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var input service.CreateBoardRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		shared.SendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if input.TeamID == uuid.Nil {
		shared.SendError(w, "team_id is required (uuid)", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	board, err := h.Boards.CreateBoard(ctx, principal(r), input)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/boards/"+board.ID.String())
	shared.SendJSON(w, http.StatusCreated, board)
}

// GET /api/boards/{id}
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(r)
	if !ok {
		shared.SendError(w, "Invalid board ID", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	board, err := h.Boards.GetBoard(ctx, principal(r), boardID)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, board)
}

// DELETE /api/boards/{id} (team admins only)
func (h *Handler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathID(r)
	if !ok {
		shared.SendError(w, "Invalid board ID", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.Boards.DeleteBoard(ctx, principal(r), boardID); err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/teams/{id}/boards
func (h *Handler) ListTeamBoards(w http.ResponseWriter, r *http.Request) {
	teamID, ok := pathID(r)
	if !ok {
		shared.SendError(w, "Invalid team ID", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	boards, err := h.Boards.ListTeamBoards(ctx, principal(r), teamID)
	if err != nil {
		h.sendServiceError(w, r, err)
		return
	}
	shared.SendJSON(w, http.StatusOK, boards)
}
