package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chepyr/team-kanban/internal/access"
	"github.com/chepyr/team-kanban/internal/logger"
	"github.com/chepyr/team-kanban/shared/models"
	"github.com/google/uuid"
)

const maxBoardNameLength = 100

type BoardService struct {
	boards  BoardStore
	members *access.MembershipResolver
	log     *logger.Logger
	now     func() time.Time
}

func NewBoardService(boards BoardStore, members *access.MembershipResolver, log *logger.Logger) *BoardService {
	return &BoardService{
		boards:  boards,
		members: members,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateBoardRequest creates a board for TeamID. Without columns the board
// gets the default lifecycle columns.
type CreateBoardRequest struct {
	TeamID      uuid.UUID       `json:"team_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Columns     []models.Column `json:"columns"`
}

func (s *BoardService) GetBoard(ctx context.Context, actor access.Principal, boardID uuid.UUID) (*models.Board, error) {
	board, err := s.boards.GetByID(ctx, boardID)
	if err != nil {
		return nil, storeError("load board", err)
	}
	if err := authorize(ctx, s.members, actor, board.TeamID, access.RoleViewer); err != nil {
		return nil, err
	}
	return board, nil
}

func (s *BoardService) ListTeamBoards(ctx context.Context, actor access.Principal, teamID uuid.UUID) ([]*models.Board, error) {
	if err := authorize(ctx, s.members, actor, teamID, access.RoleViewer); err != nil {
		return nil, err
	}
	boards, err := s.boards.ListByTeamID(ctx, teamID)
	if err != nil {
		return nil, storeError("list boards", err)
	}
	if boards == nil {
		boards = []*models.Board{}
	}
	return boards, nil
}

// CreateBoard requires the admin role in the owning team.
func (s *BoardService) CreateBoard(ctx context.Context, actor access.Principal, req CreateBoardRequest) (*models.Board, error) {
	if err := authorize(ctx, s.members, actor, req.TeamID, access.RoleAdmin); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validation(ErrEmptyBoardName)
	}
	if len(name) > maxBoardNameLength {
		return nil, validation(ErrBoardNameTooLong)
	}
	columns, err := normalizeColumns(req.Columns)
	if err != nil {
		return nil, err
	}

	now := s.now()
	board := &models.Board{
		ID:          uuid.New(),
		TeamID:      req.TeamID,
		Name:        name,
		Description: req.Description,
		Columns:     columns,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.boards.Create(ctx, board); err != nil {
		s.log.Error("create board failed", "team_id", req.TeamID, "error", err)
		return nil, storeError("create board", err)
	}
	s.log.WithContext(ctx).WithUser(actor.ID.String()).Audit("board created", "board_id", board.ID, "team_id", board.TeamID)
	return board, nil
}

// DeleteBoard removes the board together with its tasks.
func (s *BoardService) DeleteBoard(ctx context.Context, actor access.Principal, boardID uuid.UUID) error {
	board, err := s.boards.GetByID(ctx, boardID)
	if err != nil {
		return storeError("load board", err)
	}
	if err := authorize(ctx, s.members, actor, board.TeamID, access.RoleAdmin); err != nil {
		return err
	}
	if err := s.boards.Delete(ctx, boardID); err != nil {
		return storeError("delete board", err)
	}
	s.log.WithContext(ctx).WithUser(actor.ID.String()).Audit("board deleted", "board_id", boardID, "team_id", board.TeamID)
	return nil
}

func normalizeColumns(in []models.Column) ([]models.Column, error) {
	if len(in) == 0 {
		return models.DefaultColumns(), nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]models.Column, 0, len(in))
	for i, c := range in {
		c.ID = strings.TrimSpace(c.ID)
		if c.ID == "" || seen[c.ID] {
			return nil, validation(fmt.Errorf("%w: column %d", ErrInvalidColumns, i))
		}
		seen[c.ID] = true
		if c.Name == "" {
			c.Name = c.ID
		}
		c.Order = i
		out = append(out, c)
	}
	return out, nil
}
