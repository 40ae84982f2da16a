package service

import (
	"errors"
	"fmt"

	"github.com/chepyr/team-kanban/internal/access"
	"github.com/chepyr/team-kanban/internal/ordering"
	"github.com/chepyr/team-kanban/tasks-service/db"
)

// Every error returned by the services wraps exactly one of these, so
// callers can branch with errors.Is.
var (
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrValidation  = errors.New("validation failed")
	ErrPersistence = errors.New("persistence failure")
)

// Validation errors
var (
	ErrEmptyTitle       = errors.New("title cannot be empty")
	ErrTitleTooLong     = errors.New("title cannot exceed 255 characters")
	ErrUnknownColumn    = errors.New("column does not exist on board")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrInvalidType      = errors.New("invalid task type")
	ErrNegativeHours    = errors.New("hours must be >= 0")
	ErrInvalidParent    = errors.New("parent task must be another task on the same board")
	ErrNotNullable      = errors.New("field cannot be null")
	ErrInvalidColumns   = errors.New("columns must have unique, non-empty ids")
	ErrEmptyBoardName   = errors.New("board name cannot be empty")
	ErrBoardNameTooLong = errors.New("board name cannot exceed 100 characters")
	ErrInvalidPage      = errors.New("limit must be 0..100 and offset >= 0")
)

func validation(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func forbidden(err error) error {
	return fmt.Errorf("%w: %w", ErrForbidden, err)
}

// storeError classifies an error coming back from the store or a
// transaction body. Errors already carrying a service sentinel pass
// through untouched.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden),
		errors.Is(err, ErrValidation), errors.Is(err, ErrPersistence):
		return err
	case errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	case errors.Is(err, ordering.ErrNegativePosition):
		return fmt.Errorf("%s: %w", op, validation(err))
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

// authError turns a membership failure into ErrForbidden; lookup failures
// stay persistence errors.
func authError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, access.ErrNotMember), errors.Is(err, access.ErrInsufficientRole),
		errors.Is(err, access.ErrInactivePrincipal):
		return forbidden(err)
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
