package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/chepyr/team-kanban/shared/models"
	"github.com/google/uuid"
)

var (
	ErrNotMember        = errors.New("not a member of this team")
	ErrInsufficientRole = errors.New("insufficient permissions")
)

// MembershipStore is the persisted (user, team, role) relation.
type MembershipStore interface {
	FindMembership(ctx context.Context, userID, teamID uuid.UUID) (models.Membership, bool, error)
}

// MembershipResolver answers "what role does this user hold in this team".
// Nothing is cached: role changes apply to the very next request.
type MembershipResolver struct {
	store MembershipStore
}

func NewMembershipResolver(store MembershipStore) *MembershipResolver {
	return &MembershipResolver{store: store}
}

func (r *MembershipResolver) Resolve(ctx context.Context, userID, teamID uuid.UUID) (Role, error) {
	m, found, err := r.store.FindMembership(ctx, userID, teamID)
	if err != nil {
		return 0, fmt.Errorf("find membership: %w", err)
	}
	if !found {
		return 0, ErrNotMember
	}
	role, err := ParseRole(m.Role)
	if err != nil {
		return 0, fmt.Errorf("membership %s/%s: %w", userID, teamID, err)
	}
	return role, nil
}

// Require resolves the user's role and fails with ErrNotMember or
// ErrInsufficientRole unless it permits required.
func (r *MembershipResolver) Require(ctx context.Context, userID, teamID uuid.UUID, required Role) (Role, error) {
	role, err := r.Resolve(ctx, userID, teamID)
	if err != nil {
		return 0, err
	}
	if !Permits(role, required) {
		return role, fmt.Errorf("%w: required %s, have %s", ErrInsufficientRole, required, role)
	}
	return role, nil
}
