package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chepyr/team-kanban/shared/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrUnauthenticated   = errors.New("could not validate credentials")
	ErrInactivePrincipal = errors.New("inactive user")
)

// Principal is the authenticated caller of a request.
type Principal struct {
	ID       uuid.UUID
	IsActive bool
}

type UserStore interface {
	FindUser(ctx context.Context, id uuid.UUID) (models.User, bool, error)
}

// PrincipalConfig is fixed at startup and handed to the resolver.
type PrincipalConfig struct {
	Secret []byte
	Leeway time.Duration
}

type PrincipalResolver struct {
	cfg   PrincipalConfig
	users UserStore
}

func NewPrincipalResolver(cfg PrincipalConfig, users UserStore) *PrincipalResolver {
	return &PrincipalResolver{cfg: cfg, users: users}
}

// Authenticate validates an HS256 bearer token (sub = user id, exp
// required) and loads the user behind it. Inactive users are rejected.
func (r *PrincipalResolver) Authenticate(ctx context.Context, credential string) (Principal, error) {
	tokenString := strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if tokenString == "" {
		return Principal{}, ErrUnauthenticated
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return r.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(r.cfg.Leeway),
	)
	if err != nil || !token.Valid {
		return Principal{}, ErrUnauthenticated
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return Principal{}, ErrUnauthenticated
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}

	user, found, err := r.users.FindUser(ctx, userID)
	if err != nil {
		return Principal{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	if !found {
		return Principal{}, ErrUnauthenticated
	}
	if !user.IsActive {
		return Principal{ID: user.ID}, ErrInactivePrincipal
	}
	return Principal{ID: user.ID, IsActive: true}, nil
}

type ContextKey string

const PrincipalContextKey ContextKey = "principal"

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(Principal)
	return p, ok
}
