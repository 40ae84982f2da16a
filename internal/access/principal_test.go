package access

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chepyr/team-kanban/shared/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[uuid.UUID]models.User

func (f fakeUsers) FindUser(_ context.Context, id uuid.UUID) (models.User, bool, error) {
	u, ok := f[id]
	return u, ok, nil
}

var testSecret = []byte(strings.Repeat("s", 32))

func sign(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestPrincipalResolver_Authenticate(t *testing.T) {
	active := models.User{ID: uuid.New(), IsActive: true}
	inactive := models.User{ID: uuid.New(), IsActive: false}
	r := NewPrincipalResolver(PrincipalConfig{Secret: testSecret}, fakeUsers{
		active.ID:   active,
		inactive.ID: inactive,
	})
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).Unix()

	t.Run("valid bearer token", func(t *testing.T) {
		tok := sign(t, testSecret, jwt.MapClaims{"sub": active.ID.String(), "exp": exp})
		p, err := r.Authenticate(ctx, "Bearer "+tok)
		require.NoError(t, err)
		assert.Equal(t, active.ID, p.ID)
		assert.True(t, p.IsActive)
	})

	t.Run("raw token without prefix", func(t *testing.T) {
		tok := sign(t, testSecret, jwt.MapClaims{"sub": active.ID.String(), "exp": exp})
		_, err := r.Authenticate(ctx, tok)
		require.NoError(t, err)
	})

	t.Run("inactive user", func(t *testing.T) {
		tok := sign(t, testSecret, jwt.MapClaims{"sub": inactive.ID.String(), "exp": exp})
		_, err := r.Authenticate(ctx, tok)
		assert.ErrorIs(t, err, ErrInactivePrincipal)
	})

	cases := map[string]string{
		"empty":        "",
		"garbage":      "obviously.invalid.token",
		"wrong secret": sign(t, []byte(strings.Repeat("x", 32)), jwt.MapClaims{"sub": active.ID.String(), "exp": exp}),
		"missing exp":  sign(t, testSecret, jwt.MapClaims{"sub": active.ID.String()}),
		"expired":      sign(t, testSecret, jwt.MapClaims{"sub": active.ID.String(), "exp": time.Now().Add(-time.Hour).Unix()}),
		"missing sub":  sign(t, testSecret, jwt.MapClaims{"exp": exp}),
		"sub not uuid": sign(t, testSecret, jwt.MapClaims{"sub": "someone@example.com", "exp": exp}),
		"unknown user": sign(t, testSecret, jwt.MapClaims{"sub": uuid.NewString(), "exp": exp}),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := r.Authenticate(ctx, tok)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	p := Principal{ID: uuid.New(), IsActive: true}
	got, ok := PrincipalFrom(WithPrincipal(context.Background(), p))
	require.True(t, ok)
	assert.Equal(t, p, got)
}
