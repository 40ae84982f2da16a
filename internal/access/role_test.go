package access

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermits_AllCombinations(t *testing.T) {
	roles := []Role{RoleViewer, RoleEditor, RoleAdmin}
	rank := map[Role]int{RoleViewer: 0, RoleEditor: 1, RoleAdmin: 2}

	for _, actual := range roles {
		for _, required := range roles {
			want := rank[actual] >= rank[required]
			assert.Equal(t, want, Permits(actual, required), "Permits(%s, %s)", actual, required)
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, name := range []string{"viewer", "editor", "admin"} {
		r, err := ParseRole(name)
		require.NoError(t, err)
		assert.Equal(t, name, r.String())
	}

	for _, bad := range []string{"", "Admin", "owner", " editor"} {
		_, err := ParseRole(bad)
		assert.ErrorIs(t, err, ErrUnknownRole, "ParseRole(%q)", bad)
	}
}

func TestRole_JSONRejectsUnknownValues(t *testing.T) {
	var payload struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"editor"}`), &payload))
	assert.Equal(t, RoleEditor, payload.Role)

	err := json.Unmarshal([]byte(`{"role":"superuser"}`), &payload)
	assert.ErrorIs(t, err, ErrUnknownRole)

	out, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{RoleAdmin})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"admin"}`, string(out))
}
