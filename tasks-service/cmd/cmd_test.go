package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chepyr/team-kanban/tasks-service/db"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--env-file", ""))
	require.NoError(t, Execute(context.Background()), "args=%v", args)
	return strings.TrimSpace(out.String())
}

func TestProvisioningCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kanban.db")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", path)
	t.Setenv("JWT_SECRET", strings.Repeat("c", 32))
	t.Setenv("APP_ENV", "test")

	run(t, "migrate")
	userID, err := uuid.Parse(run(t, "user", "add", "--email", "dev@example.com", "--name", "Dev"))
	require.NoError(t, err)
	teamID, err := uuid.Parse(run(t, "team", "add", "--name", "Platform"))
	require.NoError(t, err)
	run(t, "team", "member", teamID.String(), userID.String(), "editor")
	run(t, "user", "deactivate", userID.String())

	ctx := context.Background()
	conn, err := db.Connect(ctx, db.DriverSQLite, "file:"+path)
	require.NoError(t, err)
	defer conn.Close()

	m, found, err := db.NewTeamRepository(conn).FindMembership(ctx, userID, teamID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "editor", m.Role)

	user, found, err := db.NewUserRepository(conn).FindUser(ctx, userID)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, user.IsActive)
}

func TestTeamMember_RejectsBadArguments(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "kanban.db"))
	t.Setenv("JWT_SECRET", strings.Repeat("c", 32))

	rootCmd.SetArgs([]string{"team", "member", "not-a-uuid", uuid.NewString(), "editor", "--env-file", ""})
	assert.ErrorContains(t, Execute(context.Background()), "team id")
}
