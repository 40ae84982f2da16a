package cmd

import (
	"context"
	"fmt"

	"github.com/chepyr/team-kanban/internal/logger"
	"github.com/chepyr/team-kanban/tasks-service/db"
	"github.com/chepyr/team-kanban/tasks-service/provision"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage teams and memberships",
}

func init() {
	userAdd := &cobra.Command{
		Use:   "add",
		Short: "Create an active user",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			return withProvisioner(cmd, func(ctx context.Context, p *provision.Provisioner) error {
				user, err := p.AddUser(ctx, email, name)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), user.ID)
				return nil
			})
		},
	}
	userAdd.Flags().String("email", "", "user email (required)")
	userAdd.Flags().String("name", "", "display name, defaults to the email")
	userAdd.MarkFlagRequired("email")

	userCmd.AddCommand(userAdd, setActiveCmd("activate", true), setActiveCmd("deactivate", false))

	teamAdd := &cobra.Command{
		Use:   "add",
		Short: "Create a team",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			description, _ := cmd.Flags().GetString("description")
			return withProvisioner(cmd, func(ctx context.Context, p *provision.Provisioner) error {
				team, err := p.AddTeam(ctx, name, description)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), team.ID)
				return nil
			})
		},
	}
	teamAdd.Flags().String("name", "", "team name (required)")
	teamAdd.Flags().String("description", "", "team description")
	teamAdd.MarkFlagRequired("name")

	teamMember := &cobra.Command{
		Use:   "member <team-id> <user-id> <viewer|editor|admin>",
		Short: "Grant a role in a team, replacing any previous role",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID, userID, err := parseIDs(args[0], args[1])
			if err != nil {
				return err
			}
			return withProvisioner(cmd, func(ctx context.Context, p *provision.Provisioner) error {
				return p.SetMember(ctx, userID, teamID, args[2])
			})
		},
	}

	teamRemove := &cobra.Command{
		Use:   "remove-member <team-id> <user-id>",
		Short: "Remove a user from a team",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID, userID, err := parseIDs(args[0], args[1])
			if err != nil {
				return err
			}
			return withProvisioner(cmd, func(ctx context.Context, p *provision.Provisioner) error {
				return p.RemoveMember(ctx, userID, teamID)
			})
		},
	}

	teamCmd.AddCommand(teamAdd, teamMember, teamRemove)
	rootCmd.AddCommand(userCmd, teamCmd)
}

func setActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: "Mark a user as " + map[bool]string{true: "active", false: "inactive"}[active],
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("user id: %w", err)
			}
			return withProvisioner(cmd, func(ctx context.Context, p *provision.Provisioner) error {
				return p.SetUserActive(ctx, id, active)
			})
		},
	}
}

func parseIDs(team, user string) (uuid.UUID, uuid.UUID, error) {
	teamID, err := uuid.Parse(team)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("team id: %w", err)
	}
	userID, err := uuid.Parse(user)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("user id: %w", err)
	}
	return teamID, userID, nil
}

// withProvisioner opens the configured store, brings the schema up to date
// and runs fn.
func withProvisioner(cmd *cobra.Command, fn func(context.Context, *provision.Provisioner) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.NewLogger(serviceName, cfg.Env)
	defer log.Sync()

	ctx := cmd.Context()
	dbConn, err := db.Connect(ctx, cfg.DBDriver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()
	if err := db.Migrate(ctx, dbConn); err != nil {
		return err
	}
	return fn(ctx, provision.New(db.NewUserRepository(dbConn), db.NewTeamRepository(dbConn), log))
}
