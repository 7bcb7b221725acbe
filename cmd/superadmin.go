package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pixelvault/apiserver/config"
	"github.com/pixelvault/apiserver/internal/db"
	"github.com/pixelvault/apiserver/internal/services"
	"github.com/pixelvault/apiserver/internal/store"
)

var (
	superAdminUsername  string
	superAdminEmail     string
	superAdminPassword  string
	superAdminFirstName string
	superAdminLastName  string
)

// superAdminCmd bootstraps accounts that hold every capability. Super admins
// cannot be created over HTTP.
var superAdminCmd = &cobra.Command{
	Use:   "superadmin",
	Short: "Manage super admin accounts",
}

var superAdminPromoteCmd = &cobra.Command{
	Use:   "promote <username>",
	Short: "Mark an existing account as super admin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadConfig()
		return withDatabase(cmd.Context(), cfg, func(conn *sql.DB) error {
			users := store.NewUserRepository(conn)
			user, err := users.GetByUsername(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("find user %q: %w", args[0], err)
			}
			if err := users.PromoteSuperAdmin(cmd.Context(), user.ID); err != nil {
				return fmt.Errorf("promote %q: %w", args[0], err)
			}
			logger.Info().Str("user_id", user.ID.String()).Str("username", user.Username).Msg("promoted to super admin")
			return nil
		})
	},
}

var superAdminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new super admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := loadConfig()
		return withDatabase(cmd.Context(), cfg, func(conn *sql.DB) error {
			return createSuperAdmin(cmd.Context(), cfg, conn, logger)
		})
	},
}

func createSuperAdmin(ctx context.Context, cfg config.Config, conn *sql.DB, logger zerolog.Logger) error {
	users := store.NewUserRepository(conn)
	auth := services.NewAuthService(users, store.NewSessionRepository(conn),
		services.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL), logger,
		services.WithBcryptCost(cfg.Auth.BcryptCost),
	)
	user, err := auth.SignUp(ctx, services.SignUpInput{
		Username:  superAdminUsername,
		Password:  superAdminPassword,
		Email:     superAdminEmail,
		FirstName: superAdminFirstName,
		LastName:  superAdminLastName,
	})
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	if err := users.PromoteSuperAdmin(ctx, user.ID); err != nil {
		return fmt.Errorf("promote %q: %w", user.Username, err)
	}
	logger.Info().Str("user_id", user.ID.String()).Str("username", user.Username).Msg("super admin created")
	return nil
}

func withDatabase(ctx context.Context, cfg config.Config, fn func(*sql.DB) error) error {
	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()
	return fn(conn)
}

func init() {
	rootCmd.AddCommand(superAdminCmd)
	superAdminCmd.AddCommand(superAdminPromoteCmd)
	superAdminCmd.AddCommand(superAdminCreateCmd)

	flags := superAdminCreateCmd.Flags()
	flags.StringVar(&superAdminUsername, "username", "", "account username")
	flags.StringVar(&superAdminEmail, "email", "", "account email")
	flags.StringVar(&superAdminPassword, "password", "", "account password")
	flags.StringVar(&superAdminFirstName, "first-name", "Super", "first name")
	flags.StringVar(&superAdminLastName, "last-name", "Admin", "last name")
	_ = superAdminCreateCmd.MarkFlagRequired("username")
	_ = superAdminCreateCmd.MarkFlagRequired("email")
	_ = superAdminCreateCmd.MarkFlagRequired("password")
}
