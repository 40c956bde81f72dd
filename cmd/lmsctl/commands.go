package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/internal/shadow"
	"github.com/noah-isme/lms-api/pkg/config"
	"github.com/noah-isme/lms-api/pkg/database"
	"github.com/noah-isme/lms-api/pkg/logger"
)

// errBreakingDiffs makes shadow-compare exit non-zero.
var errBreakingDiffs = errors.New("critical endpoints diverged")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "lmsctl",
		Short:        "Operational tooling for the LMS API",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(), newSeedAdminCmd(), newShadowCompareCmd())
	return root
}

// withDatabase loads config, opens postgres and hands both to fn.
func withDatabase(ctx context.Context, fn func(*config.Config, *sqlx.DB, *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	return fn(cfg, db, logr)
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|redo|reset]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{database.MigrateUp, database.MigrateDown, database.MigrateStatus, database.MigrateRedo, database.MigrateReset},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(_ *config.Config, db *sqlx.DB, logr *zap.Logger) error {
				if err := database.Migrate(db.DB, args[0]); err != nil {
					return err
				}
				logr.Info("migration finished", zap.String("command", args[0]))
				return nil
			})
		},
	}
}

type seedAdminOptions struct {
	email     string
	password  string
	username  string
	firstName string
	lastName  string
}

func newSeedAdminCmd() *cobra.Command {
	opts := seedAdminOptions{}
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the first admin account",
		Long:  "Creates an admin account. Fails once any admin exists, matching the public admin sign-up rule.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(cfg *config.Config, db *sqlx.DB, logr *zap.Logger) error {
				return seedAdmin(cmd.Context(), cfg, db, logr, opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.email, "email", "", "admin email")
	cmd.Flags().StringVar(&opts.password, "password", "", "admin password (min 6 characters)")
	cmd.Flags().StringVar(&opts.username, "username", "", "login name, defaults to the email local part")
	cmd.Flags().StringVar(&opts.firstName, "first-name", "Platform", "first name")
	cmd.Flags().StringVar(&opts.lastName, "last-name", "Admin", "last name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func seedAdmin(ctx context.Context, cfg *config.Config, db *sqlx.DB, logr *zap.Logger, opts seedAdminOptions) error {
	username := opts.username
	if username == "" {
		username, _, _ = strings.Cut(opts.email, "@")
	}

	users := repository.NewUserRepository(db)
	auth := service.NewAuthService(users, nil, validator.New(), logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})
	info, err := auth.Register(ctx, models.RegisterRequest{
		FirstName: opts.firstName,
		LastName:  opts.lastName,
		Email:     opts.email,
		Username:  username,
		Password:  opts.password,
		Role:      models.RoleAdmin,
	})
	if err != nil {
		return err
	}
	logr.Info("admin created", zap.String("id", info.ID), zap.String("email", info.Email))
	return nil
}

type shadowOptions struct {
	legacy      string
	next        string
	legacyToken string
	goToken     string
	targets     string
	timeout     time.Duration
}

func newShadowCompareCmd() *cobra.Command {
	opts := shadowOptions{}
	cmd := &cobra.Command{
		Use:   "shadow-compare",
		Short: "Compare read endpoints of the legacy backend with this service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			targets, err := shadow.LoadTargets(opts.targets)
			if err != nil {
				return err
			}
			comparer := shadow.NewComparer(
				&http.Client{Timeout: opts.timeout},
				shadow.Endpoint{BaseURL: opts.legacy, Token: opts.legacyToken},
				shadow.Endpoint{BaseURL: opts.next, Token: opts.goToken},
			)
			results, summary := comparer.Run(cmd.Context(), targets)
			shadow.WriteReport(cmd.OutOrStdout(), results, summary)
			if summary.Breaking > 0 {
				return errBreakingDiffs
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.legacy, "legacy", "http://localhost:3000", "legacy API base URL")
	cmd.Flags().StringVar(&opts.next, "go", "http://localhost:8080", "Go API base URL")
	cmd.Flags().StringVar(&opts.legacyToken, "legacy-token", "", "bearer token for the legacy API")
	cmd.Flags().StringVar(&opts.goToken, "go-token", "", "bearer token for the Go API")
	cmd.Flags().StringVar(&opts.targets, "targets", "scripts/shadow_targets.json", "JSON targets file")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "per request timeout")
	return cmd
}
