package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/casekit/pkg/auth"
	"github.com/dmitrymomot/casekit/pkg/config"
	"github.com/dmitrymomot/casekit/pkg/httpserver"
	"github.com/dmitrymomot/casekit/pkg/logger"
	"github.com/dmitrymomot/casekit/pkg/pg"
	"github.com/dmitrymomot/casekit/pkg/tenant"
	"github.com/dmitrymomot/casekit/pkg/tenant/pgstore"
)

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:          "caseserver",
		Short:        "Tenant-isolated case management server.",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if envFile == "" {
				return nil
			}
			return config.LoadEnv(envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file before reading configuration")

	cmd.AddCommand(serveCmd(), migrateCmd(), seedCmd(), tokenCmd())
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default command).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Parse[appConfig]()
	if err != nil {
		return err
	}

	log := newLogger(cfg.Log)
	logger.SetAsDefault(log)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "failed to start", logger.Component("caseserver"), logger.Error(err))
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.close(closeCtx)
	}()

	srv := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithoutSignals(),
	)
	return srv.Run(ctx, a.routes())
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the tenancy schema migrations to Postgres.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withPostgres(ctx, func(ctx context.Context, d *deps, log *slog.Logger) error {
				return pg.Migrate(ctx, d.pg, pgstore.Migrations, pgstore.MigrationsDir, d.pgCfg, log)
			})
		},
	}
}

func seedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load organizations and memberships from a YAML file into Postgres.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			seed, err := tenant.LoadSeedFile(file)
			if err != nil {
				return err
			}
			return withPostgres(cmd.Context(), func(ctx context.Context, d *deps, log *slog.Logger) error {
				if err := seed.ApplyTo(ctx, pgstore.NewWriter(d.pg)); err != nil {
					return err
				}
				log.InfoContext(ctx, "seed applied",
					logger.Component("caseserver"),
					slog.Int("organizations", len(seed.Organizations)),
					slog.Int("memberships", len(seed.Memberships)),
				)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to the seed YAML document")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		user      string
		superuser bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for a user.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(user)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			cfg, err := config.Parse[auth.Config]()
			if err != nil {
				return err
			}
			svc, err := auth.NewService(cfg)
			if err != nil {
				return err
			}
			token, err := svc.Issue(auth.Identity{UserID: id, Superuser: superuser})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User id (UUID) the token is issued to")
	cmd.Flags().BoolVar(&superuser, "superuser", false, "Grant the superuser claim")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// withPostgres runs fn against a Postgres connection built from the environment.
func withPostgres(ctx context.Context, fn func(context.Context, *deps, *slog.Logger) error) error {
	logCfg, err := config.Parse[logger.Config]()
	if err != nil {
		return err
	}
	log := newLogger(logCfg)

	d, err := connect(ctx, appConfig{Backends: backendsConfig{TenantStore: storePostgres}}, log)
	if err != nil {
		return err
	}
	defer d.close(context.WithoutCancel(ctx), log)

	if err := fn(ctx, d, log); err != nil {
		log.ErrorContext(ctx, "command failed", logger.Component("caseserver"), logger.Error(err))
		return errors.Join(errCommandFailed, err)
	}
	return nil
}

var errCommandFailed = errors.New("caseserver: command failed")
