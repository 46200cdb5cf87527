// Package cli implements the virementsctl administration commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/supratours/virements/internal/app"
	"github.com/supratours/virements/internal/platform/db"
)

// NewRootCommand assembles the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "virementsctl",
		Short: "Administration commands for the virements back office",
		Long: `virementsctl runs maintenance tasks against the virements database and
job queue: schema migrations, payment order reconciliation, digest mails,
user accounts and queue inspection.

Configuration is read from the same environment variables as the server
(PG_DSN, REDIS_ADDR, ...), with an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCommand(),
		newReconcileCommand(),
		newDigestCommand(),
		newCreateUserCommand(),
		newJobsCommand(),
		newPurgeIdempotencyCommand(),
	)
	return root
}

// env carries what most commands need.
type env struct {
	cfg    *app.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
}

func loadConfig() (*app.Config, *slog.Logger, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, app.NewLogger(cfg), nil
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, pool: pool}, nil
}

func (e *env) Close() {
	if e != nil && e.pool != nil {
		e.pool.Close()
	}
}
