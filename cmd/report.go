package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
	"github.com/a11yscope/a11yscope-cli/internal/config"
	"github.com/a11yscope/a11yscope-cli/internal/observability"
	"github.com/a11yscope/a11yscope-cli/internal/store"
)

// storeProvider abstracts store construction so tests can inject a mock
// instead of a live database connection.
type storeProvider interface {
	// Create initializes a schemas.Store and a cleanup function that
	// releases its resources.
	Create(ctx context.Context, cfg *config.Config) (schemas.Store, func(), error)
}

// defaultStoreProvider connects to the real PostgreSQL database.
type defaultStoreProvider struct{}

// NewStoreProvider creates the production store provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to PostgreSQL using the configured URL and returns the
// store service plus a cleanup that closes the pool.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg *config.Config) (schemas.Store, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (A11YSCOPE_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storeService, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return storeService, cleanup, nil
}

// newReportCmd creates and configures the `report` command.
func newReportCmd(provider storeProvider) *cobra.Command {
	var runID string
	var outputPath string
	var format string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Re-render a persisted review run",
		Long: `Loads a previously persisted review run from the database and renders it
in the requested format.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			return runReport(ctx, logger, cfg, runID, outputPath, format, provider)
		},
	}

	reportCmd.Flags().StringVar(&runID, "run-id", "", "The ID of the run to render (required)")
	_ = reportCmd.MarkFlagRequired("run-id")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. Defaults to stdout.")
	reportCmd.Flags().StringVarP(&format, "format", "f", "text", "Report format: 'text' or 'json'.")

	return reportCmd
}

// runReport contains the core, testable logic for re-rendering a run.
func runReport(
	ctx context.Context,
	logger *zap.Logger,
	cfg *config.Config,
	runID, outputPath, format string,
	provider storeProvider,
) error {
	logger.Info("Rendering persisted run", zap.String("run_id", runID))

	storeService, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	report, err := storeService.GetReport(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	return writeReport(logger, report, outputPath, format)
}
