package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/tandem/internal/metrics"
	"github.com/Iron-Ham/tandem/internal/orchestrator"
	"github.com/Iron-Ham/tandem/internal/styles"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the preload and main packages once for production",
	Long: `Build the preload and main packages once in production mode.

No preview server is started and the application is not launched.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	orch, err := orchestrator.New(cfg,
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics.New()),
	)
	if err != nil {
		return err
	}
	if err := orch.Build(cmd.Context()); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), styles.Success("build complete"))
	return nil
}
