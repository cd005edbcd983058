package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/tandem/internal/metrics"
	"github.com/Iron-Ham/tandem/internal/orchestrator"
	"github.com/Iron-Ham/tandem/internal/provider"
	"github.com/Iron-Ham/tandem/internal/styles"
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Start the preview server and watch every package",
	Long: `Start the renderer preview server, then build the preload and main
packages in watch mode and launch the application.

Preload rebuilds reload the connected renderer pages. Main rebuilds restart
the application. Tandem exits with the application's exit status when it
quits on its own, or cleanly on Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runDev,
}

func runDev(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := orchestrator.New(cfg,
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(metrics.New()),
		orchestrator.WithStartHook(func(run *orchestrator.Run) {
			printBanner(cmd.OutOrStdout(), styles.Banner{
				Mode:      cfg.Mode,
				Pipelines: run.Registry().Pipelines(),
			}, run.URLs())
		}),
	)
	if err != nil {
		return err
	}

	code, err := orch.Dev(ctx)
	if err != nil {
		return err
	}
	return exitStatus(code)
}

// printBanner writes the session banner, capped to the terminal width when
// w is a terminal.
func printBanner(w io.Writer, b styles.Banner, urls *provider.URLs) {
	if urls != nil {
		b.Local = urls.Local
		b.Network = urls.Network
	}

	width := 0
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if termWidth, _, err := term.GetSize(int(f.Fd())); err == nil {
			width = termWidth
		}
	}
	_, _ = fmt.Fprintln(w, b.Render(width))
}
