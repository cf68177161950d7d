package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/viewpack/internal/config"
	"github.com/conneroisu/viewpack/internal/logging"
	"github.com/conneroisu/viewpack/internal/watcher"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Watch the views directory and keep the generated module current",
	Long: `Watch the views directory and keep the generated module up to date.

Edits to an existing fragment are written immediately. Added and removed
fragments trigger a full regeneration once the tree has been quiet for the
debounce window, so a burst of changes produces a single write.

Examples:
  viewpack watch                          # Watch src/views, write src/views.js
  viewpack watch --views web/views -o web/views.js
  viewpack watch --wait 250 --verbose     # Shorter debounce, debug logging
  viewpack watch --require-dir            # Fail if the views directory is missing`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := watchFlags.ValidateFlags(); err != nil {
			return err
		}
		return SetViperBindings(cmd, viewsBindings)
	},
	RunE: runWatch,
}

var watchFlags *StandardFlags

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags = AddStandardFlags(watchCmd, "views", "watch", "verbosity")
	AddFlagValidation(watchCmd, "wait", ValidateMillis)
	AddFlagValidation(watchCmd, "settle", ValidateMillis)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(watchFlags)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watchViews(ctx, cfg, logger)
}

// watchViews runs the compile loop until ctx is cancelled or a fatal error
// occurs.
func watchViews(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	ok, err := guardViews(ctx, cfg, logger)
	if !ok {
		return err
	}

	c, err := newCompiler(cfg, logger)
	if err != nil {
		return err
	}
	c.Seed(ctx)

	filter, err := viewsFilter(cfg)
	if err != nil {
		return err
	}
	w, err := watcher.New(cfg.Views.Dir, watcher.Options{
		Settle: cfg.Views.Settle(),
		Filter: filter,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil {
			logger.Warn(context.Background(), cerr, "Failed to close watcher")
		}
	}()

	if err := w.Start(ctx); err != nil {
		return err
	}
	logger.Info(ctx, "Watching views",
		"dir", c.Root(),
		"output", cfg.Views.Output,
		"wait", cfg.Views.Wait(),
	)

	err = c.Run(ctx, w)

	stats := c.Stats()
	logger.Info(context.Background(), "Stopped watching",
		"regenerations", stats.Regenerations,
		"immediate_updates", stats.ImmediateUpdates,
		"read_failures", stats.ReadFailures,
		"writes", stats.Writes,
		"entries_added", stats.EntriesAdded,
		"entries_updated", stats.EntriesUpdated,
		"entries_removed", stats.EntriesRemoved,
	)
	return err
}
