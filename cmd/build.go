package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/conneroisu/viewpack/internal/config"
	"github.com/conneroisu/viewpack/internal/logging"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Generate the views module once",
	Long: `Read every fragment in the views directory, minify it and write the
generated module. The previous module is replaced atomically.

Examples:
  viewpack build                          # src/views -> src/views.js
  viewpack build --views web/views -o web/views.js`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := buildFlags.ValidateFlags(); err != nil {
			return err
		}
		return SetViperBindings(cmd, viewsBindings)
	},
	RunE: runBuild,
}

var buildFlags *StandardFlags

func init() {
	rootCmd.AddCommand(buildCmd)

	buildFlags = AddStandardFlags(buildCmd, "views", "verbosity")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(buildFlags)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return buildViews(ctx, cfg, logger)
}

// buildViews writes the module for the current contents of the views
// directory.
func buildViews(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	ok, err := guardViews(ctx, cfg, logger)
	if !ok {
		return err
	}

	c, err := newCompiler(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Build(ctx); err != nil {
		return err
	}

	stats := c.Stats()
	logger.Info(ctx, "Build complete",
		"fragments", c.Store().Count(),
		"output", cfg.Views.Output,
		"read_failures", stats.ReadFailures,
	)
	return nil
}
