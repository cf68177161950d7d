package cmd

import (
	"context"
	"fmt"

	"github.com/conneroisu/viewpack/internal/compiler"
	"github.com/conneroisu/viewpack/internal/config"
	"github.com/conneroisu/viewpack/internal/fragment"
	"github.com/conneroisu/viewpack/internal/logging"
	"github.com/spf13/cobra"
)

// commandContext returns the command's context, or a background context when
// the command was not started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// viewsFilter builds the fragment filter from the include and exclude lists.
func viewsFilter(cfg *config.Config) (fragment.Filter, error) {
	filter, err := fragment.NewFilter(cfg.Views.Include, cfg.Views.Exclude)
	if err != nil {
		return fragment.Filter{}, fmt.Errorf("invalid views patterns: %w", err)
	}
	return filter, nil
}

// newCompiler creates a compiler for the configured views directory.
func newCompiler(cfg *config.Config, logger logging.Logger) (*compiler.Compiler, error) {
	filter, err := viewsFilter(cfg)
	if err != nil {
		return nil, err
	}
	return compiler.New(compiler.Options{
		ViewsDir:        cfg.Views.Dir,
		Output:          cfg.Views.Output,
		Wait:            cfg.Views.Wait(),
		ReadConcurrency: cfg.Views.ReadConcurrency,
		CacheSize:       cfg.Views.CacheSize,
		Filter:          filter,
	}, logger)
}

// guardViews reports whether the views directory can be used. A missing
// directory is logged and skipped unless require_dir is set, in which case
// the configuration error is returned.
func guardViews(ctx context.Context, cfg *config.Config, logger logging.Logger) (bool, error) {
	err := compiler.CheckDir(cfg.Views.Dir)
	if err == nil {
		return true, nil
	}
	if cfg.Views.RequireDir {
		return false, err
	}
	logger.Warn(ctx, err, "Views directory unavailable, nothing to do", "dir", cfg.Views.Dir)
	return false, nil
}
