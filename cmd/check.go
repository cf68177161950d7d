package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/conneroisu/viewpack/internal/compiler"
	"github.com/conneroisu/viewpack/internal/config"
	"github.com/conneroisu/viewpack/internal/fragment"
	"github.com/conneroisu/viewpack/internal/lint"
	"github.com/conneroisu/viewpack/internal/logging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var checkCmd = &cobra.Command{
	Use:     "check",
	Aliases: []string{"c"},
	Short:   "Report unbalanced tags in view fragments",
	Long: `Scan every fragment in the views directory and report elements that are
never closed or closing tags without a matching open tag. Fragments are
checked as written, before minification.

The command exits with an error when any issue is found.

Examples:
  viewpack check                  # Table of issues
  viewpack check -f json          # Output as JSON`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return SetViperBindings(cmd, viewsBindings)
	},
	RunE: runCheck,
}

var checkFlags *StandardFlags

func init() {
	rootCmd.AddCommand(checkCmd)

	checkFlags = AddStandardFlags(checkCmd, "format", "verbosity")
	checkCmd.Flags().StringVar(&checkFlags.ViewsDir, "views", config.DefaultViewsDir, "Views directory")

	AddFlagValidation(checkCmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"table", "json", "yaml"})
	})
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(checkFlags)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	issues, err := checkViews(commandContext(cmd), cfg, logger)
	if err != nil {
		return err
	}
	if err := writeIssues(cmd.OutOrStdout(), issues, checkFlags.Format); err != nil {
		return err
	}
	if len(issues) > 0 {
		return fmt.Errorf("found %d markup issues", len(issues))
	}
	return nil
}

// checkViews lints every selected fragment under the views directory.
func checkViews(ctx context.Context, cfg *config.Config, logger logging.Logger) ([]lint.Issue, error) {
	if err := compiler.CheckDir(cfg.Views.Dir); err != nil {
		return nil, err
	}
	filter, err := viewsFilter(cfg)
	if err != nil {
		return nil, err
	}

	issues := []lint.Issue{}
	checked := 0
	err = fragment.Walk(cfg.Views.Dir, func(p string, info os.FileInfo) error {
		if info.IsDir() || !filter.Accept(cfg.Views.Dir, p) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			logger.Warn(ctx, err, "Skipping unreadable fragment", "path", p)
			return nil
		}
		checked++
		issues = append(issues, lint.Check(fragment.Key(cfg.Views.Dir, p), string(data))...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", cfg.Views.Dir, err)
	}

	logger.Debug(ctx, "Checked fragments", "count", checked, "issues", len(issues))
	return issues, nil
}

func writeIssues(w io.Writer, issues []lint.Issue, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
		return encoder.Encode(issues)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(issues)
	case "table", "":
		if len(issues) == 0 {
			_, err := fmt.Fprintln(w, "No markup issues found.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tKIND\tTAG\tMESSAGE")
		fmt.Fprintln(tw, strings.Repeat("-", 3)+"\t"+strings.Repeat("-", 4)+"\t"+strings.Repeat("-", 3)+"\t"+strings.Repeat("-", 7))
		for _, issue := range issues {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", issue.Key, issue.Kind, issue.Tag, issue.Message)
		}
		return tw.Flush()
	default:
		return ValidateFormatWithSuggestion(format, []string{"table", "json", "yaml"})
	}
}
