package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/conneroisu/viewpack/internal/artifact"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the fragments in the generated module",
	Long: `List the fragments stored in the generated module with their sizes.
The module is read as written; the views directory is not scanned.

Examples:
  viewpack list                   # Table of keys and sizes
  viewpack list -f json           # Output as JSON (short flag)
  viewpack list -c -f yaml        # Include minified content, output as YAML
  viewpack list -o web/views.js   # Read a different module`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return SetViperBindings(cmd, viewsBindings)
	},
	RunE: runList,
}

var (
	listFlags       *StandardFlags
	listWithContent bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	// Use standardized flags
	listFlags = AddStandardFlags(listCmd, "format")
	listCmd.Flags().StringVarP(&listFlags.Output, "output", "o", "src/views.js", "Generated module path")

	listCmd.Flags().
		BoolVarP(&listWithContent, "with-content", "c", false, "Include minified fragment content")

	// Add format validation
	AddFlagValidation(listCmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"table", "json", "yaml"})
	})
}

// listEntry is one fragment as reported by list.
type listEntry struct {
	Key     string `json:"key" yaml:"key"`
	Bytes   int    `json:"bytes" yaml:"bytes"`
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(listFlags)
	if err != nil {
		return err
	}

	fragments, err := artifact.Load(cfg.Views.Output)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", cfg.Views.Output, err)
	}

	return writeList(cmd.OutOrStdout(), listEntries(fragments, listWithContent), listFlags.Format, listWithContent)
}

func listEntries(fragments map[string]string, withContent bool) []listEntry {
	entries := make([]listEntry, 0, len(fragments))
	for key, content := range fragments {
		e := listEntry{Key: key, Bytes: len(content)}
		if withContent {
			e.Content = content
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

func writeList(w io.Writer, entries []listEntry, format string, withContent bool) error {
	switch format {
	case "json":
		return outputListJSON(w, entries)
	case "yaml":
		return outputListYAML(w, entries)
	case "table", "":
		return outputListTable(w, entries, withContent)
	default:
		return ValidateFormatWithSuggestion(format, []string{"table", "json", "yaml"})
	}
}

func outputListJSON(w io.Writer, entries []listEntry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(entries)
}

func outputListYAML(w io.Writer, entries []listEntry) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(entries)
}

func outputListTable(w io.Writer, entries []listEntry, withContent bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := "KEY\tBYTES"
	separator := strings.Repeat("-", 3) + "\t" + strings.Repeat("-", 5)
	if withContent {
		header += "\tCONTENT"
		separator += "\t" + strings.Repeat("-", 7)
	}
	fmt.Fprintln(tw, header)
	fmt.Fprintln(tw, separator)

	total := 0
	for _, e := range entries {
		line := fmt.Sprintf("%s\t%d", e.Key, e.Bytes)
		if withContent {
			line += "\t" + truncate(e.Content, 60)
		}
		fmt.Fprintln(tw, line)
		total += e.Bytes
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nTotal fragments: %d (%d bytes)\n", len(entries), total)
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
