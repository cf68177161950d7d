package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conneroisu/viewpack/internal/artifact"
	"github.com/conneroisu/viewpack/internal/config"
	"github.com/conneroisu/viewpack/internal/errors"
	"github.com/conneroisu/viewpack/internal/lint"
	"github.com/conneroisu/viewpack/internal/logging"
	"github.com/conneroisu/viewpack/internal/testutils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testConfig(project, views string) *config.Config {
	cfg := config.Default()
	cfg.Views.Dir = views
	cfg.Views.Output = filepath.Join(project, "src", "views.js")
	cfg.Views.WaitMS = 50
	cfg.Views.SettleMS = 20
	return cfg
}

func TestBuildViews(t *testing.T) {
	project, views := testutils.CreateViewsTree(t, testutils.StandardViews)
	cfg := testConfig(project, views)

	require.NoError(t, buildViews(context.Background(), cfg, logging.Discard()))

	got, err := artifact.Load(cfg.Views.Output)
	require.NoError(t, err)
	assert.Equal(t, testutils.StandardViewsMinified, got)
}

func TestBuildViewsMissingDir(t *testing.T) {
	project := t.TempDir()
	cfg := testConfig(project, filepath.Join(project, "src", "views"))

	t.Run("skipped by default", func(t *testing.T) {
		require.NoError(t, buildViews(context.Background(), cfg, logging.Discard()))
		assert.NoFileExists(t, cfg.Views.Output)
	})

	t.Run("fails with require_dir", func(t *testing.T) {
		strict := *cfg
		strict.Views.RequireDir = true
		err := buildViews(context.Background(), &strict, logging.Discard())
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		assert.NoFileExists(t, cfg.Views.Output)
	})
}

func TestWatchViewsMissingDir(t *testing.T) {
	project := t.TempDir()
	cfg := testConfig(project, filepath.Join(project, "nope"))

	require.NoError(t, watchViews(context.Background(), cfg, logging.Discard()))

	cfg.Views.RequireDir = true
	assert.Error(t, watchViews(context.Background(), cfg, logging.Discard()))
}

func TestWatchViews(t *testing.T) {
	project, views := testutils.CreateViewsTree(t, testutils.StandardViews)
	cfg := testConfig(project, views)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watchViews(ctx, cfg, logging.Discard()) }()

	assert.Eventually(t, func() bool {
		got, err := artifact.Load(cfg.Views.Output)
		return err == nil && assert.ObjectsAreEqual(testutils.StandardViewsMinified, got)
	}, 5*time.Second, 20*time.Millisecond)

	testutils.WriteFragment(t, views, "inc/header.html", "<header>\n\t<nav></nav>\n</header>")
	assert.Eventually(t, func() bool {
		got, err := artifact.Load(cfg.Views.Output)
		return err == nil && got["inc/header.html"] == "<header><nav></nav></header>"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestListEntries(t *testing.T) {
	fragments := map[string]string{
		"pages/home/main.html": "<main></main>",
		"a.html":               "<p>a</p>",
	}

	entries := listEntries(fragments, false)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.html", entries[0].Key)
	assert.Equal(t, 8, entries[0].Bytes)
	assert.Empty(t, entries[0].Content)

	entries = listEntries(fragments, true)
	assert.Equal(t, "<main></main>", entries[1].Content)
}

func TestWriteList(t *testing.T) {
	entries := listEntries(map[string]string{"a.html": "<p>a</p>", "b.html": "<i>b</i>"}, true)

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeList(&buf, entries, "table", true))
		out := buf.String()
		assert.Contains(t, out, "KEY")
		assert.Contains(t, out, "CONTENT")
		assert.Contains(t, out, "a.html")
		assert.Contains(t, out, "Total fragments: 2 (16 bytes)")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeList(&buf, entries, "json", true))

		var got []listEntry
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, entries, got)
		assert.Contains(t, buf.String(), "<p>a</p>")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeList(&buf, entries, "yaml", true))

		var got []listEntry
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, entries, got)
	})

	t.Run("unknown format", func(t *testing.T) {
		var buf bytes.Buffer
		err := writeList(&buf, entries, "jsn", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `did you mean "json"`)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestCheckViews(t *testing.T) {
	project, views := testutils.CreateViewsTree(t, map[string]string{
		"ok.html":      "<p>fine</p>",
		"broken.html":  "<div><section>text</div>",
		".draft.html":  "<div>",
		"inc/nav.html": "</nav>",
	})
	cfg := testConfig(project, views)

	issues, err := checkViews(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	require.Len(t, issues, 2)

	byKey := map[string]lint.Issue{}
	for _, issue := range issues {
		byKey[issue.Key] = issue
	}
	assert.Equal(t, lint.IssueUnclosed, byKey["broken.html"].Kind)
	assert.Equal(t, "section", byKey["broken.html"].Tag)
	assert.Equal(t, lint.IssueUnexpectedClose, byKey["inc/nav.html"].Kind)
}

func TestCheckViewsMissingDir(t *testing.T) {
	project := t.TempDir()
	_, err := checkViews(context.Background(), testConfig(project, filepath.Join(project, "nope")), logging.Discard())
	assert.Error(t, err)
}

func TestWriteIssues(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeIssues(&buf, nil, "table"))
	assert.Equal(t, "No markup issues found.\n", buf.String())

	issues := lint.Check("a.html", "<div></span></div>")
	buf.Reset()
	require.NoError(t, writeIssues(&buf, issues, "table"))
	assert.Contains(t, buf.String(), "unexpected-close")

	buf.Reset()
	require.NoError(t, writeIssues(&buf, issues, "json"))
	var got []lint.Issue
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, issues, got)
}

func TestValidateFormatWithSuggestion(t *testing.T) {
	valid := []string{"table", "json", "yaml"}

	assert.NoError(t, ValidateFormatWithSuggestion("json", valid))

	err := ValidateFormatWithSuggestion("yml", valid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "yaml"`)

	err = ValidateFormatWithSuggestion("xml-document", valid)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"json", "json", 0},
		{"jsn", "json", 1},
		{"yml", "yaml", 1},
		{"tabel", "table", 2},
		{"", "abc", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, editDistance(tt.a, tt.b), "%q -> %q", tt.a, tt.b)
	}
}

func TestValidateMillis(t *testing.T) {
	assert.NoError(t, ValidateMillis("0"))
	assert.NoError(t, ValidateMillis("1000"))
	assert.Error(t, ValidateMillis("-1"))
	assert.Error(t, ValidateMillis("soon"))
	assert.Error(t, ValidateMillis("600001"))
}

func TestStandardFlagsValidate(t *testing.T) {
	f := &StandardFlags{Verbose: true, Quiet: true}
	assert.Error(t, f.ValidateFlags())

	f = &StandardFlags{WaitMS: -5}
	assert.Error(t, f.ValidateFlags())

	f = &StandardFlags{Verbose: true, WaitMS: 10}
	assert.NoError(t, f.ValidateFlags())

	cfg := config.Default()
	f.Apply(cfg)
	assert.Equal(t, "debug", cfg.Log.Level)

	cfg = config.Default()
	(&StandardFlags{Quiet: true}).Apply(cfg)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestAddFlagValidation(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	flags := AddStandardFlags(cmd, "format")
	AddFlagValidation(cmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"table", "json"})
	})

	require.NoError(t, cmd.Flags().Set("format", "json"))
	assert.Equal(t, "json", flags.Format)

	assert.Error(t, cmd.Flags().Set("format", "xml"))
	assert.Equal(t, "json", flags.Format)

	// Unknown flags are ignored.
	AddFlagValidation(cmd, "missing", ValidateMillis)
}

func TestSetViperBindings(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cmd := &cobra.Command{Use: "test"}
	AddStandardFlags(cmd, "views", "watch")
	require.NoError(t, cmd.Flags().Set("views", "web/views"))
	require.NoError(t, cmd.Flags().Set("wait", "250"))

	require.NoError(t, SetViperBindings(cmd, viewsBindings))

	assert.Equal(t, "web/views", viper.GetString("views.dir"))
	assert.Equal(t, 250, viper.GetInt("views.wait_ms"))

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "web/views", cfg.Views.Dir)
	assert.Equal(t, 250*time.Millisecond, cfg.Views.Wait())
	assert.Equal(t, config.DefaultOutput, cfg.Views.Output)
}

func TestValidateConfigFile(t *testing.T) {
	project, views := testutils.CreateTempProject(t)
	write := func(name, body string) string {
		p := filepath.Join(project, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	output := filepath.Join(project, "src", "views.js")

	t.Run("valid", func(t *testing.T) {
		p := write("valid.yml", "views:\n  dir: "+views+"\n  output: "+output+"\n  wait_ms: 500\n")
		var buf bytes.Buffer
		require.NoError(t, validateConfigFile(&buf, p, true))
		assert.Contains(t, buf.String(), "Configuration is valid.")
	})

	t.Run("errors", func(t *testing.T) {
		p := write("invalid.yml", "views:\n  dir: "+views+"\n  output: "+output+"\n  wait_ms: -1\n")
		var buf bytes.Buffer
		err := validateConfigFile(&buf, p, false)
		require.Error(t, err)
		assert.Contains(t, buf.String(), "views.wait_ms")
	})

	t.Run("warnings fail only in strict mode", func(t *testing.T) {
		p := write("warn.yml", "views:\n  dir: "+views+"\n  output: "+filepath.Join(project, "views.txt")+"\n")
		var buf bytes.Buffer
		require.NoError(t, validateConfigFile(&buf, p, false))
		assert.Contains(t, buf.String(), "Validation warnings:")

		buf.Reset()
		assert.Error(t, validateConfigFile(&buf, p, true))
	})

	t.Run("missing file", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, validateConfigFile(&buf, filepath.Join(project, "absent.yml"), false))
	})
}

func TestWriteConfig(t *testing.T) {
	cfg := config.Default()

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, cfg, "json"))
	var fromJSON config.Config
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, *cfg, fromJSON)

	buf.Reset()
	require.NoError(t, writeConfig(&buf, cfg, "yaml"))
	var fromYAML config.Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	assert.Equal(t, *cfg, fromYAML)

	assert.Error(t, writeConfig(&buf, cfg, "toml"))
}

func TestWriteVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeVersion(&buf, "text", false, false))
	assert.Contains(t, buf.String(), "viewpack ")
	assert.Contains(t, buf.String(), "Platform: ")

	buf.Reset()
	require.NoError(t, writeVersion(&buf, "json", false, false))
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")

	buf.Reset()
	require.NoError(t, writeVersion(&buf, "text", true, false))
	assert.NotEmpty(t, buf.String())

	assert.Error(t, writeVersion(&buf, "xml", false, false))
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"watch", "build", "list", "check", "config", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}

	c, _, err := rootCmd.Find([]string{"w"})
	require.NoError(t, err)
	assert.Equal(t, "watch", c.Name())
}
