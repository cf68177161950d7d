// Package testutils holds helpers shared by package tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// CreateTempProject creates a temporary project with an empty src/views
// directory and returns the project root and the views directory.
func CreateTempProject(t *testing.T) (project, views string) {
	t.Helper()

	project = t.TempDir()
	views = filepath.Join(project, "src", "views")
	require.NoError(t, os.MkdirAll(views, 0o755))
	return project, views
}

// CreateViewsTree creates a project whose views directory holds files, keyed by
// slash-separated path relative to the views directory.
func CreateViewsTree(t *testing.T, files map[string]string) (project, views string) {
	t.Helper()

	project, views = CreateTempProject(t)
	for rel, content := range files {
		WriteFragment(t, views, rel, content)
	}
	return project, views
}

// WriteFragment writes content to rel under root, creating parent
// directories, and returns the absolute path.
func WriteFragment(t *testing.T, root, rel, content string) string {
	t.Helper()

	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// RemoveFragment deletes rel under root, or the whole subtree if rel is a
// directory.
func RemoveFragment(t *testing.T, root, rel string) {
	t.Helper()

	require.NoError(t, os.RemoveAll(filepath.Join(root, filepath.FromSlash(rel))))
}

// ReadFile returns the content of p as a string.
func ReadFile(t *testing.T, p string) string {
	t.Helper()

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(data)
}

// StandardViews is a small views tree shaped like a typical application.
var StandardViews = map[string]string{
	"pages/home/main.html": `<main class="home">
	<h1>Welcome</h1>
	<!-- hero banner -->
	<section id="hero"></section>
</main>
`,
	"pages/notfound/layout.html": `<div class="notfound">
	<p>Page not found</p>
</div>
`,
	"inc/footer.html": `<footer>
	<a href="/about">About</a>  &middot;  <a href="/contact">Contact</a>
</footer>
`,
}

// StandardViewsMinified holds the expected minified content of StandardViews.
var StandardViewsMinified = map[string]string{
	"pages/home/main.html":       `<main class="home"><h1>Welcome</h1><section id="hero"></section></main>`,
	"pages/notfound/layout.html": `<div class="notfound"><p>Page not found</p></div>`,
	"inc/footer.html":            `<footer><a href="/about">About</a> &middot; <a href="/contact">Contact</a></footer>`,
}
