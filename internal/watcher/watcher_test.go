package watcher

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/conneroisu/viewpack/internal/errors"
	"github.com/conneroisu/viewpack/internal/fragment"
	"github.com/conneroisu/viewpack/internal/logging"
	"github.com/conneroisu/viewpack/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const eventTimeout = 3 * time.Second

func startWatcher(t *testing.T, root string, opts Options) *Watcher {
	t.Helper()

	w, err := New(root, opts, logging.Discard())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		require.NoError(t, w.Close())
	})
	require.NoError(t, w.Start(ctx))
	return w
}

func nextEvent(t *testing.T, w *Watcher) Event {
	t.Helper()

	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "event stream closed")
		return ev
	case err := <-w.Errors():
		t.Fatalf("unexpected watch error: %v", err)
	case <-time.After(eventTimeout):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func assertQuiet(t *testing.T, w *Watcher, d time.Duration) {
	t.Helper()

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event %s %s", ev.Op, ev.Path)
	case <-time.After(d):
	}
}

func keysOf(root string, events []Event) []string {
	keys := make([]string, 0, len(events))
	for _, ev := range events {
		keys = append(keys, fragment.Key(root, ev.Path))
	}
	sort.Strings(keys)
	return keys
}

func TestOpString(t *testing.T) {
	testCases := []struct {
		op       Op
		expected string
	}{
		{Added, "added"},
		{Modified, "modified"},
		{Removed, "removed"},
		{Op(7), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.op.String())
		})
	}
}

func TestNewDefaults(t *testing.T) {
	w, err := New("relative/views", Options{}, nil)
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, filepath.IsAbs(w.Root()))
	assert.Equal(t, DefaultSettle, w.opts.Settle)
	assert.Equal(t, DefaultPoll, w.opts.Poll)
}

func TestInitialEnumeration(t *testing.T) {
	files := map[string]string{
		".hidden.html": "x",
		".git/HEAD":    "ref",
	}
	for k, v := range testutils.StandardViews {
		files[k] = v
	}
	_, views := testutils.CreateViewsTree(t, files)

	w := startWatcher(t, views, Options{})

	var events []Event
	for i := 0; i < len(testutils.StandardViews); i++ {
		ev := nextEvent(t, w)
		assert.Equal(t, Added, ev.Op)
		assert.Positive(t, ev.Size)
		assert.False(t, ev.ModTime.IsZero())
		events = append(events, ev)
	}

	assert.Equal(t, []string{"inc/footer.html", "pages/home/main.html", "pages/notfound/layout.html"}, keysOf(views, events))
	// Each file is reported exactly once.
	assertQuiet(t, w, 300*time.Millisecond)
}

func TestAddedThenModified(t *testing.T) {
	_, views := testutils.CreateTempProject(t)
	w := startWatcher(t, views, Options{})

	p := testutils.WriteFragment(t, views, "a.html", "<p>one</p>")
	ev := nextEvent(t, w)
	assert.Equal(t, Added, ev.Op)
	assert.Equal(t, p, ev.Path)
	assert.Equal(t, int64(len("<p>one</p>")), ev.Size)

	testutils.WriteFragment(t, views, "a.html", "<p>two!</p>")
	ev = nextEvent(t, w)
	assert.Equal(t, Modified, ev.Op)
	assert.Equal(t, p, ev.Path)
}

func TestSettleDelaysReport(t *testing.T) {
	_, views := testutils.CreateTempProject(t)
	w := startWatcher(t, views, Options{Settle: 250 * time.Millisecond})

	written := time.Now()
	testutils.WriteFragment(t, views, "slow.html", "<p></p>")

	ev := nextEvent(t, w)
	assert.Equal(t, Added, ev.Op)
	assert.GreaterOrEqual(t, time.Since(written), 200*time.Millisecond)
}

func TestRemoved(t *testing.T) {
	_, views := testutils.CreateViewsTree(t, map[string]string{"a.html": "a"})
	w := startWatcher(t, views, Options{})
	require.Equal(t, Added, nextEvent(t, w).Op)

	testutils.RemoveFragment(t, views, "a.html")
	ev := nextEvent(t, w)
	assert.Equal(t, Removed, ev.Op)
	assert.Equal(t, "a.html", fragment.Key(views, ev.Path))
}

func TestShortLivedFileIsNotReported(t *testing.T) {
	_, views := testutils.CreateTempProject(t)
	w := startWatcher(t, views, Options{Settle: 500 * time.Millisecond})

	testutils.WriteFragment(t, views, "tmp.html", "x")
	testutils.RemoveFragment(t, views, "tmp.html")

	assertQuiet(t, w, 800*time.Millisecond)
}

func TestNewDirectoryIsWatched(t *testing.T) {
	_, views := testutils.CreateTempProject(t)
	w := startWatcher(t, views, Options{})

	testutils.WriteFragment(t, views, "pages/about/main.html", "<main></main>")
	ev := nextEvent(t, w)
	assert.Equal(t, Added, ev.Op)
	assert.Equal(t, "pages/about/main.html", fragment.Key(views, ev.Path))

	// The new directory is watched, so later files in it are seen too.
	testutils.WriteFragment(t, views, "pages/about/side.html", "<aside></aside>")
	ev = nextEvent(t, w)
	assert.Equal(t, Added, ev.Op)
	assert.Equal(t, "pages/about/side.html", fragment.Key(views, ev.Path))
}

func TestDirectoryRemovalReportsEveryFile(t *testing.T) {
	_, views := testutils.CreateViewsTree(t, testutils.StandardViews)
	w := startWatcher(t, views, Options{})
	for range testutils.StandardViews {
		nextEvent(t, w)
	}

	testutils.RemoveFragment(t, views, "pages")

	events := []Event{nextEvent(t, w), nextEvent(t, w)}
	for _, ev := range events {
		assert.Equal(t, Removed, ev.Op)
	}
	assert.Equal(t, []string{"pages/home/main.html", "pages/notfound/layout.html"}, keysOf(views, events))
	assertQuiet(t, w, 300*time.Millisecond)
}

func TestHiddenFilesAreIgnored(t *testing.T) {
	_, views := testutils.CreateTempProject(t)
	w := startWatcher(t, views, Options{})

	testutils.WriteFragment(t, views, ".a.html.swp", "swap")
	testutils.WriteFragment(t, views, ".cache/x.html", "x")
	testutils.WriteFragment(t, views, "b.html", "b")

	ev := nextEvent(t, w)
	assert.Equal(t, "b.html", fragment.Key(views, ev.Path))
	assertQuiet(t, w, 300*time.Millisecond)
}

func TestFilterRestrictsFiles(t *testing.T) {
	filter, err := fragment.NewFilter([]string{"**/*.html"}, []string{"drafts/**"})
	require.NoError(t, err)

	_, views := testutils.CreateViewsTree(t, map[string]string{
		"a.html":        "a",
		"notes.txt":     "n",
		"drafts/x.html": "x",
	})
	w := startWatcher(t, views, Options{Filter: filter})

	ev := nextEvent(t, w)
	assert.Equal(t, "a.html", fragment.Key(views, ev.Path))

	testutils.WriteFragment(t, views, "b.txt", "b")
	testutils.WriteFragment(t, views, "c.html", "c")
	ev = nextEvent(t, w)
	assert.Equal(t, "c.html", fragment.Key(views, ev.Path))
	assertQuiet(t, w, 300*time.Millisecond)
}

func TestSymlinkedDirectoryIsFollowed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	project, views := testutils.CreateTempProject(t)
	shared := filepath.Join(project, "shared")
	testutils.WriteFragment(t, shared, "nav.html", "<nav></nav>")
	require.NoError(t, os.Symlink(shared, filepath.Join(views, "inc")))
	require.NoError(t, os.Symlink(views, filepath.Join(views, "loop")))

	w := startWatcher(t, views, Options{})

	ev := nextEvent(t, w)
	assert.Equal(t, Added, ev.Op)
	assert.Equal(t, "inc/nav.html", fragment.Key(views, ev.Path))
	assertQuiet(t, w, 300*time.Millisecond)
}

func TestRootRemovalIsFatal(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on inotify delete-self events")
	}

	_, views := testutils.CreateTempProject(t)
	w := startWatcher(t, views, Options{})

	require.NoError(t, os.RemoveAll(views))

	select {
	case err := <-w.Errors():
		assert.True(t, errors.IsType(err, errors.ErrorTypeWatch))
		assert.True(t, errors.IsFatal(err))
	case <-time.After(eventTimeout):
		t.Fatal("expected a watch failure")
	}

	// The event stream is closed after the failure.
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-w.Events():
			return !ok
		default:
			return false
		}
	}, eventTimeout, 10*time.Millisecond)
}

func TestStartErrors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		w, err := New(filepath.Join(t.TempDir(), "missing"), Options{}, nil)
		require.NoError(t, err)
		defer w.Close()

		err = w.Start(context.Background())
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeWatch))
	})

	t.Run("started twice", func(t *testing.T) {
		_, views := testutils.CreateTempProject(t)
		w := startWatcher(t, views, Options{})
		assert.Error(t, w.Start(context.Background()))
	})
}

func TestCloseStopsLoop(t *testing.T) {
	_, views := testutils.CreateViewsTree(t, testutils.StandardViews)
	w, err := New(views, Options{}, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	// Close works with initial events still unread.
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	for range w.Events() {
	}
}

func TestStartAfterCloseFails(t *testing.T) {
	_, views := testutils.CreateTempProject(t)
	w, err := New(views, Options{}, logging.Discard())
	require.NoError(t, err)

	require.NoError(t, w.Close())
	err = w.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeWatch))
}

func TestCloseRacingStart(t *testing.T) {
	_, views := testutils.CreateViewsTree(t, testutils.StandardViews)

	for i := 0; i < 20; i++ {
		w, err := New(views, Options{}, logging.Discard())
		require.NoError(t, err)

		started := make(chan error, 1)
		go func() { started <- w.Start(context.Background()) }()
		assert.NoError(t, w.Close())

		// Either Start won and Close waited for the loop, or Close won and
		// Start was refused. No goroutine may outlive Close.
		if err := <-started; err == nil {
			select {
			case <-w.done:
			default:
				t.Fatal("Close returned before the loop stopped")
			}
		}
	}
}

func TestContextCancelStopsLoop(t *testing.T) {
	_, views := testutils.CreateTempProject(t)
	w, err := New(views, Options{}, logging.Discard())
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case <-w.done:
	case <-time.After(eventTimeout):
		t.Fatal("loop did not stop on cancel")
	}
}
