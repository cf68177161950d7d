// Package watcher observes a views directory and reports fragment files as
// they appear, change and disappear.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/viewpack/internal/errors"
	"github.com/conneroisu/viewpack/internal/fragment"
	"github.com/conneroisu/viewpack/internal/logging"
	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultSettle is how long a file's size and mtime must stay unchanged
	// before it is reported.
	DefaultSettle = 100 * time.Millisecond
	// DefaultPoll is how often pending files are re-examined.
	DefaultPoll = 10 * time.Millisecond
)

// Op is the kind of change reported for a fragment file.
type Op int

const (
	Added Op = iota
	Modified
	Removed
)

// String returns the string representation of the Op
func (o Op) String() string {
	switch o {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a single settled change to a fragment file. Size and ModTime are
// zero for Removed.
type Event struct {
	Op      Op
	Path    string
	Size    int64
	ModTime time.Time
}

// Options tunes a Watcher. Zero durations select the defaults.
type Options struct {
	Settle time.Duration
	Poll   time.Duration
	Filter fragment.Filter
}

// pendingFile tracks a file that changed but has not settled yet.
type pendingFile struct {
	size    int64
	modTime time.Time
	since   time.Time
}

// Watcher recursively watches a root directory with fsnotify. All state below
// the mutex-free fields is owned by the loop goroutine once Start returns.
type Watcher struct {
	root   string
	opts   Options
	logger logging.Logger
	fsw    *fsnotify.Watcher

	events chan Event
	errs   chan error
	quit   chan struct{}
	done   chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	// lifecycle orders start against Close.
	lifecycle sync.Mutex
	started   bool
	closed    bool
	closeErr  error

	// known files, pending files and watched directories (resolved path to
	// watched path).
	known   map[string]struct{}
	pending map[string]*pendingFile
	watched map[string]string
}

// New creates a watcher for root. Nothing is watched until Start.
func New(root string, opts Options, logger logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.NewWatchError(errors.ErrCodeWatchBackend, "resolve views directory", err).WithPath(root)
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Poll <= 0 {
		opts.Poll = DefaultPoll
	}
	if logger == nil {
		logger = logging.Discard()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewWatchError(errors.ErrCodeWatchBackend, "create fsnotify watcher", err)
	}

	return &Watcher{
		root:    abs,
		opts:    opts,
		logger:  logger.WithComponent("watcher"),
		fsw:     fsw,
		events:  make(chan Event, 64),
		errs:    make(chan error, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		known:   make(map[string]struct{}),
		pending: make(map[string]*pendingFile),
		watched: make(map[string]string),
	}, nil
}

// Root returns the absolute watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Events delivers settled changes in order. The channel is closed when the
// watcher stops, after any fatal error has been sent on Errors.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors delivers at most one fatal WatchFailure.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Start registers every directory below root and starts the event loop. The
// loop first reports an Added event for every file already present.
func (w *Watcher) Start(ctx context.Context) error {
	err := fmt.Errorf("watcher already started")
	w.startOnce.Do(func() {
		err = w.start(ctx)
	})
	return err
}

func (w *Watcher) start(ctx context.Context) error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()
	if w.closed {
		return errors.NewWatchError(errors.ErrCodeWatchBackend, "watcher closed", errStopped).WithPath(w.root)
	}

	var initial []Event
	err := w.addTree(w.root, func(p string, info os.FileInfo) {
		w.known[p] = struct{}{}
		// Files present at startup are reported without a settle wait; the
		// regeneration they arm still waits out the debounce window.
		initial = append(initial, Event{Op: Added, Path: p, Size: info.Size(), ModTime: info.ModTime()})
	})
	if err != nil {
		return errors.NewWatchError(errors.ErrCodeWatchBackend, "watch views directory", err).WithPath(w.root)
	}

	w.logger.Debug(ctx, "Watching views directory",
		"root", w.root,
		"directories", len(w.watched),
		"files", len(initial))

	w.started = true
	go w.loop(ctx, initial)
	return nil
}

// Close stops the loop and releases the fsnotify handle. Close is idempotent
// and waits for the loop goroutine to exit.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.lifecycle.Lock()
		w.closed = true
		close(w.quit)
		w.closeErr = w.fsw.Close()
		started := w.started
		w.lifecycle.Unlock()

		if started {
			<-w.done
		}
	})
	return w.closeErr
}

// addTree watches dir and every directory below it that is not watched yet,
// and calls onFile for every accepted regular file.
func (w *Watcher) addTree(dir string, onFile func(p string, info os.FileInfo)) error {
	return fragment.Walk(dir, func(p string, info os.FileInfo) error {
		if !info.IsDir() {
			if w.opts.Filter.Accept(w.root, p) {
				onFile(p, info)
			}
			return nil
		}

		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			return filepath.SkipDir
		}
		if _, ok := w.watched[resolved]; ok {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			if p == w.root {
				return err
			}
			w.logger.Warn(context.Background(), err, "Skipping unwatchable directory", "path", p)
			return filepath.SkipDir
		}
		w.watched[resolved] = p
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context, initial []Event) {
	defer close(w.done)
	defer close(w.events)

	for _, ev := range initial {
		if !w.send(ctx, ev) {
			return
		}
	}

	var ticker *time.Ticker
	var tick <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		// The ticker only runs while something is waiting to settle.
		switch {
		case len(w.pending) > 0 && ticker == nil:
			ticker = time.NewTicker(w.opts.Poll)
			tick = ticker.C
		case len(w.pending) == 0 && ticker != nil:
			ticker.Stop()
			ticker, tick = nil, nil
		}

		select {
		case <-ctx.Done():
			return
		case <-w.quit:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if err := w.handle(ctx, ev); err != nil {
				if err != errStopped {
					w.fail(ctx, err)
				}
				return
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.fail(ctx, errors.NewWatchError(errors.ErrCodeWatchBackend, "fsnotify failure", err).WithPath(w.root))
			return
		case now := <-tick:
			if !w.flushSettled(ctx, now) {
				return
			}
		}
	}
}

// errStopped signals that the loop is shutting down while sending.
var errStopped = fmt.Errorf("watcher stopped")

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) error {
	p := filepath.Clean(ev.Name)

	if p == w.root && (ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)) {
		return errors.NewWatchError(errors.ErrCodeWatchLost, "views directory removed", nil).WithPath(w.root)
	}

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		if err := w.forget(ctx, p); err != nil {
			return err
		}
		if _, err := os.Stat(w.root); err != nil {
			return errors.NewWatchError(errors.ErrCodeWatchLost, "views directory no longer accessible", err).WithPath(w.root)
		}
		return nil
	}

	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return nil
	}
	if fragment.IsHidden(w.root, p) {
		return nil
	}

	info, err := os.Stat(p)
	if err != nil {
		// Already gone; a Remove event follows if it was known.
		return nil
	}

	now := time.Now()
	switch {
	case info.IsDir():
		if !ev.Has(fsnotify.Create) {
			return nil
		}
		// Files may have landed in the directory before its watch existed.
		err := w.addTree(p, func(fp string, fi os.FileInfo) {
			w.markPending(fp, fi, now)
		})
		if err != nil {
			w.logger.Warn(ctx, err, "Failed to watch new directory", "path", p)
		}
	case info.Mode().IsRegular():
		if w.opts.Filter.Accept(w.root, p) {
			w.markPending(p, info, now)
		}
	}
	return nil
}

func (w *Watcher) markPending(p string, info os.FileInfo, now time.Time) {
	if pf, ok := w.pending[p]; ok {
		if pf.size != info.Size() || !pf.modTime.Equal(info.ModTime()) {
			pf.size, pf.modTime, pf.since = info.Size(), info.ModTime(), now
		}
		return
	}
	w.pending[p] = &pendingFile{size: info.Size(), modTime: info.ModTime(), since: now}
}

// forget drops p, or every known file below p when p was a directory, and
// reports Removed for each known file.
func (w *Watcher) forget(ctx context.Context, p string) error {
	prefix := p + string(filepath.Separator)
	under := func(candidate string) bool {
		return candidate == p || strings.HasPrefix(candidate, prefix)
	}

	for pending := range w.pending {
		if under(pending) {
			delete(w.pending, pending)
		}
	}
	for resolved, dir := range w.watched {
		if under(dir) {
			delete(w.watched, resolved)
			// fsnotify drops watches of deleted directories by itself; a
			// renamed directory keeps its watch under the old name.
			_ = w.fsw.Remove(dir)
		}
	}

	var removed []string
	for known := range w.known {
		if under(known) {
			removed = append(removed, known)
		}
	}
	sort.Strings(removed)

	for _, known := range removed {
		delete(w.known, known)
		if !w.send(ctx, Event{Op: Removed, Path: known}) {
			return errStopped
		}
	}
	return nil
}

// flushSettled reports every pending file whose size and mtime have not
// changed for the settle period. It returns false when the loop must stop.
func (w *Watcher) flushSettled(ctx context.Context, now time.Time) bool {
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		pf := w.pending[p]
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			delete(w.pending, p)
			continue
		}
		if info.Size() != pf.size || !info.ModTime().Equal(pf.modTime) {
			pf.size, pf.modTime, pf.since = info.Size(), info.ModTime(), now
			continue
		}
		if now.Sub(pf.since) < w.opts.Settle {
			continue
		}

		delete(w.pending, p)
		op := Added
		if _, ok := w.known[p]; ok {
			op = Modified
		}
		w.known[p] = struct{}{}

		if !w.send(ctx, Event{Op: op, Path: p, Size: info.Size(), ModTime: info.ModTime()}) {
			return false
		}
	}
	return true
}

func (w *Watcher) send(ctx context.Context, ev Event) bool {
	select {
	case w.events <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-w.quit:
		return false
	}
}

func (w *Watcher) fail(ctx context.Context, err error) {
	w.logger.Error(ctx, err, "Watch failed", "root", w.root)
	select {
	case w.errs <- err:
	default:
	}
}
