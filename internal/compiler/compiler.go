// Package compiler keeps the generated views artifact in step with the views
// directory.
//
// A single goroutine owns the fragment registry, the set of tracked files,
// the debounce scheduler and the artifact writer. Structural changes (files
// added or removed) arm the scheduler and are folded into one full
// regeneration once the directory has been quiet for the debounce window.
// Content changes to a tracked file are applied and persisted immediately.
package compiler

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/conneroisu/viewpack/internal/artifact"
	"github.com/conneroisu/viewpack/internal/debounce"
	"github.com/conneroisu/viewpack/internal/errors"
	"github.com/conneroisu/viewpack/internal/fragment"
	"github.com/conneroisu/viewpack/internal/logging"
	"github.com/conneroisu/viewpack/internal/registry"
	"github.com/conneroisu/viewpack/internal/transform"
	"github.com/conneroisu/viewpack/internal/watcher"
	"golang.org/x/sync/errgroup"
)

// DefaultReadConcurrency bounds parallel file reads during a regeneration.
const DefaultReadConcurrency = 8

// changeBuffer is the registry subscription capacity. Change summaries for
// larger diffs are truncated.
const changeBuffer = 4096

// Options configures a Compiler.
type Options struct {
	ViewsDir        string
	Output          string
	Wait            time.Duration
	ReadConcurrency int
	CacheSize       int
	Filter          fragment.Filter
}

// Source is a stream of settled file events, such as a *watcher.Watcher.
type Source interface {
	Events() <-chan watcher.Event
	Errors() <-chan error
}

// Stats counts the compiler's work since it was created.
type Stats struct {
	Regenerations    int64
	ImmediateUpdates int64
	ReadFailures     int64
	Writes           int64
	CacheHits        int64
	CacheMisses      int64

	// Artifact entries changed by successful writes.
	EntriesAdded   int64
	EntriesUpdated int64
	EntriesRemoved int64
}

// Compiler turns fragment events into artifact writes.
type Compiler struct {
	root   string
	opts   Options
	logger logging.Logger

	store  *registry.FragmentRegistry
	writer *artifact.Writer
	cache  *transform.Cache

	// tracked maps absolute file paths to their keys. Owned by Run.
	tracked map[string]string
	// changes receives registry events while Run or Build is active.
	changes <-chan registry.FragmentEvent

	regenerations    atomic.Int64
	immediateUpdates atomic.Int64
	readFailures     atomic.Int64
	entriesAdded     atomic.Int64
	entriesUpdated   atomic.Int64
	entriesRemoved   atomic.Int64
}

// New creates a compiler. The views directory is not checked; use CheckDir.
func New(opts Options, logger logging.Logger) (*Compiler, error) {
	root, err := filepath.Abs(opts.ViewsDir)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "resolve views directory", err).WithPath(opts.ViewsDir)
	}
	if opts.Output == "" {
		return nil, errors.NewValidationError(errors.ErrCodeConfigInvalid, "output path is required")
	}
	if opts.Wait <= 0 {
		return nil, errors.NewValidationError(errors.ErrCodeConfigInvalid, "debounce wait must be positive")
	}
	if opts.ReadConcurrency <= 0 {
		opts.ReadConcurrency = DefaultReadConcurrency
	}
	if logger == nil {
		logger = logging.Discard()
	}

	cache, err := transform.NewCache(opts.CacheSize)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternal, "create minify cache", err)
	}

	return &Compiler{
		root:    root,
		opts:    opts,
		logger:  logger.WithComponent("compiler"),
		store:   registry.NewFragmentRegistry(),
		writer:  artifact.NewWriter(opts.Output),
		cache:   cache,
		tracked: make(map[string]string),
	}, nil
}

// Root returns the absolute views directory.
func (c *Compiler) Root() string {
	return c.root
}

// Store exposes the aggregate for readers.
func (c *Compiler) Store() *registry.FragmentRegistry {
	return c.store
}

// Seed loads the existing artifact into the store. A missing or unreadable
// artifact is only a warning; a fresh one is written by the next
// regeneration.
func (c *Compiler) Seed(ctx context.Context) {
	fragments, err := artifact.Load(c.opts.Output)
	if err != nil {
		c.logger.Warn(ctx, err, "Existing artifact missing or invalid, a new one will be created",
			"output", c.opts.Output)
		return
	}
	c.store.Replace(fragments)
	c.logger.Debug(ctx, "Seeded fragments from artifact", "count", len(fragments))
}

// Run consumes src until ctx is cancelled or a fatal error occurs. It returns
// nil on cancellation, a WatchFailure when the source fails and a
// WriteFailure when the artifact cannot be persisted.
func (c *Compiler) Run(ctx context.Context, src Source) error {
	sched := debounce.New(c.opts.Wait)
	defer sched.Stop()
	defer c.subscribe()()

	// Content seeded from an old artifact is only trusted until the first
	// regeneration, which must happen even when no file event ever arrives.
	sched.Arm()

	events := src.Events()
	for {
		select {
		case <-ctx.Done():
			return nil

		case err := <-src.Errors():
			return c.watchFailure(err)

		case ev, ok := <-events:
			if !ok {
				// The source closes its stream after reporting a failure.
				select {
				case err := <-src.Errors():
					return c.watchFailure(err)
				default:
				}
				if ctx.Err() != nil {
					return nil
				}
				return errors.NewWatchError(errors.ErrCodeWatchLost, "event stream closed", nil).WithPath(c.root)
			}
			if err := c.handle(ctx, sched, ev); err != nil {
				return err
			}

		case tok := <-sched.C():
			if !sched.Fire(tok) {
				continue
			}
			if err := c.regenerate(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (c *Compiler) watchFailure(err error) error {
	if errors.IsType(err, errors.ErrorTypeWatch) {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeWatch, errors.ErrCodeWatchBackend, "watch views directory")
}

func (c *Compiler) handle(ctx context.Context, sched *debounce.Scheduler, ev watcher.Event) error {
	key := fragment.Key(c.root, ev.Path)

	switch ev.Op {
	case watcher.Added:
		c.tracked[ev.Path] = key
		c.logger.Info(ctx, "Fragment added", "key", key, "size", ev.Size)
		sched.Arm()

	case watcher.Removed:
		delete(c.tracked, ev.Path)
		c.logger.Info(ctx, "Fragment removed", "key", key)
		sched.Arm()

	case watcher.Modified:
		c.tracked[ev.Path] = key
		c.logger.Info(ctx, "Fragment changed", "key", key, "size", ev.Size)
		return c.update(ctx, ev.Path, key)
	}
	return nil
}

// update re-reads one fragment and persists the store without waiting for the
// debounce window.
func (c *Compiler) update(ctx context.Context, path, key string) error {
	content, err := c.read(path)
	if err != nil {
		c.readFailures.Add(1)
		c.logger.Warn(ctx, err, "Skipping unreadable fragment", "key", key)
		return nil
	}

	c.store.Upsert(key, content)
	if err := c.persist(ctx); err != nil {
		return err
	}
	c.immediateUpdates.Add(1)
	c.logger.Debug(ctx, "Updated artifact", "key", key, "output", c.opts.Output)
	return nil
}

// regenerate rebuilds the whole aggregate from the tracked files and
// persists it.
func (c *Compiler) regenerate(ctx context.Context) error {
	perf := logging.StartOperation(c.logger, "regenerate")

	paths := make([]string, 0, len(c.tracked))
	for p := range c.tracked {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	c.logger.Info(ctx, "Regenerating artifact", "fragments", len(paths), "output", c.opts.Output)

	contents := make([]string, len(paths))
	readOK := make([]bool, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.ReadConcurrency)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			content, err := c.read(p)
			if err != nil {
				c.readFailures.Add(1)
				c.logger.Warn(gctx, err, "Skipping unreadable fragment", "path", p)
				return nil
			}
			contents[i] = content
			readOK[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		perf.EndWithError(ctx, err)
		return err
	}

	next := make(map[string]string, len(paths))
	for i, p := range paths {
		if readOK[i] {
			next[c.tracked[p]] = contents[i]
		}
	}
	c.store.Replace(next)

	if err := c.persist(ctx); err != nil {
		perf.EndWithError(ctx, err)
		return err
	}
	c.regenerations.Add(1)
	perf.End(ctx, "fragments", len(next))
	return nil
}

func (c *Compiler) read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.WrapRead(err, path)
	}
	return c.cache.Minify(string(data)), nil
}

func (c *Compiler) persist(ctx context.Context) error {
	if err := c.writer.Write(ctx, c.store.Snapshot()); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Error(ctx, err, "Failed to write artifact", "output", c.opts.Output)
		return err
	}
	c.reportChanges(ctx)
	return nil
}

// subscribe starts collecting registry events and returns the matching
// unsubscribe function.
func (c *Compiler) subscribe() func() {
	ch := c.store.WatchBuffer(changeBuffer)
	c.changes = ch
	return func() {
		c.changes = nil
		c.store.UnWatch(ch)
	}
}

// reportChanges drains the registry events queued since the last write and
// logs what the write changed in the artifact.
func (c *Compiler) reportChanges(ctx context.Context) {
	if c.changes == nil {
		return
	}

	var added, updated, removed int64
	for drained := false; !drained; {
		select {
		case ev, ok := <-c.changes:
			if !ok {
				drained = true
				break
			}
			switch ev.Type {
			case registry.EventTypeAdded:
				added++
			case registry.EventTypeUpdated:
				updated++
			case registry.EventTypeRemoved:
				removed++
			}
			c.logger.Debug(ctx, "Artifact entry changed", "key", ev.Key, "change", ev.Type.String())
		default:
			drained = true
		}
	}

	if added+updated+removed == 0 {
		return
	}
	c.entriesAdded.Add(added)
	c.entriesUpdated.Add(updated)
	c.entriesRemoved.Add(removed)
	c.logger.Info(ctx, "Artifact updated",
		"added", added,
		"updated", updated,
		"removed", removed,
		"output", c.opts.Output)
}

// Build enumerates the views directory once and writes a fresh artifact
// without watching.
func (c *Compiler) Build(ctx context.Context) error {
	if err := CheckDir(c.root); err != nil {
		return err
	}
	defer c.subscribe()()

	err := fragment.Walk(c.root, func(p string, info os.FileInfo) error {
		if !info.IsDir() && c.opts.Filter.Accept(c.root, p) {
			c.tracked[p] = fragment.Key(c.root, p)
		}
		return nil
	})
	if err != nil {
		return errors.NewReadError(errors.ErrCodeReadFragment, "enumerate views directory", err).WithPath(c.root)
	}

	return c.regenerate(ctx)
}

// Stats returns a snapshot of the compiler's counters. It is safe to call
// while Run is active.
func (c *Compiler) Stats() Stats {
	hits, misses := c.cache.Stats()
	return Stats{
		Regenerations:    c.regenerations.Load(),
		ImmediateUpdates: c.immediateUpdates.Load(),
		ReadFailures:     c.readFailures.Load(),
		Writes:           c.writer.Writes(),
		CacheHits:        hits,
		CacheMisses:      misses,
		EntriesAdded:     c.entriesAdded.Load(),
		EntriesUpdated:   c.entriesUpdated.Load(),
		EntriesRemoved:   c.entriesRemoved.Load(),
	}
}
