//go:build property

package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/conneroisu/viewpack/internal/fragment"
	"github.com/conneroisu/viewpack/internal/logging"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestWatcherProperties validates that the reported file set tracks the
// directory contents.
func TestWatcherProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 10

	properties := gopter.NewProperties(parameters)

	properties.Property("known files equal files on disk after settle", prop.ForAll(
		func(created int, removed int) bool {
			if removed > created {
				removed = created
			}

			root := filepath.Join(t.TempDir(), "views")
			if err := os.MkdirAll(root, 0o755); err != nil {
				return false
			}

			w, err := New(root, Options{Settle: 30 * time.Millisecond}, logging.Discard())
			if err != nil {
				return false
			}
			defer w.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := w.Start(ctx); err != nil {
				return false
			}

			present := make(map[string]bool)
			for i := 0; i < created; i++ {
				rel := fmt.Sprintf("d%d/f%d.html", i%3, i)
				p := filepath.Join(root, filepath.FromSlash(rel))
				if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
					return false
				}
				if err := os.WriteFile(p, []byte(rel), 0o644); err != nil {
					return false
				}
				present[rel] = true
			}

			seen := make(map[string]bool)
			drain := func(d time.Duration) {
				deadline := time.After(d)
				for {
					select {
					case ev := <-w.Events():
						key := fragment.Key(root, ev.Path)
						if ev.Op == Removed {
							delete(seen, key)
						} else {
							seen[key] = true
						}
					case <-deadline:
						return
					}
				}
			}
			drain(500 * time.Millisecond)

			for i := 0; i < removed; i++ {
				rel := fmt.Sprintf("d%d/f%d.html", i%3, i)
				if err := os.Remove(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
					return false
				}
				delete(present, rel)
			}
			drain(500 * time.Millisecond)

			return equalKeys(present, seen)
		},
		gen.IntRange(1, 12),
		gen.IntRange(0, 6),
	))

	properties.TestingRun(t)
}

func equalKeys(a, b map[string]bool) bool {
	ka := make([]string, 0, len(a))
	for k := range a {
		ka = append(ka, k)
	}
	kb := make([]string, 0, len(b))
	for k := range b {
		kb = append(kb, k)
	}
	sort.Strings(ka)
	sort.Strings(kb)
	return fmt.Sprint(ka) == fmt.Sprint(kb)
}
