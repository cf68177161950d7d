// Package internal contains the implementation packages for viewpack.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - fragment: Fragment keys, hidden-file rules, include/exclude filters
//     and the symlink-following directory walk
//   - transform: Whitespace and comment minification with a content cache
//   - registry: The key to minified-content aggregate with change events
//   - watcher: File system monitoring with write settling
//   - debounce: Generation-token debounce scheduler
//   - artifact: Rendering, atomic writing and loading of the generated module
//   - compiler: The single-owner loop tying watcher, registry and artifact
//   - lint: Unbalanced-tag detection for fragments
//   - config: Configuration management with validation
//   - errors: Typed errors shared by every package
//   - logging: Structured logging on log/slog
//   - version: Build information
//
// # Data Flow
//
//	watcher.Event -> compiler -> transform.Minify -> registry -> artifact.Writer
//
// The compiler goroutine is the only writer of the registry and the artifact.
// Modifications are written immediately; additions and removals are coalesced
// by the debounce scheduler into a single full regeneration.
package internal
