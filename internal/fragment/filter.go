package fragment

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects fragments by key using doublestar include and exclude
// patterns. The zero Filter accepts every key.
type Filter struct {
	include []string
	exclude []string
}

// NewFilter validates the patterns and builds a Filter. An empty include list
// means every key is included.
func NewFilter(include, exclude []string) (Filter, error) {
	for _, p := range include {
		if !doublestar.ValidatePattern(p) {
			return Filter{}, fmt.Errorf("invalid include pattern %q", p)
		}
	}
	for _, p := range exclude {
		if !doublestar.ValidatePattern(p) {
			return Filter{}, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}

	return Filter{
		include: append([]string(nil), include...),
		exclude: append([]string(nil), exclude...),
	}, nil
}

// Match reports whether the fragment with the given key is selected.
func (f Filter) Match(key string) bool {
	if len(f.include) > 0 && !matchAny(f.include, key) {
		return false
	}
	return !matchAny(f.exclude, key)
}

func matchAny(patterns []string, key string) bool {
	for _, p := range patterns {
		// Patterns are validated in NewFilter, so Match cannot fail here.
		if ok, _ := doublestar.Match(p, key); ok {
			return true
		}
	}
	return false
}

// Accept combines the hidden-file rule with f for a file under root.
func (f Filter) Accept(root, p string) bool {
	if IsHidden(root, p) {
		return false
	}
	return f.Match(Key(root, p))
}
