// Package registry holds the aggregate of minified fragments that the
// generated artifact is rendered from.
package registry

import (
	"sort"
	"sync"
	"time"
)

// FragmentRegistry maps fragment keys to minified content. Reads may happen
// from any goroutine; the compiler is the only writer.
type FragmentRegistry struct {
	fragments map[string]string
	mutex     sync.RWMutex
	watchers  []chan FragmentEvent
}

// FragmentEvent represents a change in the registry
type FragmentEvent struct {
	Type      EventType
	Key       string
	Timestamp time.Time
}

// EventType represents the type of fragment event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
)

func (t EventType) String() string {
	switch t {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// NewFragmentRegistry creates an empty registry
func NewFragmentRegistry() *FragmentRegistry {
	return &FragmentRegistry{
		fragments: make(map[string]string),
		watchers:  make([]chan FragmentEvent, 0),
	}
}

// Upsert inserts or replaces the content stored under key. Watchers are only
// notified when the stored content actually changes.
func (r *FragmentRegistry) Upsert(key, content string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	old, exists := r.fragments[key]
	r.fragments[key] = content

	switch {
	case !exists:
		r.notify(EventTypeAdded, key)
	case old != content:
		r.notify(EventTypeUpdated, key)
	}
}

// Remove deletes key. Removing an absent key is a no-op.
func (r *FragmentRegistry) Remove(key string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.fragments[key]; !exists {
		return
	}
	delete(r.fragments, key)
	r.notify(EventTypeRemoved, key)
}

// Replace swaps in a complete new aggregate and reports the differences to
// watchers. The registry keeps its own copy of fragments.
func (r *FragmentRegistry) Replace(fragments map[string]string) {
	next := make(map[string]string, len(fragments))
	for k, v := range fragments {
		next[k] = v
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, key := range sortedKeys(r.fragments) {
		if _, ok := next[key]; !ok {
			r.notify(EventTypeRemoved, key)
		}
	}
	for _, key := range sortedKeys(next) {
		old, ok := r.fragments[key]
		switch {
		case !ok:
			r.notify(EventTypeAdded, key)
		case old != next[key]:
			r.notify(EventTypeUpdated, key)
		}
	}

	r.fragments = next
}

// Get retrieves the content stored under key
func (r *FragmentRegistry) Get(key string) (string, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	content, exists := r.fragments[key]
	return content, exists
}

// Snapshot returns an independent copy of every key and its content, taken at
// a single point in time.
func (r *FragmentRegistry) Snapshot() map[string]string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make(map[string]string, len(r.fragments))
	for k, v := range r.fragments {
		result[k] = v
	}
	return result
}

// Keys returns the registered keys in sorted order
func (r *FragmentRegistry) Keys() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return sortedKeys(r.fragments)
}

// Count returns the number of registered fragments
func (r *FragmentRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.fragments)
}

// DefaultWatchBuffer is the channel capacity used by Watch.
const DefaultWatchBuffer = 100

// Watch returns a channel that receives fragment events
func (r *FragmentRegistry) Watch() <-chan FragmentEvent {
	return r.WatchBuffer(DefaultWatchBuffer)
}

// WatchBuffer is Watch with a channel capacity of size. Events that do not
// fit are dropped.
func (r *FragmentRegistry) WatchBuffer(size int) <-chan FragmentEvent {
	if size < 1 {
		size = 1
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan FragmentEvent, size)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *FragmentRegistry) UnWatch(ch <-chan FragmentEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// notify must be called with the write lock held.
func (r *FragmentRegistry) notify(eventType EventType, key string) {
	event := FragmentEvent{
		Type:      eventType,
		Key:       key,
		Timestamp: time.Now(),
	}

	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
