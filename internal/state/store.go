// Package state is the shared-state bus modules use to talk to each other.
//
// The store is a flat key/value map owned by the host. Writers merge a patch
// into it (shallow, last writer wins per key) and every subscriber is told
// synchronously before Write returns. There are no transactions and no
// versions: two writers racing on the same key simply leave the later value.
package state

import (
	"maps"
	"slices"
	"sync"

	"github.com/joeblew999/plat-water/internal/observability"
)

// Snapshot is a copy of the store contents.
type Snapshot map[string]any

// Clone returns a shallow copy.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	maps.Copy(out, s)
	return out
}

// Change describes one applied write.
type Change struct {
	Keys     []string // keys present in the patch, sorted
	Snapshot Snapshot // store contents after the write
}

// Store is the process-wide shared-state store.
type Store struct {
	metrics *observability.Metrics

	mu     sync.RWMutex
	values map[string]any
	subs   map[int]func(Change)
	nextID int

	watchMu  sync.RWMutex
	watchers map[chan Change]struct{}
}

// NewStore creates an empty store. m may be nil.
func NewStore(m *observability.Metrics) *Store {
	return &Store{
		metrics:  m,
		values:   make(map[string]any),
		subs:     make(map[int]func(Change)),
		watchers: make(map[chan Change]struct{}),
	}
}

// Read returns the value stored under key.
func (s *Store) Read(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Snapshot returns a copy of the whole store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot(s.values).Clone()
}

// Write merges patch into the store and notifies subscribers. Keys in patch
// overwrite existing keys; keys absent from patch are left alone.
func (s *Store) Write(patch Snapshot) {
	if len(patch) == 0 {
		return
	}

	s.mu.Lock()
	maps.Copy(s.values, patch)
	change := Change{
		Keys:     slices.Sorted(maps.Keys(patch)),
		Snapshot: Snapshot(s.values).Clone(),
	}
	ids := slices.Sorted(maps.Keys(s.subs))
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.mu.Unlock()

	s.metrics.StateWritten()

	for _, fn := range fns {
		fn(change)
	}
	s.publish(change)
}

// Subscribe registers fn to be called synchronously after every write, in
// registration order. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Watch returns a buffered channel that receives every change. Slow readers
// miss changes rather than blocking writers.
func (s *Store) Watch() chan Change {
	ch := make(chan Change, 16)
	s.watchMu.Lock()
	s.watchers[ch] = struct{}{}
	s.watchMu.Unlock()
	return ch
}

// Unwatch removes a watcher and closes its channel.
func (s *Store) Unwatch(ch chan Change) {
	s.watchMu.Lock()
	delete(s.watchers, ch)
	s.watchMu.Unlock()
	close(ch)
}

func (s *Store) publish(c Change) {
	s.watchMu.RLock()
	defer s.watchMu.RUnlock()
	for ch := range s.watchers {
		select {
		case ch <- c:
		default:
			// watcher too slow, skip
		}
	}
}
