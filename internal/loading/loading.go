// Package loading implements the busy-indicator contract between modules and
// the host: a module begins a long-running operation and receives a release
// function that must run exactly once on every exit path.
package loading

import (
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/joeblew999/plat-water/internal/observability"
)

// Notifier begins a long-running operation and returns the function that
// ends it.
type Notifier func() (end func())

// Begin starts an operation on n. A nil notifier, or one that hands back a
// nil release, yields a no-op release. The returned release is safe to call
// more than once; only the first call reaches the notifier.
func Begin(n Notifier) func() {
	if n == nil {
		return func() {}
	}
	end := n()
	if end == nil {
		return func() {}
	}
	return onceFunc(end)
}

func onceFunc(fn func()) func() {
	var once sync.Once
	return func() { once.Do(fn) }
}

// Tracker is the host side of the contract. It counts operations in flight
// and tells observers when the host flips between idle and busy.
type Tracker struct {
	clock   clockwork.Clock
	metrics *observability.Metrics

	mu       sync.Mutex
	inFlight int
	nextID   int
	watchers map[int]func(busy bool)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used to time operations.
func WithClock(c clockwork.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithMetrics records in-flight count and durations.
func WithMetrics(m *observability.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// NewTracker creates an idle tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		clock:    clockwork.NewRealClock(),
		watchers: make(map[int]func(bool)),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Begin marks an operation as started. It satisfies Notifier.
func (t *Tracker) Begin() func() {
	start := t.clock.Now()
	t.metrics.LoadingStarted()
	t.add(1)
	return onceFunc(func() {
		t.metrics.LoadingFinished(t.clock.Since(start))
		t.add(-1)
	})
}

// Notifier returns t.Begin as a Notifier value.
func (t *Tracker) Notifier() Notifier {
	return t.Begin
}

// InFlight reports how many operations have begun but not ended.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight
}

// Busy reports whether any operation is in flight.
func (t *Tracker) Busy() bool {
	return t.InFlight() > 0
}

// OnChange registers fn to run whenever the tracker goes idle→busy or
// busy→idle. The returned function removes the observer.
func (t *Tracker) OnChange(fn func(busy bool)) (cancel func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.watchers[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.watchers, id)
		t.mu.Unlock()
	}
}

func (t *Tracker) add(delta int) {
	t.mu.Lock()
	before := t.inFlight > 0
	t.inFlight += delta
	after := t.inFlight > 0
	var fns []func(bool)
	if before != after {
		fns = make([]func(bool), 0, len(t.watchers))
		for _, fn := range t.watchers {
			fns = append(fns, fn)
		}
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(after)
	}
}
