package loading

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/joeblew999/plat-water/internal/observability"
)

func TestBegin_NilNotifier(t *testing.T) {
	end := Begin(nil)
	assert.NotPanics(t, end)

	end = Begin(func() func() { return nil })
	assert.NotPanics(t, end)
}

func TestBegin_ReleaseRunsOnce(t *testing.T) {
	calls := 0
	n := Notifier(func() func() {
		return func() { calls++ }
	})

	end := Begin(n)
	end()
	end()
	end()
	assert.Equal(t, 1, calls)
}

func TestTracker_CountsAndBusy(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.Busy())

	end1 := tr.Begin()
	end2 := tr.Begin()
	assert.Equal(t, 2, tr.InFlight())

	end1()
	end1()
	assert.Equal(t, 1, tr.InFlight())

	end2()
	assert.False(t, tr.Busy())
}

func TestTracker_OnChangeFiresOnTransitions(t *testing.T) {
	tr := NewTracker()
	var seen []bool
	cancel := tr.OnChange(func(busy bool) { seen = append(seen, busy) })

	a := tr.Begin()
	b := tr.Begin()
	a()
	b()
	assert.Equal(t, []bool{true, false}, seen)

	cancel()
	tr.Begin()()
	assert.Len(t, seen, 2)
}

func TestTracker_RecordsDuration(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))
	m := observability.NewMetricsForTesting()
	tr := NewTracker(WithClock(clock), WithMetrics(m))

	end := Begin(tr.Notifier())
	assert.InDelta(t, 1, testutil.ToFloat64(m.LoadingInFlight), 0)

	clock.Advance(2 * time.Second)
	end()
	assert.InDelta(t, 0, testutil.ToFloat64(m.LoadingInFlight), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.LoadingDuration))
}
