package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_MergesShallow(t *testing.T) {
	s := NewStore(nil)
	s.Write(Snapshot{"a": 1})
	s.Write(Snapshot{SelectedFeatureKey(): "F"})

	assert.Equal(t, Snapshot{"a": 1, SelectedFeatureKey(): "F"}, s.Snapshot())
}

func TestWrite_LastWriterWinsPerKey(t *testing.T) {
	s := NewStore(nil)
	s.Write(Snapshot{"a": 1, "b": 1})
	s.Write(Snapshot{"a": 2})

	v, ok := s.Read("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	v, _ = s.Read("b")
	assert.Equal(t, 1, v)
}

func TestWrite_EmptyPatchIsNoop(t *testing.T) {
	s := NewStore(nil)
	called := false
	s.Subscribe(func(Change) { called = true })
	s.Write(nil)
	assert.False(t, called)
}

func TestSnapshot_IsCopy(t *testing.T) {
	s := NewStore(nil)
	s.Write(Snapshot{"a": 1})

	snap := s.Snapshot()
	snap["a"] = 99
	v, _ := s.Read("a")
	assert.Equal(t, 1, v)
}

func TestSubscribe_SynchronousAndOrdered(t *testing.T) {
	s := NewStore(nil)
	var order []string
	s.Subscribe(func(c Change) { order = append(order, "first") })
	s.Subscribe(func(c Change) {
		order = append(order, "second")
		assert.Equal(t, []string{"x", "y"}, c.Keys)
		assert.Equal(t, 1, c.Snapshot["x"])
	})

	s.Write(Snapshot{"y": 2, "x": 1})
	// both ran before Write returned
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestSubscribe_Cancel(t *testing.T) {
	s := NewStore(nil)
	n := 0
	cancel := s.Subscribe(func(Change) { n++ })
	s.Write(Snapshot{"a": 1})
	cancel()
	s.Write(Snapshot{"a": 2})
	assert.Equal(t, 1, n)
}

func TestSubscriberMayWrite(t *testing.T) {
	s := NewStore(nil)
	s.Subscribe(func(c Change) {
		if _, ok := c.Snapshot["echo"]; !ok {
			s.Write(Snapshot{"echo": true})
		}
	})
	s.Write(Snapshot{"a": 1})
	v, ok := s.Read("echo")
	assert.True(t, ok)
	assert.Equal(t, true, v)
}

func TestWatch_ReceivesChanges(t *testing.T) {
	s := NewStore(nil)
	ch := s.Watch()
	defer s.Unwatch(ch)

	s.Write(Snapshot{"a": 1})
	c := <-ch
	assert.Equal(t, []string{"a"}, c.Keys)
}

// Concurrent writers on the same key are not coordinated: the store ends up
// holding one of the written values and nothing else. This is accepted
// behavior, not a bug.
func TestConcurrentWriters_LastWriteWinsWithoutConflictDetection(t *testing.T) {
	s := NewStore(nil)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Write(Snapshot{"race": i})
		}()
	}
	wg.Wait()

	v, ok := s.Read("race")
	require.True(t, ok)
	assert.GreaterOrEqual(t, v.(int), 0)
	assert.Less(t, v.(int), 50)
	assert.Len(t, s.Snapshot(), 1)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "gwf-prairie-water.selected-feature", SelectedFeatureKey())
	assert.Equal(t, "gwf-default.locationSelection", LocationSelectionKey())
}
