package layer

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Phase is where the engine is in its load/filter/style cycle.
type Phase int

const (
	// Uninitialized: no shape data fetched yet.
	Uninitialized Phase = iota
	// ShapeLoaded: shapes fetched, no filter applied yet.
	ShapeLoaded
	// Filtering: at least one filter cycle is waiting on scalar fetches.
	Filtering
	// Styled: filter and time index settled, nothing pending.
	Styled
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case ShapeLoaded:
		return "shape-loaded"
	case Filtering:
		return "filtering"
	case Styled:
		return "styled"
	}
	return "phase(" + strconv.Itoa(int(p)) + ")"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Filter maps class identifiers to visibility. A missing key means hidden.
type Filter map[string]bool

// Enabled reports whether class id is visible.
func (f Filter) Enabled(id string) bool {
	return f[id]
}

// Clone returns a copy; a nil filter clones to an empty one.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	maps.Copy(out, f)
	return out
}

// With returns a copy of f with id set to on.
func (f Filter) With(id string, on bool) Filter {
	out := f.Clone()
	out[id] = on
	return out
}

// ClassIDs returns every class id the filter mentions, visible or not.
func (f Filter) ClassIDs() []string {
	return sortClassIDs(slices.Collect(maps.Keys(f)))
}

// EnabledIDs returns the visible class ids.
func (f Filter) EnabledIDs() []string {
	var ids []string
	for id, on := range f {
		if on {
			ids = append(ids, id)
		}
	}
	return sortClassIDs(ids)
}

// Time index bounds.
const (
	MinYear = 1900
	MaxYear = 1940
	MinDay  = 0
	MaxDay  = 364
)

var ErrTimeOutOfRange = errors.New("time index out of range")

// TimeIndex selects which sample of a scalar series drives the style.
type TimeIndex struct {
	Year int `json:"year" minimum:"1900" maximum:"1940" doc:"Year"`
	Day  int `json:"day" minimum:"0" maximum:"364" doc:"Day of year"`
}

// DefaultTime is the index a new engine starts at.
func DefaultTime() TimeIndex {
	return TimeIndex{Year: MinYear, Day: MinDay}
}

// Validate checks the declared bounds.
func (t TimeIndex) Validate() error {
	if t.Year < MinYear || t.Year > MaxYear {
		return fmt.Errorf("%w: year %d not in [%d, %d]", ErrTimeOutOfRange, t.Year, MinYear, MaxYear)
	}
	if t.Day < MinDay || t.Day > MaxDay {
		return fmt.Errorf("%w: day %d not in [%d, %d]", ErrTimeOutOfRange, t.Day, MinDay, MaxDay)
	}
	return nil
}

// sortClassIDs orders numeric ids numerically and puts the rest after them
// in lexical order.
func sortClassIDs(ids []string) []string {
	slices.SortFunc(ids, func(a, b string) int {
		na, errA := strconv.Atoi(a)
		nb, errB := strconv.Atoi(b)
		switch {
		case errA == nil && errB == nil:
			return na - nb
		case errA == nil:
			return -1
		case errB == nil:
			return 1
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return ids
}
