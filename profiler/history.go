package profiler

import "math"

// History keeps one smoothed Times value per region name for the lifetime of
// the History. Names are never removed.
//
// Min and Max are not true extremes: a new value below Min (above Max) is
// taken immediately, otherwise they decay toward the current value so stale
// extremes fade.
type History struct {
	entries  map[string]*Times
	order    []string
	capacity int
}

// NewHistory returns an empty History. A positive capacity bounds the number
// of distinct names it will track.
func NewHistory(capacity int) *History {
	return &History{
		entries:  make(map[string]*Times),
		capacity: capacity,
	}
}

// Update folds percent into the entry for name and returns the new value.
// lastTick is the length in seconds of the most recent clock tick; it sets
// the weight of the new observation. The first observation of a name is
// stored unsmoothed.
func (h *History) Update(name string, percent, lastTick float64) (Times, error) {
	entry, ok := h.entries[name]
	if !ok {
		if h.capacity > 0 && len(h.order) >= h.capacity {
			return Times{}, &RegionError{Kind: ErrCapacityExceeded, Name: name, Capacity: h.capacity}
		}
		entry = &Times{Average: percent, Min: math.Max(percent, 0), Max: percent}
		h.entries[name] = entry
		h.order = append(h.order, name)
		return *entry, nil
	}

	newRatio := smoothingRatio(lastTick)
	oldRatio := 1 - newRatio
	weighted := percent * newRatio

	entry.Average = entry.Average*oldRatio + weighted

	if percent < entry.Min {
		entry.Min = percent
	} else {
		entry.Min = entry.Min*oldRatio + weighted
	}
	entry.Min = math.Max(entry.Min, 0)

	if percent > entry.Max {
		entry.Max = percent
	} else {
		entry.Max = entry.Max*oldRatio + weighted
	}

	return *entry, nil
}

// Lookup returns the entry for name, or zero Times if name was never seen.
func (h *History) Lookup(name string) Times {
	if entry, ok := h.entries[name]; ok {
		return *entry
	}
	return Times{}
}

// Names returns the tracked names in the order they were first observed.
func (h *History) Names() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

func (h *History) Len() int {
	return len(h.order)
}

// smoothingRatio is the weight of a new observation: 0.8 per second of tick,
// saturating at 1.
func smoothingRatio(lastTick float64) float64 {
	return math.Min(0.8*lastTick, 1.0)
}
