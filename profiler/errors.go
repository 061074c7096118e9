package profiler

import (
	"errors"
	"fmt"
)

var (
	// ErrUnmatchedEnd is reported when End names a region with no Begin in
	// the current frame.
	ErrUnmatchedEnd = errors.New("end called without a begin")
	// ErrUnclosedRegion is reported when a frame is finalized while a region
	// has a non-zero open depth.
	ErrUnclosedRegion = errors.New("region not closed at end of frame")
	// ErrCapacityExceeded is reported when a bounded profiler or history
	// sees more distinct region names than it was configured for.
	ErrCapacityExceeded = errors.New("region capacity exceeded")
)

// RegionError describes an instrumentation misuse for a single region.
// Kind is one of the package sentinels, so errors.Is works on it.
type RegionError struct {
	Kind      error
	Name      string
	OpenDepth int
	Capacity  int
}

func (e *RegionError) Error() string {
	switch e.Kind {
	case ErrUnclosedRegion:
		if e.OpenDepth < 0 {
			return fmt.Sprintf("region %q: %v (%d more end than begin calls)", e.Name, e.Kind, -e.OpenDepth)
		}
		return fmt.Sprintf("region %q: %v (%d begin calls without end)", e.Name, e.Kind, e.OpenDepth)
	case ErrCapacityExceeded:
		return fmt.Sprintf("region %q: %v (limit %d)", e.Name, e.Kind, e.Capacity)
	default:
		return fmt.Sprintf("region %q: %v", e.Name, e.Kind)
	}
}

func (e *RegionError) Unwrap() error {
	return e.Kind
}
