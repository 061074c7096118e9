// Package clock supplies the time source a profiler reads. Times are real
// seconds; only differences between readings are meaningful.
package clock

import (
	"sync"
	"time"
)

// MinTick is the smallest tick LastTick reports. Loops that run faster than
// the clock resolution would otherwise report a zero or negative tick.
const MinTick = 0.001

// Source is the clock collaborator consumed by the profiler.
type Source interface {
	// Now returns the current time in seconds, non-decreasing within a run.
	Now() float64
	// LastTick returns the duration of the most recently completed tick in
	// seconds, never less than MinTick.
	LastTick() float64
}

// Wall reads the monotonic clock. MarkTick must be called once per loop
// iteration for LastTick to follow the loop rate.
type Wall struct {
	mu       sync.Mutex
	origin   time.Time
	current  float64
	lastTick float64
}

// NewWall returns a Wall whose zero is the moment of the call.
func NewWall() *Wall {
	return &Wall{
		origin:   time.Now(),
		lastTick: MinTick,
	}
}

func (w *Wall) Now() float64 {
	return time.Since(w.origin).Seconds()
}

// MarkTick closes the current tick and returns its length.
func (w *Wall) MarkTick() float64 {
	now := w.Now()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastTick = clampTick(now - w.current)
	w.current = now
	return w.lastTick
}

func (w *Wall) LastTick() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastTick
}

// Manual only moves when told to. It is used by tests and by replays of
// recorded traces.
type Manual struct {
	mu       sync.Mutex
	now      float64
	mark     float64
	lastTick float64
}

// NewManual returns a Manual clock reading start seconds with the minimum
// tick.
func NewManual(start float64) *Manual {
	return &Manual{now: start, mark: start, lastTick: MinTick}
}

func (m *Manual) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) LastTick() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTick
}

// Advance moves the clock forward by seconds. Negative values are ignored.
func (m *Manual) Advance(seconds float64) {
	if seconds <= 0 {
		return
	}
	m.mu.Lock()
	m.now += seconds
	m.mu.Unlock()
}

// Set moves the clock to an absolute reading. Readings earlier than the
// current one are ignored.
func (m *Manual) Set(seconds float64) {
	m.mu.Lock()
	if seconds > m.now {
		m.now = seconds
	}
	m.mu.Unlock()
}

// MarkTick closes the current tick at the current reading and returns its
// length.
func (m *Manual) MarkTick() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTick = clampTick(m.now - m.mark)
	m.mark = m.now
	return m.lastTick
}

// SetTick sets the value LastTick reports, clamped to MinTick.
func (m *Manual) SetTick(seconds float64) {
	m.mu.Lock()
	m.lastTick = clampTick(seconds)
	m.mu.Unlock()
}

func clampTick(seconds float64) float64 {
	if seconds < MinTick {
		return MinTick
	}
	return seconds
}
