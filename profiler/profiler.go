package profiler

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tyde/framescope/clock"
)

// Profiler accumulates regions for the current frame and owns the history
// of every region it has seen. Methods are safe to call from several
// goroutines, but nesting is inferred from a single timeline, so concurrent
// workers should each use their own Profiler.
type Profiler struct {
	mu     sync.Mutex
	clock  clock.Source
	logger zerolog.Logger
	strict bool

	capacity int
	samples  []*sample
	index    map[string]int
	history  *History

	frameIndex int
	frameStart float64
	last       Frame
	report     string
}

// New returns a Profiler reading time from clk. The frame baseline is set to
// the current reading; call Init to move it.
func New(clk clock.Source, options ...Option) *Profiler {
	conf := collectOptions(options...)
	p := &Profiler{
		clock:    clk,
		logger:   conf.logger,
		strict:   conf.strict,
		capacity: conf.capacity,
		index:    make(map[string]int),
		history:  NewHistory(conf.capacity),
	}
	p.frameStart = clk.Now()
	return p
}

// Init discards the current frame and starts a new one now. History is kept.
func (p *Profiler) Init() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetFrameLocked()
	p.frameStart = p.clock.Now()
}

// Begin opens region name. Beginning a region that is already open counts
// another invocation and restarts its interval.
func (p *Profiler) Begin(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if i, ok := p.index[name]; ok {
		s := p.samples[i]
		s.count++
		s.openDepth++
		s.startTime = now
		return nil
	}

	if p.capacity > 0 && len(p.samples) >= p.capacity {
		return p.violation(&RegionError{Kind: ErrCapacityExceeded, Name: name, Capacity: p.capacity})
	}

	p.index[name] = len(p.samples)
	p.samples = append(p.samples, &sample{
		name:      name,
		count:     1,
		openDepth: 1,
		startTime: now,
	})
	return nil
}

// End closes region name and charges its interval to the innermost region
// still open, if any.
func (p *Profiler) End(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	i, ok := p.index[name]
	if !ok {
		return p.violation(&RegionError{Kind: ErrUnmatchedEnd, Name: name})
	}

	s := p.samples[i]
	dt := now - s.startTime
	s.accumulator += dt
	s.openDepth--

	s.parentDepth = p.openCountLocked()
	if s.parentDepth > 0 {
		if parent := p.closestOpenLocked(); parent != nil {
			parent.childTime += dt
		}
	}
	return nil
}

// Scope begins name and returns a func that ends it:
//
//	defer p.Scope("physics")()
//
// Misuse is handled as for Begin and End.
func (p *Profiler) Scope(name string) func() {
	_ = p.Begin(name)
	return func() {
		_ = p.End(name)
	}
}

// Finalize closes the current frame. Each well-formed region's self time is
// converted to a percentage of the frame and folded into history. Regions
// left open, or closed more often than opened, are reported and skipped.
// The frame set is cleared and a new frame starts now.
func (p *Profiler) Finalize() (Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame, err := p.finalizeLocked()
	p.last = frame.Clone()
	return frame, err
}

// FinalizeFrame finalizes the frame and renders its report. The text is also
// kept for Report and Draw until the next frame is finalized.
func (p *Profiler) FinalizeFrame() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame, err := p.finalizeLocked()
	p.last = frame.Clone()
	p.report = Render(frame)
	return p.report, err
}

// LastFrame returns the most recently finalized frame.
func (p *Profiler) LastFrame() Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last.Clone()
}

// Report returns the text produced by the most recent FinalizeFrame.
func (p *Profiler) Report() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.report
}

// Draw writes the most recent report to w. Called before FinalizeFrame it
// shows the previous frame.
func (p *Profiler) Draw(w io.Writer) error {
	report := p.Report()
	if _, err := io.WriteString(w, report+"\n"); err != nil {
		return fmt.Errorf("failed to draw profile report: %w", err)
	}
	return nil
}

// Lookup returns the smoothed history of name, or zero Times if it was never
// observed.
func (p *Profiler) Lookup(name string) Times {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.Lookup(name)
}

// HistoryNames returns every region name seen so far in first-seen order.
func (p *Profiler) HistoryNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.Names()
}

// FrameIndex returns the index of the frame currently being accumulated.
func (p *Profiler) FrameIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameIndex
}

func (p *Profiler) finalizeLocked() (Frame, error) {
	end := p.clock.Now()
	frame := Frame{
		Index:    p.frameIndex,
		Start:    p.frameStart,
		End:      end,
		Duration: frameDuration(p.frameStart, end),
		Tick:     p.clock.LastTick(),
		Rows:     make([]Row, 0, len(p.samples)),
	}

	var errs []error
	for _, s := range p.samples {
		if s.openDepth != 0 {
			errs = append(errs, p.violation(&RegionError{Kind: ErrUnclosedRegion, Name: s.name, OpenDepth: s.openDepth}))
			continue
		}

		self := s.accumulator - s.childTime
		percent := self / frame.Duration * 100

		times, err := p.history.Update(s.name, percent, frame.Tick)
		if err != nil {
			errs = append(errs, p.violation(err))
			continue
		}

		frame.Rows = append(frame.Rows, Row{
			Name:     s.name,
			Count:    s.count,
			Depth:    s.parentDepth,
			Total:    s.accumulator,
			Children: s.childTime,
			Self:     self,
			Percent:  percent,
			Times:    times,
		})
	}

	p.logger.Debug().
		Int("frame", frame.Index).
		Int("regions", len(frame.Rows)).
		Float64("duration", frame.Duration).
		Msg("Frame finalized")

	p.resetFrameLocked()
	p.frameIndex++
	p.frameStart = p.clock.Now()

	return frame, errors.Join(errs...)
}

func (p *Profiler) resetFrameLocked() {
	p.samples = p.samples[:0]
	clear(p.index)
}

func (p *Profiler) openCountLocked() int {
	count := 0
	for _, s := range p.samples {
		if s.open() {
			count++
		}
	}
	return count
}

// closestOpenLocked returns the open sample with the latest start time. On
// equal start times the one inserted last wins.
func (p *Profiler) closestOpenLocked() *sample {
	var parent *sample
	for _, s := range p.samples {
		if !s.open() {
			continue
		}
		if parent == nil || s.startTime >= parent.startTime {
			parent = s
		}
	}
	return parent
}

// violation logs err and returns it, or panics with it in strict mode.
func (p *Profiler) violation(err error) error {
	event := p.logger.Warn().Err(err)
	var regionErr *RegionError
	if errors.As(err, &regionErr) {
		event = event.Str("region", regionErr.Name).Int("open_depth", regionErr.OpenDepth)
	}
	event.Msg("Profiler instrumentation misuse")

	if p.strict {
		panic(err)
	}
	return err
}

// frameDuration never returns less than clock.MinTick so percentages stay
// finite when a frame is finalized on the same clock reading it started.
func frameDuration(start, end float64) float64 {
	d := end - start
	if d < clock.MinTick {
		return clock.MinTick
	}
	return d
}
