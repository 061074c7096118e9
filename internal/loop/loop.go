// Package loop drives a profiler with a synthetic frame loop. It brackets a
// scene of regions each frame, draws the previous frame's report and then
// finalizes the current one.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/tyde/framescope/clock"
	"github.com/tyde/framescope/internal/metrics"
	"github.com/tyde/framescope/internal/procstat"
	"github.com/tyde/framescope/profiler"
)

// Ticker is a clock the loop can mark once per frame.
type Ticker interface {
	clock.Source
	MarkTick() float64
}

// Config controls pacing and output of the loop.
type Config struct {
	FrameSeconds float64
	// Frames stops the loop after this many frames. Zero runs until the
	// context is cancelled.
	Frames int
	Scene  []Region
}

// Loop is the driving loop around one profiler.
type Loop struct {
	cfg      Config
	prof     *profiler.Profiler
	clock    Ticker
	out      io.Writer
	logger   zerolog.Logger
	sampler  *procstat.Sampler
	exporter *metrics.Exporter
	work     func(ctx context.Context, d time.Duration)

	usage *procstat.Usage
	// frame index the last drawn report led up to
	drawn int
}

type Option func(*Loop)

// WithProcessSampler appends the process CPU usage of each frame under its
// report.
func WithProcessSampler(s *procstat.Sampler) Option {
	return func(l *Loop) {
		l.sampler = s
	}
}

// WithExporter mirrors each finalized frame into Prometheus collectors.
func WithExporter(e *metrics.Exporter) Option {
	return func(l *Loop) {
		l.exporter = e
	}
}

// WithLogger sets the loop logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// New returns a Loop writing reports to out.
func New(cfg Config, prof *profiler.Profiler, clk Ticker, out io.Writer, options ...Option) (*Loop, error) {
	if cfg.FrameSeconds <= 0 {
		return nil, fmt.Errorf("frame length must be greater than zero seconds, got %v", cfg.FrameSeconds)
	}
	if len(cfg.Scene) == 0 {
		cfg.Scene = DefaultScene()
	}

	l := &Loop{
		cfg:    cfg,
		prof:   prof,
		clock:  clk,
		out:    out,
		logger: zerolog.Nop(),
		work:   sleep,
	}
	for _, opt := range options {
		opt(l)
	}
	return l, nil
}

// Run executes frames until the configured count is reached or ctx is
// cancelled. Cancellation is a normal stop and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	frameLength := time.Duration(l.cfg.FrameSeconds * float64(time.Second))
	if frameLength < time.Millisecond {
		frameLength = time.Millisecond
	}
	ticker := time.NewTicker(frameLength)
	defer ticker.Stop()

	l.logger.Info().
		Float64("frame_seconds", l.cfg.FrameSeconds).
		Int("frames", l.cfg.Frames).
		Msg("Frame loop started")

	l.prof.Init()
	for frame := 0; l.cfg.Frames == 0 || frame < l.cfg.Frames; frame++ {
		if err := l.step(ctx, frameLength); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return err
		}

		if l.cfg.Frames != 0 && frame == l.cfg.Frames-1 {
			break
		}
		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			break
		}
	}

	l.logger.Info().Int("frames", l.prof.FrameIndex()).Msg("Frame loop stopped")
	return l.draw()
}

// step runs one frame: mark the tick, draw the previous report, run the
// scene and finalize.
func (l *Loop) step(ctx context.Context, frameLength time.Duration) error {
	tick := l.clock.MarkTick()

	if err := l.draw(); err != nil {
		return err
	}

	for _, region := range l.cfg.Scene {
		if err := l.runRegion(ctx, region, frameLength); err != nil {
			return err
		}
	}

	if _, err := l.prof.FinalizeFrame(); err != nil {
		l.logger.Debug().Err(err).Msg("Frame finalized with instrumentation errors")
	}
	frame := l.prof.LastFrame()

	if l.exporter != nil {
		l.exporter.ObserveFrame(frame)
	}

	if l.sampler != nil {
		usage, err := l.sampler.Frame(frame.Duration)
		if err != nil {
			l.logger.Warn().Err(err).Msg("Process sampling failed")
		} else {
			l.usage = &usage
			if l.exporter != nil {
				l.exporter.ObserveProcess(usage)
			}
		}
	}

	l.logger.Debug().
		Int("frame", frame.Index).
		Float64("tick", tick).
		Float64("duration", frame.Duration).
		Msg("Frame complete")
	return nil
}

func (l *Loop) runRegion(ctx context.Context, region Region, frameLength time.Duration) error {
	_ = l.prof.Begin(region.Name)
	defer func() { _ = l.prof.End(region.Name) }()

	l.work(ctx, time.Duration(region.Share*float64(frameLength)))
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, child := range region.Children {
		if err := l.runRegion(ctx, child, frameLength); err != nil {
			return err
		}
	}
	return nil
}

// draw writes the most recent report unless it was already drawn.
func (l *Loop) draw() error {
	next := l.prof.FrameIndex()
	if next == l.drawn {
		return nil
	}
	l.drawn = next
	if err := l.prof.Draw(l.out); err != nil {
		return err
	}
	if l.usage != nil {
		if _, err := fmt.Fprintln(l.out, l.usage.String()); err != nil {
			return fmt.Errorf("failed to draw process usage: %w", err)
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
