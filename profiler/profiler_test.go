package profiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tyde/framescope/clock"
)

func newTestProfiler(t *testing.T, options ...Option) (*Profiler, *clock.Manual) {
	t.Helper()

	clk := clock.NewManual(100)
	p := New(clk, options...)
	p.Init()
	return p, clk
}

func TestSinglePair(t *testing.T) {
	p, clk := newTestProfiler(t)

	require.NoError(t, p.Begin("A"))
	clk.Advance(0.25)
	require.NoError(t, p.End("A"))
	clk.Advance(0.75)

	frame, err := p.Finalize()
	require.NoError(t, err)
	require.Len(t, frame.Rows, 1)

	row := frame.Rows[0]
	assert.Equal(t, "A", row.Name)
	assert.Equal(t, 1, row.Count)
	assert.Equal(t, 0, row.Depth)
	assert.Equal(t, 0.25, row.Total)
	assert.Equal(t, 0.0, row.Children)
	assert.Equal(t, 0.25, row.Self)
	assert.Equal(t, 1.0, frame.Duration)
	assert.InDelta(t, 25.0, row.Percent, 1e-9)
}

func TestSequentialRegionsCoverFrame(t *testing.T) {
	p, clk := newTestProfiler(t)

	require.NoError(t, p.Begin("A"))
	clk.Advance(0.5)
	require.NoError(t, p.End("A"))
	require.NoError(t, p.Begin("B"))
	clk.Advance(0.5)
	require.NoError(t, p.End("B"))

	frame, err := p.Finalize()
	require.NoError(t, err)
	require.Len(t, frame.Rows, 2)

	a, b := frame.Rows[0], frame.Rows[1]
	assert.Equal(t, "A", a.Name)
	assert.Equal(t, "B", b.Name)
	assert.Equal(t, 0, a.Depth)
	assert.Equal(t, 0, b.Depth)
	assert.InDelta(t, frame.Duration, a.Self+b.Self, 1e-9)
	assert.InDelta(t, 100.0, a.Percent+b.Percent, 1e-9)
}

func TestNestedRegions(t *testing.T) {
	p, clk := newTestProfiler(t)

	require.NoError(t, p.Begin("A"))
	clk.Advance(0.125)
	require.NoError(t, p.Begin("B"))
	clk.Advance(0.5)
	require.NoError(t, p.End("B"))
	clk.Advance(0.25)
	require.NoError(t, p.End("A"))
	clk.Advance(0.125)

	frame, err := p.Finalize()
	require.NoError(t, err)

	a, ok := frame.Row("A")
	require.True(t, ok)
	b, ok := frame.Row("B")
	require.True(t, ok)

	assert.Equal(t, 0.5, b.Total)
	assert.Equal(t, b.Total, a.Children)
	assert.Equal(t, a.Total-b.Total, a.Self)
	assert.Equal(t, 0.375, a.Self)
	assert.Equal(t, 1, b.Depth)
	assert.Equal(t, 0, a.Depth)

	// rows follow first Begin, not cost
	assert.Equal(t, []string{"A", "B"}, []string{frame.Rows[0].Name, frame.Rows[1].Name})
}

func TestThreeLevelNesting(t *testing.T) {
	p, clk := newTestProfiler(t)

	require.NoError(t, p.Begin("loop"))
	require.NoError(t, p.Begin("render"))
	clk.Advance(0.25)
	require.NoError(t, p.Begin("shadows"))
	clk.Advance(0.25)
	require.NoError(t, p.End("shadows"))
	require.NoError(t, p.End("render"))
	clk.Advance(0.5)
	require.NoError(t, p.End("loop"))

	frame, err := p.Finalize()
	require.NoError(t, err)

	loop, _ := frame.Row("loop")
	render, _ := frame.Row("render")
	shadows, _ := frame.Row("shadows")

	assert.Equal(t, 2, shadows.Depth)
	assert.Equal(t, 1, render.Depth)
	assert.Equal(t, 0, loop.Depth)

	// shadows is charged to render only, render to loop only
	assert.Equal(t, 0.25, render.Self)
	assert.Equal(t, 0.5, loop.Self)
	assert.Equal(t, 0.25, shadows.Self)
	assert.InDelta(t, 1.0, loop.Self+render.Self+shadows.Self, 1e-9)
}

func TestReentrantRegionCountsInvocations(t *testing.T) {
	p, clk := newTestProfiler(t)

	require.NoError(t, p.Begin("A"))
	clk.Advance(1)
	require.NoError(t, p.Begin("A"))
	clk.Advance(1)
	require.NoError(t, p.End("A"))
	clk.Advance(1)
	require.NoError(t, p.End("A"))
	clk.Advance(1)

	frame, err := p.Finalize()
	require.NoError(t, err)
	require.Len(t, frame.Rows, 1)

	// The second Begin restarts the interval, and the inner End is charged
	// to A itself because A is still open.
	row := frame.Rows[0]
	assert.Equal(t, 2, row.Count)
	assert.Equal(t, 3.0, row.Total)
	assert.Equal(t, 1.0, row.Children)
	assert.Equal(t, 2.0, row.Self)
	assert.InDelta(t, 50.0, row.Percent, 1e-9)
}

func TestClosestParentTieBreaksOnInsertionOrder(t *testing.T) {
	p, clk := newTestProfiler(t)

	require.NoError(t, p.Begin("A"))
	require.NoError(t, p.Begin("B"))
	require.NoError(t, p.Begin("C"))
	clk.Advance(1)
	require.NoError(t, p.End("C"))

	assert.Equal(t, 0.0, p.samples[0].childTime)
	assert.Equal(t, 1.0, p.samples[1].childTime)
	assert.Equal(t, 2, p.samples[2].parentDepth)
}

func TestInterleavedRegionsBestEffort(t *testing.T) {
	p, clk := newTestProfiler(t)

	require.NoError(t, p.Begin("A"))
	clk.Advance(1)
	require.NoError(t, p.Begin("B"))
	clk.Advance(1)
	require.NoError(t, p.End("A"))
	clk.Advance(1)
	require.NoError(t, p.End("B"))

	frame, err := p.Finalize()
	require.NoError(t, err)

	a, _ := frame.Row("A")
	b, _ := frame.Row("B")
	assert.Equal(t, 2.0, a.Self)
	assert.Equal(t, 1, a.Depth)
	assert.Equal(t, 2.0, b.Children)
	assert.Equal(t, 0.0, b.Self)
}

func TestEndWithoutBegin(t *testing.T) {
	p, clk := newTestProfiler(t)

	require.NoError(t, p.Begin("A"))
	clk.Advance(0.5)
	before := *p.samples[0]

	err := p.End("B")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnmatchedEnd)

	var regionErr *RegionError
	require.ErrorAs(t, err, &regionErr)
	assert.Equal(t, "B", regionErr.Name)

	require.Len(t, p.samples, 1)
	assert.Equal(t, before, *p.samples[0])
}

func TestUnclosedRegionIsSkipped(t *testing.T) {
	p, clk := newTestProfiler(t)

	require.NoError(t, p.Begin("open"))
	require.NoError(t, p.Begin("ok"))
	clk.Advance(0.5)
	require.NoError(t, p.End("ok"))

	frame, err := p.Finalize()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnclosedRegion)

	require.Len(t, frame.Rows, 1)
	assert.Equal(t, "ok", frame.Rows[0].Name)
	assert.Equal(t, Times{}, p.Lookup("open"))

	// next frame starts clean
	require.NoError(t, p.Begin("ok"))
	clk.Advance(0.5)
	require.NoError(t, p.End("ok"))
	_, err = p.Finalize()
	assert.NoError(t, err)
}

func TestExtraEndReportedAtFinalize(t *testing.T) {
	p, clk := newTestProfiler(t)

	require.NoError(t, p.Begin("A"))
	clk.Advance(0.5)
	require.NoError(t, p.End("A"))
	require.NoError(t, p.End("A"))

	frame, err := p.Finalize()
	require.Error(t, err)
	assert.Empty(t, frame.Rows)

	var regionErr *RegionError
	require.ErrorAs(t, err, &regionErr)
	assert.ErrorIs(t, err, ErrUnclosedRegion)
	assert.Equal(t, -1, regionErr.OpenDepth)
	assert.Contains(t, err.Error(), "more end than begin")
}

func TestStrictModePanics(t *testing.T) {
	p, _ := newTestProfiler(t, WithStrict(true))

	assert.Panics(t, func() { _ = p.End("missing") })

	require.NoError(t, p.Begin("A"))
	assert.Panics(t, func() { _, _ = p.Finalize() })
}

func TestMisuseIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	p, _ := newTestProfiler(t, WithLogger(logger))

	_ = p.End("ghost")

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"region":"ghost"`)
}

func TestCapacity(t *testing.T) {
	p, clk := newTestProfiler(t, WithCapacity(1))

	require.NoError(t, p.Begin("A"))
	err := p.Begin("B")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	// re-entering a tracked name is fine
	require.NoError(t, p.Begin("A"))
	clk.Advance(0.5)
	require.NoError(t, p.End("A"))
	require.NoError(t, p.End("A"))
	_, err = p.Finalize()
	require.NoError(t, err)

	// B fits the frame set but not the history
	require.NoError(t, p.Begin("B"))
	clk.Advance(0.5)
	require.NoError(t, p.End("B"))
	frame, err := p.Finalize()
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Empty(t, frame.Rows)
}

func TestFinalizeClearsFrame(t *testing.T) {
	p, clk := newTestProfiler(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Begin("A"))
		clk.Advance(0.1)
		require.NoError(t, p.End("A"))
	}
	frame, err := p.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 3, frame.Rows[0].Count)
	assert.Equal(t, 0, frame.Index)
	assert.Equal(t, 1, p.FrameIndex())

	require.NoError(t, p.Begin("A"))
	require.Len(t, p.samples, 1)
	assert.Equal(t, 1, p.samples[0].count)
	clk.Advance(0.1)
	require.NoError(t, p.End("A"))

	frame, err = p.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 1, frame.Rows[0].Count)
	assert.Equal(t, 1, frame.Index)
}

func TestFrameStartsAtPreviousFinalize(t *testing.T) {
	p, clk := newTestProfiler(t)

	clk.Advance(2)
	first, err := p.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 2.0, first.Duration)

	clk.Advance(0.5)
	second, err := p.Finalize()
	require.NoError(t, err)
	assert.Equal(t, first.End, second.Start)
	assert.Equal(t, 0.5, second.Duration)
}

func TestZeroLengthFrame(t *testing.T) {
	p, _ := newTestProfiler(t)

	require.NoError(t, p.Begin("A"))
	require.NoError(t, p.End("A"))

	frame, err := p.Finalize()
	require.NoError(t, err)
	assert.Equal(t, clock.MinTick, frame.Duration)
	assert.Equal(t, 0.0, frame.Rows[0].Percent)
}

func TestHistoryAcrossFrames(t *testing.T) {
	p, clk := newTestProfiler(t)
	clk.SetTick(5) // saturates the smoothing ratio

	runFrame := func(busy float64) {
		require.NoError(t, p.Begin("work"))
		clk.Advance(busy)
		require.NoError(t, p.End("work"))
		clk.Advance(1 - busy)
		_, err := p.Finalize()
		require.NoError(t, err)
	}

	runFrame(0.5)
	assert.InDelta(t, 50.0, p.Lookup("work").Average, 1e-9)

	runFrame(0.25)
	times := p.Lookup("work")
	assert.InDelta(t, 25.0, times.Average, 1e-9)
	assert.InDelta(t, 25.0, times.Min, 1e-9)
	assert.InDelta(t, 25.0, times.Max, 1e-9)

	assert.Equal(t, []string{"work"}, p.HistoryNames())
}

func TestFinalizeFrameReportLatency(t *testing.T) {
	p, clk := newTestProfiler(t)
	assert.Empty(t, p.Report())

	require.NoError(t, p.Begin("Main Game Loop"))
	clk.Advance(0.5)
	require.NoError(t, p.End("Main Game Loop"))
	clk.Advance(0.5)

	text, err := p.FinalizeFrame()
	require.NoError(t, err)
	assert.Equal(t, text, p.Report())
	assert.Contains(t, text, " 50.0 :  50.0 :  50.0 :   1 : Main Game Loop\n")

	// Drawing during the next frame shows the previous one.
	require.NoError(t, p.Begin("Other"))
	var out strings.Builder
	require.NoError(t, p.Draw(&out))
	assert.Equal(t, text+"\n", out.String())
	assert.NotContains(t, out.String(), "Other")
}

func TestScope(t *testing.T) {
	p, clk := newTestProfiler(t)

	func() {
		defer p.Scope("outer")()
		clk.Advance(0.25)
		func() {
			defer p.Scope("inner")()
			clk.Advance(0.25)
		}()
	}()

	frame, err := p.Finalize()
	require.NoError(t, err)
	outer, _ := frame.Row("outer")
	inner, _ := frame.Row("inner")
	assert.Equal(t, 0.25, outer.Self)
	assert.Equal(t, 1, inner.Depth)
}

func TestInitDiscardsCurrentFrame(t *testing.T) {
	p, clk := newTestProfiler(t)

	require.NoError(t, p.Begin("A"))
	clk.Advance(1)
	p.Init()

	frame, err := p.Finalize()
	require.NoError(t, err)
	assert.Empty(t, frame.Rows)
	assert.Equal(t, clk.Now(), frame.Start)
}

func TestLastFrame(t *testing.T) {
	p, clk := newTestProfiler(t)
	assert.Empty(t, p.LastFrame().Rows)

	require.NoError(t, p.Begin("A"))
	clk.Advance(0.5)
	require.NoError(t, p.End("A"))
	_, err := p.FinalizeFrame()
	require.NoError(t, err)

	last := p.LastFrame()
	require.Len(t, last.Rows, 1)
	last.Rows[0].Name = "changed"
	assert.Equal(t, "A", p.LastFrame().Rows[0].Name)
}
