// Package profiler implements a frame-oriented instrumentation profiler.
//
// Calling code brackets named regions of work with Begin and End during a
// frame and calls FinalizeFrame once the frame is over:
//
//	p := profiler.New(clk)
//	p.Init()
//	for running {
//	    p.Begin("Main Loop")
//	    update()
//	    p.Begin("Draw")
//	    draw()
//	    p.End("Draw")
//	    p.End("Main Loop")
//	    p.Draw(os.Stdout) // report of the previous frame
//	    p.FinalizeFrame()
//	}
//
// No call stack is passed in. When a region ends, the still-open region that
// began most recently is taken to enclose it and the ended interval is
// charged to that region's children. This recovers nesting exactly for
// well-nested (LIFO) use; interleaved regions get best-effort attribution.
//
// Each region's self time is reported as a percentage of the frame and fed
// into a History that keeps exponentially smoothed average, min and max
// values. The smoothing weight follows the last tick length reported by the
// clock, so slow loops track the instantaneous value and fast loops smooth
// heavily.
package profiler
