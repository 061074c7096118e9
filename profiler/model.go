package profiler

// sample is the frame-scoped record for one region name.
type sample struct {
	name string
	// number of Begin calls this frame
	count int
	// unmatched Begin calls; negative after a stray End
	openDepth int
	// start of the most recent Begin
	startTime float64
	// sum of every Begin/End interval this frame
	accumulator float64
	// time of other regions that ended while this one enclosed them
	childTime float64
	// regions open when this one last ended
	parentDepth int
}

func (s *sample) open() bool {
	return s.openDepth > 0
}

// Times is the smoothed history of a region, in percent of frame time.
type Times struct {
	Average float64
	Min     float64
	Max     float64
}

// Row is one region's result for a finalized frame.
type Row struct {
	Name string
	// Count is the number of Begin calls during the frame.
	Count int
	// Depth is the number of regions that were open when this region last
	// ended. It is used as the indentation level.
	Depth int
	// Total, Children and Self are in seconds. Self is Total minus
	// Children and is not clamped.
	Total    float64
	Children float64
	Self     float64
	// Percent is Self as a percentage of the frame duration.
	Percent float64
	// Times is the history entry after this frame was folded in.
	Times Times
}

// Frame is the computed result of one profiler frame.
type Frame struct {
	Index    int
	Start    float64
	End      float64
	Duration float64
	// Tick is the clock tick length used to weight the history update.
	Tick float64
	Rows []Row
}

// Row returns the row for name and whether it is present.
func (f Frame) Row(name string) (Row, bool) {
	for _, row := range f.Rows {
		if row.Name == name {
			return row, true
		}
	}
	return Row{}, false
}

func cloneRows(rows []Row) []Row {
	if len(rows) == 0 {
		return nil
	}
	out := make([]Row, len(rows))
	copy(out, rows)
	return out
}

// Clone returns a copy of f that does not share its rows.
func (f Frame) Clone() Frame {
	f.Rows = cloneRows(f.Rows)
	return f
}
