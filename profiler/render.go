package profiler

import (
	"fmt"
	"strings"
)

const (
	reportHeader = "  Ave :   Min :   Max :   # : Profile Name\n"
	reportRule   = "--------------------------------------------\n"
	indentUnit   = "\t"
)

// Render formats frame as a fixed-column table: smoothed average, min and
// max percent, invocation count and the region name indented one tab per
// nesting level. Rows keep the order regions were first begun.
func Render(frame Frame) string {
	var b strings.Builder
	b.WriteString(reportHeader)
	b.WriteString(reportRule)

	for _, row := range frame.Rows {
		fmt.Fprintf(
			&b,
			"%5.1f : %5.1f : %5.1f : %3d : %s\n",
			row.Times.Average,
			row.Times.Min,
			row.Times.Max,
			row.Count,
			indentName(row.Depth, row.Name),
		)
	}

	return b.String()
}

func indentName(depth int, name string) string {
	if depth < 0 {
		depth = 0
	}
	return strings.Repeat(indentUnit, depth) + sanitizeName(name)
}

// sanitizeName keeps a region name on one row.
func sanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\r", " ")
	return strings.ReplaceAll(name, "\n", " ")
}
