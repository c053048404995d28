package console

import (
	"fmt"
	"math"
	"strings"

	"github.com/xtxerr/scopedb/internal/tsdb/types"
)

// Default plot dimensions when the terminal size is unknown.
const (
	DefaultPlotWidth  = 80
	DefaultPlotHeight = 20
)

// Render draws a min/max envelope of the buckets as an ASCII plot of the
// given dimensions. Each column covers one or more adjacent buckets and
// is filled over the value band they span.
func Render(buckets []types.Bucket, width, height int) string {
	if len(buckets) == 0 {
		return "(no data)\n"
	}
	if width < 16 {
		width = 16
	}
	if height < 4 {
		height = 4
	}

	// Leave room for the y-axis gutter: "-1.234e+05 |".
	const gutter = 12
	cols := width - gutter
	if len(buckets) > cols {
		buckets = resample(buckets, cols)
	}
	cols = len(buckets)

	lo, hi := valueRange(buckets)
	if hi == lo {
		// Flat signal. Pad the axis so every bucket lands mid-plot.
		lo -= 0.5
		hi += 0.5
	}

	grid := make([][]byte, height)
	for r := range grid {
		grid[r] = []byte(strings.Repeat(" ", cols))
	}

	// Row 0 is the top of the plot (hi), row height-1 the bottom (lo).
	rowOf := func(v float64) int {
		frac := (hi - v) / (hi - lo)
		r := int(math.Floor(frac * float64(height)))
		if r < 0 {
			r = 0
		}
		if r >= height {
			r = height - 1
		}
		return r
	}

	for i, b := range buckets {
		top := rowOf(b.Max)
		bottom := rowOf(b.Min)
		for r := top; r <= bottom; r++ {
			grid[r][i] = '#'
		}
	}

	var sb strings.Builder
	span := types.Span{T0: buckets[0].StartTime, T1: buckets[cols-1].EndTime}
	fmt.Fprintf(&sb, "t=[%g, %g]  v=[%g, %g]  %d columns\n",
		span.T0, span.T1, lo, hi, cols)

	for r := range grid {
		switch r {
		case 0:
			fmt.Fprintf(&sb, "%10.4g |%s\n", hi, grid[r])
		case height - 1:
			fmt.Fprintf(&sb, "%10.4g |%s\n", lo, grid[r])
		default:
			fmt.Fprintf(&sb, "%10s |%s\n", "", grid[r])
		}
	}

	sb.WriteString(strings.Repeat(" ", gutter-1))
	sb.WriteString("+")
	sb.WriteString(strings.Repeat("-", cols))
	sb.WriteString("\n")

	return sb.String()
}

// resample reduces buckets to at most cols columns by absorbing each
// column's share of adjacent buckets.
func resample(buckets []types.Bucket, cols int) []types.Bucket {
	out := make([]types.Bucket, 0, cols)
	for c := 0; c < cols; c++ {
		start := c * len(buckets) / cols
		end := (c + 1) * len(buckets) / cols
		if start >= end {
			continue
		}
		b := buckets[start]
		for _, other := range buckets[start+1 : end] {
			b.Absorb(other)
		}
		out = append(out, b)
	}
	return out
}

func valueRange(buckets []types.Bucket) (lo, hi float64) {
	lo, hi = buckets[0].Min, buckets[0].Max
	for _, b := range buckets[1:] {
		if b.Min < lo {
			lo = b.Min
		}
		if b.Max > hi {
			hi = b.Max
		}
	}
	return lo, hi
}
