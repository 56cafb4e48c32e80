package activity

import (
	"strings"

	"github.com/zsprackett/nexus-console/internal/nexus"
)

const sparkChars = "▁▂▃▄▅▆▇█"

// Point is one chart sample.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// PriorityWeight maps an analysis priority to a chart height.
func PriorityWeight(priority string) float64 {
	switch strings.ToLower(priority) {
	case "high", "urgent":
		return 3
	case "medium":
		return 2
	default:
		return 1
	}
}

// BuildSeries rebuilds the chart from scratch. records arrive most recent
// first; the series is chronological so it reads left to right.
func BuildSeries(records []nexus.ActivityRecord) []Point {
	n := len(records)
	if n > MaxLines {
		n = MaxLines
	}
	points := make([]Point, n)
	for i, r := range records[:n] {
		label := "--:--:--"
		if !r.Timestamp.IsZero() {
			label = r.Timestamp.Local().Format(timeLayout)
		}
		points[n-1-i] = Point{
			Label: label,
			Value: PriorityWeight(r.Analysis.String("priority")),
		}
	}
	return points
}

// Sparkline renders points as block characters scaled to the series maximum.
func Sparkline(points []Point) string {
	if len(points) == 0 {
		return ""
	}
	max := 0.0
	for _, p := range points {
		if p.Value > max {
			max = p.Value
		}
	}
	runes := []rune(sparkChars)
	var sb strings.Builder
	for _, p := range points {
		frac := 0.0
		if max > 0 && p.Value > 0 {
			frac = p.Value / max
		}
		idx := int(frac * float64(len(runes)-1))
		sb.WriteRune(runes[idx])
	}
	return sb.String()
}
