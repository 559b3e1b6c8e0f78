package view

import (
	"unicode/utf16"

	"github.com/vyuha/vyuha-catalog/internal/graph"
)

// Palette is the categorical palette service and group colors are drawn
// from (d3 category10).
var Palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// Fixed colors.
const (
	NeutralColor = "#d3d3d3"
	APIColor     = "#6baed6"
	EventColor   = "#fd8d3c"
)

// ColorFor picks a palette entry from the sum of the UTF-16 code units of
// name. The same name always gets the same color.
func ColorFor(name string) string {
	sum := 0
	for _, u := range utf16.Encode([]rune(name)) {
		sum += int(u)
	}
	return Palette[sum%len(Palette)]
}

func kindColor(kind graph.Kind, name string) string {
	switch kind {
	case graph.KindAPI:
		return APIColor
	case graph.KindEvent:
		return EventColor
	case graph.KindService, graph.KindGroup:
		return ColorFor(name)
	default:
		return NeutralColor
	}
}
