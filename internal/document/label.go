package document

import (
	"math"

	"golang.org/x/text/width"

	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// DefaultFontSize is the label size at 100% zoom.
const DefaultFontSize = 16

// Approximate metrics of the label face relative to its size.
const (
	narrowAdvance = 0.55
	ascent        = 0.9
	lineHeight    = 1.2
)

// TextWidth estimates the rendered width of s. East Asian wide and
// fullwidth runes take a full em, everything else a little over half.
func TextWidth(s string, fontSize float64) float64 {
	var w float64
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w += fontSize
		default:
			w += fontSize * narrowAdvance
		}
	}
	return w
}

// LabelBounds returns the box of a centered single-line label whose
// baseline passes through anchor.
func LabelBounds(content string, anchor geom.Point, fontSize float64) geom.Rect {
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	w := TextWidth(content, fontSize)
	return geom.Rect{
		X:      anchor.X - w/2,
		Y:      anchor.Y - fontSize*ascent,
		Width:  w,
		Height: fontSize * lineHeight,
	}
}

// ScaledFontSize keeps labels legible when zoomed out: below 100% the
// size grows by 1/scale, rounded up.
func ScaledFontSize(scale float64) float64 {
	if scale > 0 && scale < 1 {
		return math.Ceil(DefaultFontSize / scale)
	}
	return DefaultFontSize
}
