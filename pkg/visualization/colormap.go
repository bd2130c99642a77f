package visualization

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// jetStops are the anchor colors of the jet colormap.
var jetStops = []struct {
	pos float64
	col colorful.Color
}{
	{0, colorful.Color{R: 0, G: 0, B: 0.5}},
	{0.125, colorful.Color{R: 0, G: 0, B: 1}},
	{0.375, colorful.Color{R: 0, G: 1, B: 1}},
	{0.625, colorful.Color{R: 1, G: 1, B: 0}},
	{0.875, colorful.Color{R: 1, G: 0, B: 0}},
	{1, colorful.Color{R: 0.5, G: 0, B: 0}},
}

// Jet maps t in [0, 1] onto the jet colormap. Values outside the interval
// are clamped and NaN maps to the lowest color.
func Jet(t float64) color.NRGBA {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}

	col := jetStops[len(jetStops)-1].col
	for i := 1; i < len(jetStops); i++ {
		if t <= jetStops[i].pos {
			a, b := jetStops[i-1], jetStops[i]
			col = a.col.BlendRgb(b.col, (t-a.pos)/(b.pos-a.pos))
			break
		}
	}
	r, g, b := col.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// ColorFor maps v within [lo, hi] onto the jet colormap.
func ColorFor(v, lo, hi float64) color.NRGBA {
	if hi <= lo {
		return Jet(0.5)
	}
	return Jet((v - lo) / (hi - lo))
}
