// Package colorutil provides the colours used by debug overlays.
package colorutil

import (
	"image/color"
	"math"
)

// Overlay layer colours.
var (
	Contour = color.RGBA{R: 0, G: 200, B: 255, A: 255}
	Spine   = color.RGBA{R: 255, G: 60, B: 60, A: 255}
	Pole    = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

// goldenAngle spreads successive hues as far apart as possible.
const goldenAngle = 137.50776405

// Palette returns a distinct, fully saturated colour for object i.
func Palette(i int) color.RGBA {
	h := math.Mod(float64(i)*goldenAngle, 360)
	if h < 0 {
		h += 360
	}
	r, g, b := HSVToRGB(h, 0.75, 1)
	return color.RGBA{R: uint8(math.Round(r)), G: uint8(math.Round(g)), B: uint8(math.Round(b)), A: 255}
}

// HSVToRGB converts a hue in degrees [0,360) and saturation/value in [0,1]
// to RGB components in [0,255].
func HSVToRGB(h, s, v float64) (r, g, b float64) {
	c := v * s
	hp := h / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))

	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	m := v - c
	return (r + m) * 255, (g + m) * 255, (b + m) * 255
}
