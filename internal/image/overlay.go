package image

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"cell-spine/pkg/geometry"
)

// Overlay draws point layers (contours, spines) over a frame for visual
// inspection.
type Overlay struct {
	Base      image.Image
	Layers    []*PointLayer
	BackColor color.Color
}

// PointLayer is a set of points drawn in one colour.
type PointLayer struct {
	Points  []geometry.Point2D
	Color   color.RGBA
	Opacity float64
}

// NewOverlay creates an overlay over base, which may be nil.
func NewOverlay(base image.Image) *Overlay {
	return &Overlay{
		Base:      base,
		BackColor: color.RGBA{40, 40, 40, 255},
	}
}

// AddPoints adds a layer of points.
func (o *Overlay) AddPoints(points []geometry.Point2D, c color.RGBA, opacity float64) {
	o.Layers = append(o.Layers, &PointLayer{Points: points, Color: c, Opacity: opacity})
}

// Render produces the final image. Points are splatted bilinearly onto the
// four nearest pixels.
func (o *Overlay) Render() *image.RGBA {
	bounds := image.Rect(0, 0, 1, 1)
	if o.Base != nil {
		bounds = image.Rect(0, 0, o.Base.Bounds().Dx(), o.Base.Bounds().Dy())
	}
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, &image.Uniform{o.BackColor}, image.Point{}, draw.Src)
	if o.Base != nil {
		draw.Draw(result, bounds, o.Base, o.Base.Bounds().Min, draw.Over)
	}

	for _, l := range o.Layers {
		for _, p := range l.Points {
			x0, y0 := math.Floor(p.X), math.Floor(p.Y)
			fx, fy := p.X-x0, p.Y-y0
			for _, c := range [4]struct {
				dx, dy int
				w      float64
			}{
				{0, 0, (1 - fx) * (1 - fy)},
				{1, 0, fx * (1 - fy)},
				{0, 1, (1 - fx) * fy},
				{1, 1, fx * fy},
			} {
				x, y := int(x0)+c.dx, int(y0)+c.dy
				if !image.Pt(x, y).In(bounds) || c.w == 0 {
					continue
				}
				result.Set(x, y, blend(result.At(x, y), l.Color, l.Opacity*c.w))
			}
		}
	}
	return result
}

// SavePNG renders the overlay into a PNG file.
func (o *Overlay) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create overlay: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, o.Render()); err != nil {
		return fmt.Errorf("failed to encode overlay: %w", err)
	}
	return nil
}

// blend alpha-composites src over dst with the given opacity.
func blend(dst color.Color, src color.RGBA, opacity float64) color.Color {
	dr, dg, db, da := dst.RGBA()
	df := [4]float64{float64(dr) / 65535.0, float64(dg) / 65535.0, float64(db) / 65535.0, float64(da) / 65535.0}
	sf := [3]float64{float64(src.R) / 255.0, float64(src.G) / 255.0, float64(src.B) / 255.0}

	alpha := clamp(float64(src.A)/255.0*opacity, 0, 1)
	return color.RGBA{
		R: uint8(clamp(sf[0]*alpha+df[0]*(1-alpha), 0, 1) * 255),
		G: uint8(clamp(sf[1]*alpha+df[1]*(1-alpha), 0, 1) * 255),
		B: uint8(clamp(sf[2]*alpha+df[2]*(1-alpha), 0, 1) * 255),
		A: uint8(clamp(alpha+df[3]*(1-alpha), 0, 1) * 255),
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
