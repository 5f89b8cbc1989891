// Package spine builds the medial axis of an elongated object and the
// curvilinear/radial coordinate system attached to it.
package spine

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/stat"

	"cell-spine/internal/voxel"
	"cell-spine/pkg/geometry"
)

// ErrInvalidObject is returned when no spine can be built for a region.
var ErrInvalidObject = errors.New("invalid object")

// Vertebra is one spine sample: the midpoint of two flanking contour points.
type Vertebra struct {
	Point geometry.Point2D
	// Direction is the width vector from one flank point to the other.
	Direction geometry.Point2D
	// Distance is the curvilinear position measured from the first pole.
	Distance float64
}

// Width returns the local object width in pixels. Contour points are voxel
// centres, so one pixel is added for the two half pixels outside them.
func (v Vertebra) Width() float64 {
	return v.Direction.Norm() + 1
}

// Spine is an ordered vertebra sequence; the first and last are the poles.
type Spine []Vertebra

// Length returns the curvilinear length.
func (s Spine) Length() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Distance
}

// Points returns the vertebra positions.
func (s Spine) Points() []geometry.Point2D {
	out := make([]geometry.Point2D, len(s))
	for i, v := range s {
		out[i] = v.Point
	}
	return out
}

// Widths returns the local widths in pixels.
func (s Spine) Widths() []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = v.Width()
	}
	return out
}

// Distances returns the cumulative curvilinear distances.
func (s Spine) Distances() []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = v.Distance
	}
	return out
}

// At returns the index of the last vertebra whose distance is at most d.
func (s Spine) At(d float64) int {
	i := sort.Search(len(s), func(i int) bool { return s[i].Distance > d })
	return max(i-1, 0)
}

// Median returns the median of sorted data. Even lengths average the two
// middle values.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	lower := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if n%2 == 1 {
		return lower
	}
	return (lower + sorted[n/2]) / 2
}

// accumulate recomputes cumulative distances from the vertebra positions.
func (s Spine) accumulate() {
	if len(s) == 0 {
		return
	}
	s[0].Distance = 0
	for i := 1; i < len(s); i++ {
		s[i].Distance = s[i-1].Distance + s[i].Point.Distance(s[i-1].Point)
	}
}

// Result is everything produced for one object.
type Result struct {
	Label   int
	Spine   Spine
	Contour voxel.Set
	// Circular is the smoothed and resampled contour in walk order.
	Circular []geometry.Point2D
	Bounds   geometry.RectInt
	ScaleXY  float64
}

// Length returns the spine length in pixels.
func (r *Result) Length() float64 { return r.Spine.Length() }

// PhysicalLength returns the spine length in calibrated units.
func (r *Result) PhysicalLength() float64 { return r.Spine.Length() * r.ScaleXY }

// MeanWidth averages the widths of the vertebrae lying at least margin
// pixels away from both poles. It falls back to all vertebrae when none
// qualify.
func (r *Result) MeanWidth(margin float64) float64 {
	l := r.Spine.Length()
	sum, n := 0.0, 0
	for _, v := range r.Spine {
		if v.Distance >= margin && v.Distance <= l-margin {
			sum += v.Width()
			n++
		}
	}
	if n == 0 {
		for _, v := range r.Spine {
			sum += v.Width()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
