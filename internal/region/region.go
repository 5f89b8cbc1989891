// Package region describes the segmented objects the spine builder works on.
package region

import (
	"cell-spine/internal/voxel"
	"cell-spine/pkg/geometry"
)

// Region is one segmented object. It is read-only while a spine is built.
type Region interface {
	// Contains reports whether v is foreground.
	Contains(v voxel.Voxel) bool
	// Voxels returns the foreground voxels.
	Voxels() voxel.Set
	// Contour returns the raw boundary voxels.
	Contour() voxel.Set
	// Bounds returns the planar bounding box.
	Bounds() geometry.RectInt
	// Is2D reports whether the object spans a single plane.
	Is2D() bool
	// Scale returns the calibration in physical units per pixel (XY) and per
	// plane (Z).
	Scale() (xy, z float64)
}

// Mask is a Region backed by a set of foreground voxels.
type Mask struct {
	Label   int
	voxels  voxel.Set
	bounds  geometry.RectInt
	scaleXY float64
	scaleZ  float64
}

// NewMask creates a mask over the given voxels with unit calibration.
func NewMask(label int, voxels voxel.Set) *Mask {
	m := &Mask{Label: label, voxels: voxels, scaleXY: 1, scaleZ: 1}
	pts := make([]geometry.PointInt, 0, len(voxels))
	for v := range voxels {
		pts = append(pts, geometry.PointInt{X: v.X, Y: v.Y})
	}
	m.bounds = geometry.BoundingBox(pts)
	return m
}

// FromRows builds a 2-D mask from a row-major grid where '#' (or any
// non-space, non-'.' rune) marks foreground. Row 0 is y=0. Intended for
// tests and small fixtures.
func FromRows(label int, rows ...string) *Mask {
	s := voxel.NewSet()
	for y, row := range rows {
		for x, r := range row {
			if r != '.' && r != ' ' {
				s.Add(voxel.Voxel{X: x, Y: y})
			}
		}
	}
	return NewMask(label, s)
}

// Rect returns a filled w×h rectangle mask whose top-left pixel is (x, y).
func Rect(label, x, y, w, h int) *Mask {
	s := voxel.NewSet()
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			s.Add(voxel.Voxel{X: x + dx, Y: y + dy})
		}
	}
	return NewMask(label, s)
}

// WithScale returns the mask with a physical calibration.
func (m *Mask) WithScale(xy, z float64) *Mask {
	out := *m
	out.scaleXY, out.scaleZ = xy, z
	return &out
}

// Contains implements Region.
func (m *Mask) Contains(v voxel.Voxel) bool { return m.voxels.Has(v) }

// Voxels implements Region.
func (m *Mask) Voxels() voxel.Set { return m.voxels }

// Bounds implements Region.
func (m *Mask) Bounds() geometry.RectInt { return m.bounds }

// Is2D implements Region.
func (m *Mask) Is2D() bool { return m.voxels.Is2D() }

// Scale implements Region.
func (m *Mask) Scale() (xy, z float64) { return m.scaleXY, m.scaleZ }

// Area returns the foreground voxel count.
func (m *Mask) Area() int { return len(m.voxels) }

// Contour implements Region: foreground voxels with at least one
// 4-connected background neighbour. The result is 8-connected.
func (m *Mask) Contour() voxel.Set {
	out := voxel.NewSet()
	for v := range m.voxels {
		for _, o := range [4]voxel.Voxel{{X: 0, Y: -1}, {X: -1, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}} {
			if !m.voxels.Has(voxel.Voxel{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z}) {
				out.Add(v)
				break
			}
		}
	}
	return out
}
