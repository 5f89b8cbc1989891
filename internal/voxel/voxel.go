// Package voxel provides integer voxel positions, voxel sets and the planar
// 8-connected neighbourhood used by the graph cleaners.
package voxel

import (
	"math"
	"sort"

	"cell-spine/pkg/geometry"
)

// Voxel is an integer position. Two voxels are the same voxel when their
// coordinates are equal.
type Voxel struct {
	X, Y, Z int
}

// Point returns the voxel centre as a planar point (Z is dropped).
func (v Voxel) Point() geometry.Point2D {
	return geometry.Point2D{X: float64(v.X), Y: float64(v.Y)}
}

// Less orders voxels in raster order: Z, then Y, then X. The first voxel in
// this order is the "upper-left-most" one.
func Less(a, b Voxel) bool {
	if a.Z != b.Z {
		return a.Z < b.Z
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}

// Adjacent reports whether a and b are distinct 8-connected neighbours in the
// same plane.
func Adjacent(a, b Voxel) bool {
	if a == b || a.Z != b.Z {
		return false
	}
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx >= -1 && dx <= 1 && dy >= -1 && dy <= 1
}

// StepCost is the Euclidean length of a single step between adjacent voxels.
func StepCost(a, b Voxel) float64 {
	if a.X != b.X && a.Y != b.Y {
		return math.Sqrt2
	}
	return 1
}

// Offsets is the planar neighbourhood of radius 1.5 with the centre
// excluded, in raster order.
var Offsets = [8]Voxel{
	{-1, -1, 0}, {0, -1, 0}, {1, -1, 0},
	{-1, 0, 0}, {1, 0, 0},
	{-1, 1, 0}, {0, 1, 0}, {1, 1, 0},
}

// Neighbors returns the 8 planar neighbour positions of v in raster order.
func Neighbors(v Voxel) [8]Voxel {
	var out [8]Voxel
	for i, o := range Offsets {
		out[i] = Voxel{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z}
	}
	return out
}

// Set is an unordered set of voxels.
type Set map[Voxel]struct{}

// NewSet returns a set holding the given voxels.
func NewSet(voxels ...Voxel) Set {
	s := make(Set, len(voxels))
	for _, v := range voxels {
		s[v] = struct{}{}
	}
	return s
}

// Add inserts v.
func (s Set) Add(v Voxel) { s[v] = struct{}{} }

// Remove deletes v.
func (s Set) Remove(v Voxel) { delete(s, v) }

// Has reports whether v is in the set.
func (s Set) Has(v Voxel) bool {
	_, ok := s[v]
	return ok
}

// AddAll inserts every voxel of other.
func (s Set) AddAll(other Set) {
	for v := range other {
		s[v] = struct{}{}
	}
}

// Clone returns a shallow copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for v := range s {
		out[v] = struct{}{}
	}
	return out
}

// Sorted returns the voxels in raster order.
func (s Set) Sorted() []Voxel {
	out := make([]Voxel, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}

// First returns the raster-first voxel, or false for an empty set.
func (s Set) First() (Voxel, bool) {
	var best Voxel
	found := false
	for v := range s {
		if !found || Less(v, best) {
			best = v
			found = true
		}
	}
	return best, found
}

// CountNeighbors returns how many of v's 8 neighbours are in the set.
func (s Set) CountNeighbors(v Voxel) int {
	n := 0
	for _, nb := range Neighbors(v) {
		if s.Has(nb) {
			n++
		}
	}
	return n
}

// NeighborsIn returns v's neighbours that are in the set, in raster order.
func (s Set) NeighborsIn(v Voxel) []Voxel {
	var out []Voxel
	for _, nb := range Neighbors(v) {
		if s.Has(nb) {
			out = append(out, nb)
		}
	}
	return out
}

// Is2D reports whether all voxels share a single Z plane.
func (s Set) Is2D() bool {
	z, first := 0, true
	for v := range s {
		if first {
			z, first = v.Z, false
			continue
		}
		if v.Z != z {
			return false
		}
	}
	return true
}

// Points converts voxels to planar points, preserving order.
func Points(voxels []Voxel) []geometry.Point2D {
	out := make([]geometry.Point2D, len(voxels))
	for i, v := range voxels {
		out[i] = v.Point()
	}
	return out
}
