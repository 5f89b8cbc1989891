// Package thinning reduces a foreground mask to a 1-voxel-wide skeleton.
package thinning

import (
	"cell-spine/internal/voxel"
)

// Thinner produces a raw 1-voxel skeleton of a planar foreground set.
type Thinner interface {
	Thin(foreground voxel.Set) voxel.Set
}

// Func adapts a function to the Thinner interface.
type Func func(foreground voxel.Set) voxel.Set

// Thin implements Thinner.
func (f Func) Thin(foreground voxel.Set) voxel.Set { return f(foreground) }

// ZhangSuen is the classic two-subiteration parallel thinning of Zhang and
// Suen (1984) on the 8-neighbourhood, followed by the removal of the
// staircase corners it leaves on diagonal strokes.
type ZhangSuen struct{}

// Thin implements Thinner. The input set is not modified.
func (ZhangSuen) Thin(foreground voxel.Set) voxel.Set {
	s := foreground.Clone()
	for {
		removed := 0
		for step := 0; step < 2; step++ {
			var drop []voxel.Voxel
			for v := range s {
				if deletable(s, v, step) {
					drop = append(drop, v)
				}
			}
			for _, v := range drop {
				s.Remove(v)
			}
			removed += len(drop)
		}
		if removed == 0 {
			removeStaircases(s)
			return s
		}
	}
}

// deletable applies the Zhang–Suen tests to v. Neighbours are numbered
// P2 (north) clockwise to P9 (north-west), with y pointing down.
func deletable(s voxel.Set, v voxel.Voxel, step int) bool {
	at := func(dx, dy int) int {
		if s.Has(voxel.Voxel{X: v.X + dx, Y: v.Y + dy, Z: v.Z}) {
			return 1
		}
		return 0
	}
	p := [8]int{
		at(0, -1),  // P2
		at(1, -1),  // P3
		at(1, 0),   // P4
		at(1, 1),   // P5
		at(0, 1),   // P6
		at(-1, 1),  // P7
		at(-1, 0),  // P8
		at(-1, -1), // P9
	}

	b := 0
	for _, x := range p {
		b += x
	}
	if b < 2 || b > 6 {
		return false
	}

	a := 0
	for i := 0; i < 8; i++ {
		if p[i] == 0 && p[(i+1)%8] == 1 {
			a++
		}
	}
	if a != 1 {
		return false
	}

	p2, p4, p6, p8 := p[0], p[2], p[4], p[6]
	if step == 0 {
		return p2*p4*p6 == 0 && p4*p6*p8 == 0
	}
	return p2*p4*p8 == 0 && p2*p6*p8 == 0
}

// corners are the perpendicular pairs of 4-neighbours forming a staircase
// step.
var corners = [4][2]voxel.Voxel{
	{{X: 0, Y: -1}, {X: 1, Y: 0}},
	{{X: 1, Y: 0}, {X: 0, Y: 1}},
	{{X: 0, Y: 1}, {X: -1, Y: 0}},
	{{X: -1, Y: 0}, {X: 0, Y: -1}},
}

// removeStaircases deletes, in raster order, every corner voxel whose
// neighbours stay 8-connected without it. Diagonal strokes become one voxel
// wide and end voxels are kept.
func removeStaircases(s voxel.Set) {
	for _, v := range s.Sorted() {
		corner := false
		for _, c := range corners {
			a := voxel.Voxel{X: v.X + c[0].X, Y: v.Y + c[0].Y, Z: v.Z}
			b := voxel.Voxel{X: v.X + c[1].X, Y: v.Y + c[1].Y, Z: v.Z}
			if s.Has(a) && s.Has(b) {
				corner = true
				break
			}
		}
		if !corner {
			continue
		}
		nbs := s.NeighborsIn(v)
		if len(nbs) >= 2 && connected(nbs) {
			s.Remove(v)
		}
	}
}

// connected reports whether vs form a single 8-connected piece.
func connected(vs []voxel.Voxel) bool {
	seen := map[voxel.Voxel]bool{vs[0]: true}
	stack := []voxel.Voxel{vs[0]}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, o := range vs {
			if !seen[o] && voxel.Adjacent(cur, o) {
				seen[o] = true
				stack = append(stack, o)
			}
		}
	}
	return len(seen) == len(vs)
}
