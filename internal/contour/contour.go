// Package contour provides the circular boundary sequence of an object:
// building it from a cleaned contour voxel set, Gaussian smoothing and
// resampling to a fixed spacing.
package contour

import (
	"errors"
	"fmt"
	"math"

	"cell-spine/internal/voxel"
	"cell-spine/pkg/geometry"
)

// ErrOpenContour is returned when the contour walk cannot return to its
// starting point.
var ErrOpenContour = errors.New("unable to close contour")

const (
	// SmoothWeightCutoff is the Gaussian weight below which neighbours are
	// ignored during smoothing.
	SmoothWeightCutoff = 1e-3
	// ResamplePrecision is the relative tolerance on resampled spacing.
	ResamplePrecision = 1e-3
)

// Contour is a closed boundary stored as a ring of points.
type Contour struct {
	*Ring[geometry.Point2D]
}

// FromPoints wraps already ordered boundary points.
func FromPoints(points []geometry.Point2D) *Contour {
	return &Contour{Ring: NewRing(points)}
}

// Build orders a simple-cycle voxel set into a contour. The walk starts at
// the upper-left-most voxel and runs clockwise on screen (y pointing down).
// At each step it prefers the unvisited neighbour with the fewest remaining
// unvisited neighbours, then the nearest one. Every voxel must be visited
// exactly once.
func Build(voxels voxel.Set) (*Contour, error) {
	start, ok := voxels.First()
	if !ok {
		return nil, fmt.Errorf("%w: no voxels", ErrOpenContour)
	}
	nbs := voxels.NeighborsIn(start)
	if len(nbs) < 2 {
		return nil, fmt.Errorf("%w: start voxel has %d neighbours", ErrOpenContour, len(nbs))
	}

	s := start.Point()
	next, prev := nbs[0], nbs[0]
	for _, c := range nbs[1:] {
		if c.Point().Sub(s).Cross(next.Point().Sub(s)) > 0 {
			next = c
		}
		if prev.Point().Sub(s).Cross(c.Point().Sub(s)) > 0 {
			prev = c
		}
	}

	visited := voxel.NewSet(start, prev, next)
	seq := []voxel.Voxel{start}
	cur := next
	for {
		seq = append(seq, cur)
		c, ok := nextStep(voxels, visited, cur)
		if !ok {
			break
		}
		visited.Add(c)
		cur = c
	}
	if !voxel.Adjacent(cur, prev) {
		return nil, fmt.Errorf("%w: walk stopped at (%d,%d) after %d voxels", ErrOpenContour, cur.X, cur.Y, len(seq))
	}
	seq = append(seq, prev)
	if len(seq) != len(voxels) {
		return nil, fmt.Errorf("%w: walk visited %d of %d voxels", ErrOpenContour, len(seq), len(voxels))
	}

	return FromPoints(voxel.Points(seq)), nil
}

func nextStep(voxels, visited voxel.Set, cur voxel.Voxel) (voxel.Voxel, bool) {
	var best voxel.Voxel
	bestFree, bestDist, found := 0, 0.0, false
	for _, c := range voxels.NeighborsIn(cur) {
		if visited.Has(c) {
			continue
		}
		free := 0
		for _, nb := range voxels.NeighborsIn(c) {
			if !visited.Has(nb) && nb != c {
				free++
			}
		}
		dist := voxel.StepCost(cur, c)
		if !found || free < bestFree || (free == bestFree && dist < bestDist) {
			best, bestFree, bestDist, found = c, free, dist, true
		}
	}
	return best, found
}

// Points returns the contour points starting at the head.
func (c *Contour) Points() []geometry.Point2D {
	return c.Values()
}

// Perimeter returns the closed length of the contour.
func (c *Contour) Perimeter() float64 {
	return geometry.Perimeter(c.Points())
}

// Smooth replaces every point by a Gaussian-weighted average of itself and
// its neighbours along the contour, using arc length as the kernel distance.
// The number of points is unchanged.
func (c *Contour) Smooth(sigma float64) {
	n := c.Len()
	if sigma <= 0 || n < 3 {
		return
	}
	pts := c.Points()
	out := make([]geometry.Point2D, n)
	twoSigma2 := 2 * sigma * sigma

	for i := range pts {
		sum := pts[i]
		wsum := 1.0
		for _, dir := range [2]int{1, -1} {
			s := 0.0
			prev := pts[i]
			for k := 1; k <= n/2; k++ {
				p := pts[((i+dir*k)%n+n)%n]
				s += prev.Distance(p)
				w := math.Exp(-s * s / twoSigma2)
				if w < SmoothWeightCutoff {
					break
				}
				sum = sum.Add(p.Scale(w))
				wsum += w
				prev = p
			}
		}
		out[i] = sum.Scale(1 / wsum)
	}

	i := 0
	c.Do(func(node *Node[geometry.Point2D]) {
		node.Value = out[i]
		i++
	})
}

// Resample walks the contour from its head and enforces a spacing of d
// between consecutive points: gaps of 2d or more get a midpoint, gaps
// between d and 2d pull the next point in to exactly d, and gaps shorter
// than d either drop the next point or slide it outward along the chord to
// the point after it.
func (c *Contour) Resample(d float64) {
	if d <= 0 || c.Len() < 3 {
		return
	}
	eps := ResamplePrecision * d
	head := c.Head()
	cur := head
	limit := 8*c.Len() + int(4*c.Perimeter()/d) + 16

	for guard := 0; guard < limit && c.Len() >= 3; guard++ {
		next := cur.Next()
		dist := cur.Value.Distance(next.Value)

		if next == head {
			if dist >= 2*d {
				c.InsertAfter(cur, cur.Value.Mid(next.Value))
				continue
			}
			if dist < d/2 && c.Len() > 3 {
				c.Remove(cur)
			}
			return
		}

		switch {
		case dist >= 2*d:
			c.InsertAfter(cur, cur.Value.Mid(next.Value))
		case dist > d+eps:
			next.Value = cur.Value.Lerp(next.Value, d/dist)
			cur = next
		case dist >= d-eps:
			cur = next
		default:
			after := next.Next()
			if cur.Value.Distance(after.Value) <= d+eps {
				c.Remove(next)
				continue
			}
			next.Value = next.Value.Lerp(after.Value, chordRoot(cur.Value, next.Value, after.Value, d))
			cur = next
		}
	}
}

// chordRoot returns t in (0,1) such that |next + t(after-next) - cur| = d,
// given |next-cur| < d < |after-cur|.
func chordRoot(cur, next, after geometry.Point2D, d float64) float64 {
	a := after.Sub(next)
	b := next.Sub(cur)
	qa := a.Dot(a)
	qb := 2 * a.Dot(b)
	qc := b.Dot(b) - d*d
	disc := qb*qb - 4*qa*qc
	if qa == 0 || disc < 0 {
		return 0
	}
	t := (-qb + math.Sqrt(disc)) / (2 * qa)
	return math.Min(math.Max(t, 0), 1)
}
