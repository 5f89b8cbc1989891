package spine

import (
	"math"
	"sort"

	"cell-spine/pkg/geometry"
)

const solveEps = 1e-9

// Coord locates a point relative to a spine.
type Coord struct {
	// Curvilinear is the arc length from the first pole to the foot of the
	// point on the spine.
	Curvilinear float64
	// Radial is the signed distance from the spine along the local width
	// direction.
	Radial float64
	// Length is the spine length.
	Length float64
	// Radius is the local half width.
	Radius float64
}

// Relative returns the curvilinear coordinate as a fraction of the length.
func (c Coord) Relative() float64 {
	if c.Length == 0 {
		return 0
	}
	return c.Curvilinear / c.Length
}

// RelativeRadial returns the radial coordinate as a fraction of the local
// radius.
func (c Coord) RelativeRadial() float64 {
	if c.Radius == 0 {
		return 0
	}
	return c.Radial / c.Radius
}

// Localizer maps points to spine coordinates and back. It wraps a frozen
// spine and is safe for concurrent use.
type Localizer struct {
	spine   Spine
	units   []geometry.Point2D
	dists   []float64
	outward [2]geometry.Point2D
}

// NewLocalizer prepares a localizer for sp. The spine must not be modified
// afterwards.
func NewLocalizer(sp Spine) *Localizer {
	l := &Localizer{
		spine: sp,
		units: make([]geometry.Point2D, len(sp)),
		dists: sp.Distances(),
	}
	for i, v := range sp {
		l.units[i] = v.Direction.Normalize()
	}
	if n := len(sp); n >= 2 {
		l.outward[0] = poleTangent(l.units[0], sp[0].Point.Sub(sp[1].Point))
		l.outward[1] = poleTangent(l.units[n-1], sp[n-1].Point.Sub(sp[n-2].Point))
	}
	return l
}

func poleTangent(u, ref geometry.Point2D) geometry.Point2D {
	t := u.Perp()
	if t.IsZero() {
		return ref.Normalize()
	}
	if t.Dot(ref) < 0 {
		return t.Scale(-1)
	}
	return t
}

// Spine returns the wrapped spine.
func (l *Localizer) Spine() Spine { return l.spine }

// Length returns the spine length.
func (l *Localizer) Length() float64 { return l.spine.Length() }

// Coordinate completes a (curvilinear, radial) pair with the spine length
// and the local radius.
func (l *Localizer) Coordinate(s, r float64) Coord {
	return Coord{Curvilinear: s, Radial: r, Length: l.Length(), Radius: l.radiusAt(s)}
}

func (l *Localizer) radiusAt(s float64) float64 {
	n := len(l.spine)
	if n == 0 {
		return 0
	}
	if s <= 0 {
		return l.spine[0].Width() / 2
	}
	if s >= l.Length() {
		return l.spine[n-1].Width() / 2
	}
	i := l.spine.At(s)
	if i >= n-1 {
		return l.spine[n-1].Width() / 2
	}
	span := l.dists[i+1] - l.dists[i]
	if span <= 0 {
		return l.spine[i].Width() / 2
	}
	a := (s - l.dists[i]) / span
	return ((1-a)*l.spine[i].Width() + a*l.spine[i+1].Width()) / 2
}

// nearest finds the vertebra closest to p, assuming the squared distance
// has a single minimum along the spine.
func (l *Localizer) nearest(p geometry.Point2D) int {
	lo, hi := 0, len(l.spine)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if p.DistanceSq(l.spine[mid].Point) <= p.DistanceSq(l.spine[mid+1].Point) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// Localize returns the spine coordinate of p. It reports false when no
// segment of the spine and no pole band accounts for p.
func (l *Localizer) Localize(p geometry.Point2D) (Coord, bool) {
	n := len(l.spine)
	if n < 2 {
		return Coord{}, false
	}
	k := l.nearest(p)
	if p.Distance(l.spine[k].Point) < solveEps {
		return l.Coordinate(l.dists[k], 0), true
	}

	for w := 1; w < n; w++ {
		best, found := Coord{}, false
		consider := func(c Coord) {
			if !found || math.Abs(c.Radial) < math.Abs(best.Radial) {
				best, found = c, true
			}
		}
		for _, i := range [2]int{k - w, k + w - 1} {
			if i < 0 || i >= n-1 {
				continue
			}
			if s, r, ok := l.solveSegment(i, p); ok {
				consider(l.Coordinate(s, r))
			}
		}
		if w == 1 {
			if k == 0 {
				if s, r, ok := l.beyondPole(0, p); ok {
					consider(l.Coordinate(s, r))
				}
			}
			if k == n-1 {
				if s, r, ok := l.beyondPole(1, p); ok {
					consider(l.Coordinate(s, r))
				}
			}
		}
		if found {
			return best, true
		}
		if k-w < 0 && k+w-1 >= n-1 {
			break
		}
	}
	return Coord{}, false
}

// solveSegment inverts p = r0 + a(r1-r0) + d(u0 + a(u1-u0)) on segment i
// for a in [0,1], returning the curvilinear and radial coordinates.
func (l *Localizer) solveSegment(i int, p geometry.Point2D) (s, r float64, ok bool) {
	r0, r1 := l.spine[i].Point, l.spine[i+1].Point
	u0, u1 := l.units[i], l.units[i+1]
	A := r1.Sub(r0)
	B := u1.Sub(u0)
	P := p.Sub(r0)

	qa := -A.Cross(B)
	qb := P.Cross(B) - A.Cross(u0)
	qc := P.Cross(u0)

	var roots []float64
	switch {
	case math.Abs(qc) < solveEps:
		// p lies on the width line of vertebra i.
		roots = append(roots, 0)
	case math.Abs(qa) < solveEps:
		if math.Abs(qb) >= solveEps {
			roots = append(roots, -qc/qb)
		}
	default:
		disc := qb*qb - 4*qa*qc
		if disc < 0 {
			if disc < -solveEps {
				return 0, 0, false
			}
			disc = 0
		}
		q := -0.5 * (qb + math.Copysign(math.Sqrt(disc), qb))
		roots = append(roots, q/qa)
		if q != 0 {
			roots = append(roots, qc/q)
		}
	}

	bestR := math.Inf(1)
	for _, a := range roots {
		if a < -solveEps || a > 1+solveEps {
			continue
		}
		a = math.Min(math.Max(a, 0), 1)
		w := u0.Add(B.Scale(a))
		nw := w.Norm()
		if nw < solveEps {
			continue
		}
		radial := P.Sub(A.Scale(a)).Dot(w) / nw
		if !ok || math.Abs(radial) < math.Abs(bestR) {
			s = l.dists[i] + a*(l.dists[i+1]-l.dists[i])
			r, bestR, ok = radial, radial, true
		}
	}
	return s, r, ok
}

// beyondPole localizes p in the tolerance band past pole 0 or 1 by
// extrapolating along the pole's outward tangent.
func (l *Localizer) beyondPole(pole int, p geometry.Point2D) (s, r float64, ok bool) {
	idx := 0
	if pole == 1 {
		idx = len(l.spine) - 1
	}
	v := p.Sub(l.spine[idx].Point)
	along := v.Dot(l.outward[pole])
	if along <= 0 || along > OutOfBoundTolerance {
		return 0, 0, false
	}
	r = v.Dot(l.units[idx])
	if pole == 0 {
		return -along, r, true
	}
	return l.Length() + along, r, true
}

// Project returns the point at curvilinear coordinate c.Curvilinear and
// radial offset c.Radial. Coordinates further than OutOfBoundTolerance past
// a pole cannot be projected.
func (l *Localizer) Project(c Coord) (geometry.Point2D, bool) {
	n := len(l.spine)
	if n < 2 {
		return geometry.Point2D{}, false
	}
	s, r := c.Curvilinear, c.Radial
	length := l.Length()

	switch {
	case s < -OutOfBoundTolerance || s > length+OutOfBoundTolerance:
		return geometry.Point2D{}, false
	case s < 0:
		return l.spine[0].Point.Add(l.outward[0].Scale(-s)).Add(l.units[0].Scale(r)), true
	case s > length:
		return l.spine[n-1].Point.Add(l.outward[1].Scale(s - length)).Add(l.units[n-1].Scale(r)), true
	}

	i := sort.SearchFloat64s(l.dists, s)
	if i < n && math.Abs(l.dists[i]-s) < solveEps {
		return l.spine[i].Point.Add(l.units[i].Scale(r)), true
	}
	if i == 0 || i >= n {
		return geometry.Point2D{}, false
	}
	a := (s - l.dists[i-1]) / (l.dists[i] - l.dists[i-1])
	pos := l.spine[i-1].Point.Lerp(l.spine[i].Point, a)
	w := l.units[i-1].Add(l.units[i].Sub(l.units[i-1]).Scale(a))
	if w.Norm() < solveEps {
		return geometry.Point2D{}, false
	}
	return pos.Add(w.Normalize().Scale(r)), true
}
