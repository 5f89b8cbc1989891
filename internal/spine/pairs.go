package spine

import (
	"math"

	"cell-spine/pkg/geometry"
)

// flank is a pair of contour indices bracketing a vertebra. The width
// vector runs from a to b.
type flank struct{ a, b int }

// moves lists the index steps tried around a pair, in evaluation order.
var moves = [8][2]int{
	{-1, 0}, {1, 0}, {0, -1}, {0, 1},
	{-1, 1}, {1, -1}, {-1, -1}, {1, 1},
}

const tieEps = 1e-9

// pairSearch locates flanking contour points on a frozen contour.
type pairSearch struct {
	pts  []geometry.Point2D
	opts Options
}

func (ps *pairSearch) wrap(i int) int {
	n := len(ps.pts)
	return ((i % n) + n) % n
}

func (ps *pairSearch) moved(f flank, m [2]int) flank {
	return flank{ps.wrap(f.a + m[0]), ps.wrap(f.b + m[1])}
}

func (ps *pairSearch) vector(f flank) geometry.Point2D {
	return ps.pts[f.b].Sub(ps.pts[f.a])
}

func (ps *pairSearch) width(f flank) float64 {
	return ps.pts[f.a].Distance(ps.pts[f.b])
}

func (ps *pairSearch) mid(f flank) geometry.Point2D {
	return ps.pts[f.a].Mid(ps.pts[f.b])
}

// misalignment scores how far the vectors from p to the two flank points
// are from pointing in opposite directions. Opposite pairs score |sin| of
// the angle between them, in [0,1]. Pairs on the same side of p score
// 2+cos, always worse. A flank point on p itself is unusable.
func (ps *pairSearch) misalignment(p geometry.Point2D, f flank) float64 {
	if f.a == f.b {
		return math.Inf(1)
	}
	va := ps.pts[f.a].Sub(p)
	vb := ps.pts[f.b].Sub(p)
	na, nb := va.Norm(), vb.Norm()
	if na < tieEps || nb < tieEps {
		return math.Inf(1)
	}
	cos := va.Dot(vb) / (na * nb)
	if cos >= 0 {
		return 2 + cos
	}
	return math.Abs(va.Cross(vb)) / (na * nb)
}

// parallelism is |cos| between the pair vector and ref, or 0 without ref.
func (ps *pairSearch) parallelism(f flank, ref geometry.Point2D) float64 {
	v := ps.vector(f)
	nv, nr := v.Norm(), ref.Norm()
	if nv < tieEps || nr < tieEps {
		return 0
	}
	return math.Abs(v.Dot(ref)) / (nv * nr)
}

// initial picks the contour point nearest p and the point most opposite to
// it as seen from p; ties go to the nearer candidate, then the lower index.
func (ps *pairSearch) initial(p geometry.Point2D) (flank, bool) {
	a, best := -1, math.Inf(1)
	for i, q := range ps.pts {
		d := q.DistanceSq(p)
		if d < tieEps {
			continue
		}
		if d < best-tieEps {
			a, best = i, d
		}
	}
	if a < 0 {
		return flank{}, false
	}
	ua := ps.pts[a].Sub(p).Normalize()
	b, bestCos, bestDist := -1, math.Inf(1), math.Inf(1)
	for i, q := range ps.pts {
		if i == a {
			continue
		}
		v := q.Sub(p)
		d := v.Norm()
		if d < tieEps {
			continue
		}
		cos := ua.Dot(v.Scale(1 / d))
		if cos < bestCos-tieEps || (math.Abs(cos-bestCos) <= tieEps && d < bestDist) {
			b, bestCos, bestDist = i, cos, d
		}
	}
	if b < 0 || bestCos >= 0 {
		return flank{}, false
	}
	return flank{a, b}, true
}

// align slides the pair one index at a time towards the smallest
// misalignment until it is within tolerance or no move improves it.
func (ps *pairSearch) align(p geometry.Point2D, f flank) (flank, float64) {
	score := ps.misalignment(p, f)
	for iter := 0; score > ps.opts.AlignTolerance && iter < len(ps.pts); iter++ {
		best, bestScore := f, score
		for _, m := range moves {
			c := ps.moved(f, m)
			if s := ps.misalignment(p, c); s < bestScore-tieEps {
				best, bestScore = c, s
			}
		}
		if best == f {
			break
		}
		f, score = best, bestScore
	}
	return f, score
}

// global scans every pair for the narrowest one aligned within tolerance,
// or within the best score found when no pair reaches the tolerance.
func (ps *pairSearch) global(p geometry.Point2D) (flank, float64) {
	n := len(ps.pts)
	tol := math.Inf(1)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			tol = math.Min(tol, ps.misalignment(p, flank{a, b}))
		}
	}
	tol = math.Max(tol, ps.opts.AlignTolerance) + tieEps

	best, bestScore, bestWidth := flank{}, math.Inf(1), math.Inf(1)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			f := flank{a, b}
			s := ps.misalignment(p, f)
			if s > tol {
				continue
			}
			w := ps.width(f)
			if w < bestWidth-tieEps || (math.Abs(w-bestWidth) <= tieEps && s < bestScore) {
				best, bestScore, bestWidth = f, s, w
			}
		}
	}
	return best, bestScore
}

// push walks aligned pairs towards the shortest width. It gives up after
// PushLimit moves without improvement and returns the best pair seen.
func (ps *pairSearch) push(p geometry.Point2D, f flank, tol float64, ref geometry.Point2D) flank {
	best, bestWidth := f, ps.width(f)
	visited := map[flank]bool{f: true}
	cur := f
	for stale := 0; stale < ps.opts.PushLimit; {
		next, nextWidth, nextPar, found := flank{}, 0.0, 0.0, false
		for _, m := range moves {
			c := ps.moved(cur, m)
			if visited[c] || ps.misalignment(p, c) > tol {
				continue
			}
			w := ps.width(c)
			par := ps.parallelism(c, ref)
			if !found || w < nextWidth-tieEps || (math.Abs(w-nextWidth) <= tieEps && par > nextPar) {
				next, nextWidth, nextPar, found = c, w, par, true
			}
		}
		if !found {
			break
		}
		visited[next] = true
		cur = next
		if nextWidth < bestWidth-tieEps {
			best, bestWidth = next, nextWidth
			stale = 0
		} else {
			stale++
		}
	}
	return best
}

// find locates the flank pair of p starting from seed. ref is the previous
// width vector; the result is oriented to agree with it.
func (ps *pairSearch) find(p geometry.Point2D, seed flank, ref geometry.Point2D) (flank, bool) {
	f, score := ps.align(p, seed)
	if score > ps.opts.AlignTolerance {
		if g, gs := ps.global(p); gs < score {
			f, score = g, gs
		}
	}
	if score >= 2 || math.IsInf(score, 1) {
		return flank{}, false
	}
	f = ps.push(p, f, math.Max(score, ps.opts.AlignTolerance), ref)
	if !ref.IsZero() && ps.vector(f).Dot(ref) < 0 {
		f.a, f.b = f.b, f.a
	}
	return f, true
}

// axisFlank picks the flank points of p straight across the given axis:
// on each side of the axis line through p, the contour point nearest that
// line, then nearest p.
func (ps *pairSearch) axisFlank(p, axis geometry.Point2D) (flank, bool) {
	perp := axis.Perp()
	pick := func(sign float64) int {
		idx, bestAlong, bestSide := -1, math.Inf(1), math.Inf(1)
		for i, q := range ps.pts {
			v := q.Sub(p)
			side := v.Dot(perp) * sign
			if side <= tieEps {
				continue
			}
			along := math.Abs(v.Dot(axis))
			if along < bestAlong-tieEps || (math.Abs(along-bestAlong) <= tieEps && side < bestSide) {
				idx, bestAlong, bestSide = i, along, side
			}
		}
		return idx
	}
	a, b := pick(-1), pick(1)
	if a < 0 || b < 0 {
		return flank{}, false
	}
	return flank{a, b}, true
}

// snap places the end of an extension on the contour. The line
// origin + t*dir is first intersected with the chord of the last flank
// pair, ahead of origin and within limit. Otherwise the nearest crossing
// with the contour ahead of origin is used, or failing that the nearest one
// at most one step behind it.
func (ps *pairSearch) snap(origin, dir geometry.Point2D, last flank, limit float64) (geometry.Point2D, bool) {
	if last.a != last.b {
		t, u, ok := geometry.LineIntersection(origin, dir, ps.pts[last.a], ps.pts[last.b])
		if ok && u >= -tieEps && u <= 1+tieEps && t > tieEps && t <= limit {
			return origin.Add(dir.Scale(t)), true
		}
	}

	ahead, behind := math.Inf(1), math.Inf(-1)
	n := len(ps.pts)
	for k := 0; k < n; k++ {
		t, u, ok := geometry.LineIntersection(origin, dir, ps.pts[k], ps.pts[(k+1)%n])
		if !ok || u < -tieEps || u > 1+tieEps || t < -1 || t > limit {
			continue
		}
		if t >= 0 {
			ahead = math.Min(ahead, t)
		} else {
			behind = math.Max(behind, t)
		}
	}
	switch {
	case !math.IsInf(ahead, 1):
		return origin.Add(dir.Scale(ahead)), true
	case !math.IsInf(behind, -1):
		return origin.Add(dir.Scale(behind)), true
	}
	return geometry.Point2D{}, false
}
