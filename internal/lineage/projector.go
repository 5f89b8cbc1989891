package lineage

import (
	"sort"

	"github.com/google/uuid"

	"cell-spine/internal/spine"
	"cell-spine/pkg/geometry"
)

// GrowthFrames is the number of ancestor frames used to estimate growth.
const GrowthFrames = 5

// Projector moves spine coordinates along a lineage.
type Projector struct {
	lineage *Lineage
	locs    Localizers
}

// NewProjector returns a projector over a fully built localizer map.
func NewProjector(l *Lineage, locs Localizers) *Projector {
	return &Projector{lineage: l, locs: locs}
}

// ProjectPoint localizes p in object from and returns the matching point in
// object to.
func (pr *Projector) ProjectPoint(p geometry.Point2D, from, to uuid.UUID) (geometry.Point2D, bool) {
	src, ok := pr.locs[from]
	if !ok {
		return geometry.Point2D{}, false
	}
	c, ok := src.Localize(p)
	if !ok {
		return geometry.Point2D{}, false
	}
	path, ok := pr.lineage.Path(from, to)
	if !ok {
		return geometry.Point2D{}, false
	}
	if c, ok = pr.Project(c, path); !ok {
		return geometry.Point2D{}, false
	}
	return pr.locs[to].Project(c)
}

// Project carries c, a coordinate in path[0], step by step to the last
// object of path. It reports false as soon as a step is impossible.
func (pr *Projector) Project(c spine.Coord, path []uuid.UUID) (spine.Coord, bool) {
	if len(path) == 0 {
		return spine.Coord{}, false
	}
	if _, ok := pr.locs[path[0]]; !ok {
		return spine.Coord{}, false
	}
	for i := 1; i < len(path); i++ {
		var ok bool
		if c, ok = pr.step(c, path[i-1], path[i]); !ok {
			return spine.Coord{}, false
		}
	}
	return c, true
}

func (pr *Projector) step(c spine.Coord, from, to uuid.UUID) (spine.Coord, bool) {
	if _, ok := pr.locs[to]; !ok {
		return spine.Coord{}, false
	}
	switch {
	case pr.isParent(from, to):
		if pr.lineage.Divided(from) {
			return pr.intoDaughter(c, from, to)
		}
		return pr.relocalize(c, from, to)
	case pr.isParent(to, from):
		if pr.lineage.Divided(to) {
			return pr.intoParent(c, from, to)
		}
		return pr.relocalize(c, from, to)
	}
	return spine.Coord{}, false
}

func (pr *Projector) isParent(parent, child uuid.UUID) bool {
	p, ok := pr.lineage.Parent(child)
	return ok && p == parent
}

// relocalize maps c through the image plane: project in the source,
// localize in the destination.
func (pr *Projector) relocalize(c spine.Coord, from, to uuid.UUID) (spine.Coord, bool) {
	p, ok := pr.locs[from].Project(c)
	if !ok {
		return spine.Coord{}, false
	}
	return pr.locs[to].Localize(p)
}

// division describes how a parent spine splits between two daughters.
type division struct {
	parentLength float64 // at the last frame before division
	atDivision   float64 // estimated parent length at division
	firstLength  float64 // daughter adjacent to the parent's pole 0
	first        bool    // whether the daughter of interest is that one
	reversed     bool    // daughter spine runs against the parent's
	length       float64 // daughter of interest
}

func (pr *Projector) divide(parent, daughter uuid.UUID) (division, bool) {
	ploc := pr.locs[parent]
	dloc, ok := pr.locs[daughter]
	if !ok || ploc.Length() == 0 {
		return division{}, false
	}
	d := division{parentLength: ploc.Length(), length: dloc.Length()}
	pole := ploc.Spine()[0].Point

	dsp := dloc.Spine()
	dFirst, dLast := dsp[0].Point, dsp[len(dsp)-1].Point
	d.reversed = dLast.Distance(pole) < dFirst.Distance(pole)

	sib, hasSib := pr.lineage.Sibling(daughter)
	sloc, known := pr.locs[sib]
	if hasSib && known {
		d.atDivision = d.length + sloc.Length()
		d.first = centre(dloc).Distance(pole) <= centre(sloc).Distance(pole)
		if d.first {
			d.firstLength = d.length
		} else {
			d.firstLength = sloc.Length()
		}
		return d, true
	}

	// Without the sibling, grow the parent by its recent median rate and
	// give the daughter the end its centre is closer to.
	d.atDivision = d.parentLength * pr.growthRatio(parent)
	siblingLength := max(d.atDivision-d.length, 0)
	d.first = centre(dloc).Distance(pole) <= centre(ploc).Distance(pole)
	if d.first {
		d.firstLength = d.length
	} else {
		d.firstLength = siblingLength
	}
	return d, true
}

func centre(loc *spine.Localizer) geometry.Point2D {
	p, ok := loc.Project(loc.Coordinate(loc.Length()/2, 0))
	if !ok {
		sp := loc.Spine()
		return sp[len(sp)/2].Point
	}
	return p
}

// intoDaughter maps a parent coordinate into one daughter.
func (pr *Projector) intoDaughter(c spine.Coord, parent, daughter uuid.UUID) (spine.Coord, bool) {
	d, ok := pr.divide(parent, daughter)
	if !ok {
		return spine.Coord{}, false
	}
	s := c.Curvilinear * d.atDivision / d.parentLength
	if !d.first {
		s -= d.firstLength
	}
	r := c.Radial
	if d.reversed {
		s, r = d.length-s, -r
	}
	if s < -spine.OutOfBoundTolerance || s > d.length+spine.OutOfBoundTolerance {
		return spine.Coord{}, false
	}
	return pr.locs[daughter].Coordinate(s, r), true
}

// intoParent maps a daughter coordinate back into its parent.
func (pr *Projector) intoParent(c spine.Coord, daughter, parent uuid.UUID) (spine.Coord, bool) {
	d, ok := pr.divide(parent, daughter)
	if !ok || d.atDivision == 0 {
		return spine.Coord{}, false
	}
	s, r := c.Curvilinear, c.Radial
	if d.reversed {
		s, r = d.length-s, -r
	}
	if !d.first {
		s += d.firstLength
	}
	s *= d.parentLength / d.atDivision
	if s < -spine.OutOfBoundTolerance || s > d.parentLength+spine.OutOfBoundTolerance {
		return spine.Coord{}, false
	}
	return pr.locs[parent].Coordinate(s, r), true
}

// growthRatio is the median frame-to-frame length ratio over the last
// GrowthFrames ancestors of id, or 1 without history.
func (pr *Projector) growthRatio(id uuid.UUID) float64 {
	chain := append([]uuid.UUID{id}, pr.lineage.Ancestors(id, GrowthFrames)...)
	var ratios []float64
	for i := 0; i+1 < len(chain); i++ {
		cur, okc := pr.locs[chain[i]]
		prev, okp := pr.locs[chain[i+1]]
		if !okc || !okp || prev.Length() == 0 || pr.lineage.Divided(chain[i+1]) {
			continue
		}
		ratios = append(ratios, cur.Length()/prev.Length())
	}
	if len(ratios) == 0 {
		return 1
	}
	sort.Float64s(ratios)
	return spine.Median(ratios)
}
