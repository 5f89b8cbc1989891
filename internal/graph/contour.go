package graph

import (
	"fmt"
	"math"

	"cell-spine/internal/voxel"
)

// CleanContour reduces a raw boundary voxel set to a single simple cycle in
// which every voxel has exactly two 8-connected neighbours. The cycle must
// keep at least a third of the largest connected piece.
func CleanContour(contour voxel.Set) (voxel.Set, error) {
	if len(contour) == 0 {
		return nil, fmt.Errorf("%w: empty contour", ErrUnresolvableTopology)
	}

	g := New(contour)
	g.KeepLargestCluster()
	cluster := len(g.live)

	limit := 4*len(contour) + 16
	for iter := 0; g.Len() > 1; iter++ {
		if iter > limit {
			return nil, fmt.Errorf("%w: contour not closed after %d steps", ErrUnresolvableTopology, limit)
		}

		if branches := g.endBranches(); len(branches) > 0 {
			b := branches[0]
			v := g.segments[b].NeighborLabels()[0]
			g.Remove(b, true, true)
			g.Relabel(v)
			continue
		}

		v, ok := g.fewestEdgesVertex()
		if !ok {
			return nil, fmt.Errorf("%w: %d segments but no junction", ErrUnresolvableTopology, g.Len())
		}
		if err := g.resolveContourVertex(v); err != nil {
			return nil, err
		}
		g.KeepLargestCluster()
	}

	for v := range g.live {
		if n := g.live.CountNeighbors(v); n != 2 {
			return nil, fmt.Errorf("%w: voxel (%d,%d) has %d contour neighbours", ErrUnresolvableTopology, v.X, v.Y, n)
		}
	}
	// A loop this small is a pinch or a lasso, not the object outline.
	if 3*len(g.live) < cluster {
		return nil, fmt.Errorf("%w: closed contour keeps %d of %d voxels", ErrUnresolvableTopology, len(g.live), cluster)
	}
	return g.live.Clone(), nil
}

// fewestEdgesVertex returns the vertex with the fewest incident segments,
// ties resolved by the lowest label.
func (g *Graph) fewestEdgesVertex() (Label, bool) {
	best, bestN := Label(0), math.MaxInt
	for _, l := range g.LabelsOf(KindVertex) {
		if n := len(g.segments[l].Neighbors); n < bestN {
			best, bestN = l, n
		}
	}
	return best, bestN != math.MaxInt
}

// junctionEnd is an edge voxel touching a vertex.
type junctionEnd struct {
	edge  Label
	voxel voxel.Voxel
}

// touchingEnds lists, for each edge adjacent to vertex l, the edge voxels
// adjacent to the vertex. A single-voxel edge entering and leaving the
// vertex counts as two ends.
func (g *Graph) touchingEnds(l Label) []junctionEnd {
	vseg := g.segments[l]
	var ends []junctionEnd
	for _, e := range vseg.NeighborLabels() {
		eseg := g.segments[e]
		for _, v := range eseg.Voxels.Sorted() {
			inVertex := 0
			for _, nb := range voxel.Neighbors(v) {
				if vseg.Voxels.Has(nb) {
					inVertex++
				}
			}
			if inVertex == 0 {
				continue
			}
			ends = append(ends, junctionEnd{edge: e, voxel: v})
			if eseg.Size() == 1 && inVertex >= 2 && g.counts[v] == inVertex {
				ends = append(ends, junctionEnd{edge: e, voxel: v})
			}
		}
	}
	return ends
}

func (g *Graph) resolveContourVertex(l Label) error {
	ends := g.touchingEnds(l)
	switch {
	case len(ends) == 2:
		return g.resolveJunctionWalk(l, ends[0], ends[1])
	case len(ends) < 2:
		return fmt.Errorf("%w: junction %d has %d incident ends", ErrUnresolvableTopology, l, len(ends))
	}

	keep, ok := g.largestLoop(l, ends)
	if !ok {
		return fmt.Errorf("%w: no loop through junction %d", ErrUnresolvableTopology, l)
	}
	if e, ok := g.redundantEdge(l, keep); ok {
		affected := append([]Label{l}, g.farVertices(e, l)...)
		g.Remove(e, true, true)
		g.relabelAll(affected)
		return nil
	}

	affected := []Label{l}
	for _, e := range g.segments[l].NeighborLabels() {
		if keep[e] {
			continue
		}
		affected = append(affected, g.farVertices(e, l)...)
		g.Remove(e, true, true)
	}
	g.relabelAll(affected)
	return nil
}

// resolveJunctionWalk keeps only the shortest weighted walk through the
// junction's own voxels connecting the two touching ends.
func (g *Graph) resolveJunctionWalk(l Label, a, b junctionEnd) error {
	vseg := g.segments[l]
	keep := voxel.NewSet()

	if a.voxel == b.voxel {
		// The cycle leaves the vertex through a single voxel and comes back:
		// connect two of that voxel's vertex neighbours inside the vertex.
		var inside []voxel.Voxel
		for _, nb := range voxel.Neighbors(a.voxel) {
			if vseg.Voxels.Has(nb) {
				inside = append(inside, nb)
			}
		}
		path, ok := voxel.ShortestPath(vseg.Voxels, inside[0], inside[len(inside)-1])
		if !ok {
			return fmt.Errorf("%w: junction %d cannot be walked", ErrUnresolvableTopology, l)
		}
		keep = voxel.NewSet(path...)
	} else {
		path, ok := voxel.ShortestPath(vseg.Voxels, a.voxel, b.voxel)
		if !ok {
			return fmt.Errorf("%w: junction %d cannot be walked", ErrUnresolvableTopology, l)
		}
		for _, v := range path[1 : len(path)-1] {
			keep.Add(v)
		}
	}

	g.Shrink(l, keep)
	if len(keep) == 0 {
		g.Remove(l, true, true)
		g.relabelAll([]Label{a.edge, b.edge})
		return nil
	}
	g.Relabel(l)
	return nil
}

// farVertices returns the vertices adjacent to edge e other than l.
func (g *Graph) farVertices(e, l Label) []Label {
	var out []Label
	for _, n := range g.segments[e].NeighborLabels() {
		if n != l && g.segments[n].Kind == KindVertex {
			out = append(out, n)
		}
	}
	return out
}

// largestLoop returns the edges of the pair of incident ends whose
// shortest closing loop through the vertex is the longest.
func (g *Graph) largestLoop(l Label, ends []junctionEnd) (map[Label]bool, bool) {
	dist := g.allPairs(map[Label]bool{l: true})
	vsize := float64(g.segments[l].Size())

	bestI, bestJ, bestLen := -1, -1, -1.0
	for i := range ends {
		for j := i + 1; j < len(ends); j++ {
			ei, ej := ends[i].edge, ends[j].edge
			var loop float64
			if ei == ej {
				if ends[i].voxel == ends[j].voxel && g.segments[ei].Size() > 1 {
					continue
				}
				loop = float64(g.segments[ei].Size()) + vsize
			} else {
				loop = dist.length(ei, ej) + vsize
			}
			if math.IsInf(loop, 1) {
				continue
			}
			if loop > bestLen {
				bestI, bestJ, bestLen = i, j, loop
			}
		}
	}
	if bestI < 0 {
		return nil, false
	}
	return map[Label]bool{ends[bestI].edge: true, ends[bestJ].edge: true}, true
}

// redundantEdge picks the smallest incident edge outside keep that closes a
// loop without the rest of the contour: it either returns to l or ends at a
// vertex within two hops of another incident edge's far vertex. Ties go to
// the lower label.
func (g *Graph) redundantEdge(l Label, keep map[Label]bool) (Label, bool) {
	edges := g.segments[l].NeighborLabels()
	best, found := Label(0), false
	for _, e := range edges {
		if keep[e] || !g.shortcut(l, e, edges) {
			continue
		}
		if !found || g.segments[e].Size() < g.segments[best].Size() {
			best, found = e, true
		}
	}
	return best, found
}

func (g *Graph) shortcut(l, e Label, edges []Label) bool {
	far := g.farVertices(e, l)
	if len(far) == 0 {
		return true
	}
	for _, o := range edges {
		if o == e {
			continue
		}
		for _, w := range g.farVertices(o, l) {
			for _, x := range far {
				if g.withinTwoHops(x, w, l) {
					return true
				}
			}
		}
	}
	return false
}

// withinTwoHops reports whether vertex b is a or shares an edge with a,
// ignoring segment skip.
func (g *Graph) withinTwoHops(a, b, skip Label) bool {
	if a == b {
		return true
	}
	for n := range g.segments[a].Neighbors {
		if n == skip {
			continue
		}
		if _, ok := g.segments[n].Neighbors[b]; ok {
			return true
		}
	}
	return false
}
