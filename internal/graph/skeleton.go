package graph

import (
	"fmt"
	"math"

	"cell-spine/internal/voxel"
)

// CleanSkeleton reduces a raw 1-voxel skeleton to its single longest simple
// path and returns that path ordered from its raster-first (upper-left)
// endpoint.
func CleanSkeleton(skeleton voxel.Set) ([]voxel.Voxel, error) {
	if len(skeleton) == 0 {
		return nil, ErrEmptySkeleton
	}

	g := New(skeleton)
	g.KeepLargestCluster()

	g.pruneUnitBranches()
	g.removeDuplicateEdges()
	g.promoteFreeEnds()

	a, b, path, ok := g.farthestVertices()
	if !ok {
		return nil, fmt.Errorf("%w: skeleton has no end points", ErrUnresolvableTopology)
	}
	endA, _ := g.segments[a].Voxels.First()
	endB, _ := g.segments[b].Voxels.First()

	g.keepPath(path)
	g.demoteUnitEnds()

	if endA == endB {
		return []voxel.Voxel{endA}, nil
	}
	if voxel.Less(endB, endA) {
		endA, endB = endB, endA
	}
	ordered, ok := voxel.ShortestPath(g.live, endA, endB)
	if !ok {
		return nil, fmt.Errorf("%w: skeleton path broken", ErrUnresolvableTopology)
	}
	return ordered, nil
}

// pruneUnitBranches removes single-voxel end branches until none is left.
func (g *Graph) pruneUnitBranches() {
	for {
		removed := false
		for _, l := range g.endBranches() {
			seg, ok := g.segments[l]
			if !ok || seg.Kind != KindEdge || seg.Size() != 1 || len(seg.Neighbors) != 1 || !g.hasFreeEnd(seg) {
				continue
			}
			v := seg.NeighborLabels()[0]
			g.Remove(l, true, true)
			g.Relabel(v)
			removed = true
			// Labels may have been reused by the relabel; start over.
			break
		}
		if !removed {
			return
		}
	}
}

// removeDuplicateEdges keeps only the smallest edge between any two
// junctions.
func (g *Graph) removeDuplicateEdges() {
	type pair struct{ a, b Label }
	seen := make(map[pair]Label)
	var drop []Label
	for _, e := range g.LabelsOf(KindEdge) {
		nbs := g.segments[e].NeighborLabels()
		if len(nbs) != 2 || g.segments[nbs[0]].Kind != KindVertex || g.segments[nbs[1]].Kind != KindVertex {
			continue
		}
		key := pair{nbs[0], nbs[1]}
		prev, dup := seen[key]
		if !dup {
			seen[key] = e
			continue
		}
		if g.segments[e].Size() < g.segments[prev].Size() {
			seen[key] = e
			drop = append(drop, prev)
		} else {
			drop = append(drop, e)
		}
	}
	var affected []Label
	for _, e := range drop {
		affected = append(affected, g.segments[e].NeighborLabels()...)
		g.Remove(e, true, true)
	}
	g.relabelAll(affected)
}

// promoteFreeEnds turns every free end voxel into its own singleton vertex.
func (g *Graph) promoteFreeEnds() {
	for _, e := range g.LabelsOf(KindEdge) {
		seg := g.segments[e]
		for _, v := range g.freeEnds(seg) {
			if seg.Size() == 1 {
				seg.Kind = KindVertex
				break
			}
			seg.Voxels.Remove(v)
			end := &Segment{
				Label:     g.labels.Acquire(),
				Kind:      KindVertex,
				Voxels:    voxel.NewSet(v),
				Neighbors: make(map[Label]struct{}),
			}
			g.segments[end.Label] = end
			g.owner[v] = end.Label
			g.link(end.Label, e)
		}
	}
}

// farthestVertices returns the vertex pair with the largest shortest-path
// distance and the segments on that path. Ties keep the first pair in label
// order.
func (g *Graph) farthestVertices() (Label, Label, []Label, bool) {
	vertices := g.LabelsOf(KindVertex)
	switch len(vertices) {
	case 0:
		return 0, 0, nil, false
	case 1:
		return vertices[0], vertices[0], vertices, true
	}
	dist := g.allPairs(nil)
	bestA, bestB, best := vertices[0], vertices[0], -1.0
	for i, a := range vertices {
		for _, b := range vertices[i+1:] {
			d := dist.length(a, b)
			if d > best && !math.IsInf(d, 1) {
				bestA, bestB, best = a, b, d
			}
		}
	}
	if best < 0 {
		return 0, 0, nil, false
	}
	return bestA, bestB, dist.between(bestA, bestB), true
}

// keepPath erases every segment not on path and relabels the inner path
// segments that lost a neighbour.
func (g *Graph) keepPath(path []Label) {
	onPath := make(map[Label]bool)
	for _, l := range path {
		onPath[l] = true
	}
	a, b := path[0], path[len(path)-1]

	var affected []Label
	for _, l := range g.Labels() {
		if onPath[l] {
			continue
		}
		for _, n := range g.segments[l].NeighborLabels() {
			if onPath[n] && n != a && n != b {
				affected = append(affected, n)
			}
		}
		g.Remove(l, true, true)
	}
	g.relabelAll(affected)
}

// demoteUnitEnds merges single-voxel end vertices back into their
// neighbouring segment as edge voxels.
func (g *Graph) demoteUnitEnds() {
	for _, l := range g.LabelsOf(KindVertex) {
		seg, ok := g.segments[l]
		if !ok || seg.Size() != 1 || len(seg.Neighbors) != 1 {
			continue
		}
		n := seg.NeighborLabels()[0]
		survivor := g.Merge(l, n)
		g.segments[survivor].Kind = KindEdge
	}
}
