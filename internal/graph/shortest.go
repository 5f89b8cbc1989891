package graph

import (
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// segmentDistances holds all-pairs shortest path results over the segment
// adjacency graph. Each segment is a node; the link between adjacent
// segments a and b weighs (|a|+|b|)/2, so a path's weight plus half of its
// two end segments equals the number of voxels it covers.
type segmentDistances struct {
	g     *Graph
	paths path.AllShortest
}

// allPairs runs Floyd–Warshall over the live segments, leaving out the
// labels in skip.
func (g *Graph) allPairs(skip map[Label]bool) segmentDistances {
	wg := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	labels := g.Labels()
	for _, l := range labels {
		if skip[l] {
			continue
		}
		wg.AddNode(simple.Node(l))
	}
	for _, l := range labels {
		if skip[l] {
			continue
		}
		seg := g.segments[l]
		for _, n := range seg.NeighborLabels() {
			if n <= l || skip[n] {
				continue
			}
			w := float64(seg.Size()+g.segments[n].Size()) / 2
			wg.SetWeightedEdge(wg.NewWeightedEdge(simple.Node(l), simple.Node(n), w))
		}
	}
	paths, _ := path.FloydWarshall(wg)
	return segmentDistances{g: g, paths: paths}
}

// length returns the voxel count covered by the shortest path from a to b,
// both end segments included, or +Inf if they are not connected.
func (d segmentDistances) length(a, b Label) float64 {
	if a == b {
		return float64(d.g.segments[a].Size())
	}
	w := d.paths.Weight(int64(a), int64(b))
	if math.IsInf(w, 1) {
		return w
	}
	return w + float64(d.g.segments[a].Size()+d.g.segments[b].Size())/2
}

// between returns the labels on the shortest path from a to b.
func (d segmentDistances) between(a, b Label) []Label {
	if a == b {
		return []Label{a}
	}
	nodes, _, _ := d.paths.Between(int64(a), int64(b))
	out := make([]Label, len(nodes))
	for i, n := range nodes {
		out[i] = Label(n.ID())
	}
	return out
}
