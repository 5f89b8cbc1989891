package graph

import (
	"cell-spine/internal/voxel"
)

// Graph is a mutable planar decomposition of a voxel set into vertex and
// edge segments. Segments live in an arena keyed by label; adjacency is
// stored as label sets on both sides.
//
// Neighbour counts are kept exact as voxels are erased. The vertex/edge
// partition of a segment is only re-derived on Relabel, so callers relabel
// the segments whose neighbourhood they changed.
type Graph struct {
	live     voxel.Set
	counts   map[voxel.Voxel]int
	owner    map[voxel.Voxel]Label
	segments map[Label]*Segment
	labels   Labels
}

// New builds the decomposition of voxels. The input set is not modified.
func New(voxels voxel.Set) *Graph {
	g := &Graph{
		live:     voxels.Clone(),
		counts:   make(map[voxel.Voxel]int, len(voxels)),
		owner:    make(map[voxel.Voxel]Label, len(voxels)),
		segments: make(map[Label]*Segment),
	}
	for v := range g.live {
		g.counts[v] = g.live.CountNeighbors(v)
	}
	g.partition(g.live.Sorted())
	return g
}

// Len returns the number of live segments.
func (g *Graph) Len() int { return len(g.segments) }

// Live returns the live voxel set. Callers must not modify it.
func (g *Graph) Live() voxel.Set { return g.live }

// Count returns the current number of live neighbours of v.
func (g *Graph) Count(v voxel.Voxel) int { return g.counts[v] }

// Segment returns the segment with the given label, or nil.
func (g *Graph) Segment(l Label) *Segment { return g.segments[l] }

// Owner returns the label of the segment holding v.
func (g *Graph) Owner(v voxel.Voxel) (Label, bool) {
	l, ok := g.owner[v]
	return l, ok
}

// Labels returns all live labels in ascending order.
func (g *Graph) Labels() []Label {
	m := make(map[Label]struct{}, len(g.segments))
	for l := range g.segments {
		m[l] = struct{}{}
	}
	return sortedLabels(m)
}

// LabelsOf returns the live labels of the given kind in ascending order.
func (g *Graph) LabelsOf(kind Kind) []Label {
	var out []Label
	for _, l := range g.Labels() {
		if g.segments[l].Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

// partition floods the unowned voxels among the given ones into new
// segments, links them to adjacent segments and merges them with adjacent
// segments of the same kind. It returns the surviving labels that hold the
// partitioned voxels.
func (g *Graph) partition(voxels []voxel.Voxel) []Label {
	var created []Label
	for _, start := range voxels {
		if _, owned := g.owner[start]; owned || !g.live.Has(start) {
			continue
		}
		kind := kindOf(g.counts[start])
		seg := &Segment{
			Label:     g.labels.Acquire(),
			Kind:      kind,
			Voxels:    voxel.NewSet(start),
			Neighbors: make(map[Label]struct{}),
		}
		g.segments[seg.Label] = seg
		g.owner[start] = seg.Label

		stack := []voxel.Voxel{start}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, nb := range voxel.Neighbors(cur) {
				if !g.live.Has(nb) {
					continue
				}
				if _, owned := g.owner[nb]; owned || kindOf(g.counts[nb]) != kind {
					continue
				}
				g.owner[nb] = seg.Label
				seg.Voxels.Add(nb)
				stack = append(stack, nb)
			}
		}
		created = append(created, seg.Label)
	}

	var sameKind [][2]Label
	for _, l := range created {
		seg := g.segments[l]
		for v := range seg.Voxels {
			for _, nb := range voxel.Neighbors(v) {
				o, ok := g.owner[nb]
				if !ok || o == l {
					continue
				}
				if g.segments[o].Kind == seg.Kind {
					sameKind = append(sameKind, [2]Label{l, o})
					continue
				}
				g.link(l, o)
			}
		}
	}

	forward := make(map[Label]Label)
	resolve := func(l Label) Label {
		for {
			f, ok := forward[l]
			if !ok {
				return l
			}
			l = f
		}
	}
	for _, p := range sameKind {
		a, b := resolve(p[0]), resolve(p[1])
		if a == b {
			continue
		}
		survivor := g.Merge(a, b)
		if survivor == a {
			forward[b] = a
		} else {
			forward[a] = b
		}
	}

	seen := make(map[Label]struct{})
	var out []Label
	for _, l := range created {
		r := resolve(l)
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func (g *Graph) link(a, b Label) {
	g.segments[a].Neighbors[b] = struct{}{}
	g.segments[b].Neighbors[a] = struct{}{}
}

// Merge unions segment b into segment a (or a into b, whichever label is
// lower survives), relinks all neighbour references to the survivor and
// releases the other label. The survivor keeps its kind.
func (g *Graph) Merge(a, b Label) Label {
	if a == b {
		return a
	}
	if b < a {
		a, b = b, a
	}
	sa, sb := g.segments[a], g.segments[b]
	for v := range sb.Voxels {
		sa.Voxels.Add(v)
		g.owner[v] = a
	}
	for n := range sb.Neighbors {
		ns := g.segments[n]
		delete(ns.Neighbors, b)
		if n == a {
			continue
		}
		ns.Neighbors[a] = struct{}{}
		sa.Neighbors[n] = struct{}{}
	}
	delete(sa.Neighbors, b)
	delete(g.segments, b)
	g.labels.Release(b)
	return a
}

// Remove detaches the segment. With fromNeighbors the adjacency entries
// pointing at it are dropped; with fromGraph its voxels are erased from the
// live set, otherwise they stay live but unowned until re-partitioned.
func (g *Graph) Remove(l Label, fromGraph, fromNeighbors bool) {
	seg, ok := g.segments[l]
	if !ok {
		return
	}
	if fromNeighbors {
		for n := range seg.Neighbors {
			if ns, ok := g.segments[n]; ok {
				delete(ns.Neighbors, l)
			}
		}
	}
	for v := range seg.Voxels {
		delete(g.owner, v)
	}
	if fromGraph {
		for v := range seg.Voxels {
			g.erase(v)
		}
	}
	delete(g.segments, l)
	g.labels.Release(l)
}

// erase drops v from the live set and updates its neighbours' counts.
func (g *Graph) erase(v voxel.Voxel) {
	if !g.live.Has(v) {
		return
	}
	g.live.Remove(v)
	delete(g.counts, v)
	delete(g.owner, v)
	for _, nb := range voxel.Neighbors(v) {
		if g.live.Has(nb) {
			g.counts[nb]--
		}
	}
}

// Shrink erases every voxel of segment l that is not in keep. The segment
// keeps its label and kind; call Relabel afterwards.
func (g *Graph) Shrink(l Label, keep voxel.Set) {
	seg := g.segments[l]
	for _, v := range seg.Voxels.Sorted() {
		if keep.Has(v) {
			continue
		}
		seg.Voxels.Remove(v)
		g.erase(v)
	}
}

// Relabel recomputes neighbour counts for the voxels of segment l and
// re-derives their partition. Only that segment's voxels are re-partitioned;
// the resulting parts merge with adjacent segments of the same kind. The
// labels now holding those voxels are returned.
func (g *Graph) Relabel(l Label) []Label {
	seg, ok := g.segments[l]
	if !ok {
		return nil
	}
	voxels := seg.Voxels.Sorted()
	g.Remove(l, false, true)
	for _, v := range voxels {
		g.counts[v] = g.live.CountNeighbors(v)
	}
	return g.partition(voxels)
}

// Clusters returns the connected groups of segments, each sorted, ordered by
// their lowest label.
func (g *Graph) Clusters() [][]Label {
	seen := make(map[Label]bool)
	var clusters [][]Label
	for _, start := range g.Labels() {
		if seen[start] {
			continue
		}
		members := map[Label]struct{}{start: {}}
		seen[start] = true
		queue := []Label{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for n := range g.segments[cur].Neighbors {
				if !seen[n] {
					seen[n] = true
					members[n] = struct{}{}
					queue = append(queue, n)
				}
			}
		}
		clusters = append(clusters, sortedLabels(members))
	}
	return clusters
}

// KeepLargestCluster erases every cluster except the one with the largest
// total voxel count. Ties keep the cluster with the lowest label.
func (g *Graph) KeepLargestCluster() {
	clusters := g.Clusters()
	if len(clusters) < 2 {
		return
	}
	best, bestSize := 0, -1
	for i, c := range clusters {
		size := 0
		for _, l := range c {
			size += g.segments[l].Size()
		}
		if size > bestSize {
			best, bestSize = i, size
		}
	}
	for i, c := range clusters {
		if i == best {
			continue
		}
		for _, l := range c {
			g.Remove(l, true, true)
		}
	}
}

// hasFreeEnd reports whether the segment holds a voxel with at most one
// live neighbour.
func (g *Graph) hasFreeEnd(seg *Segment) bool {
	for v := range seg.Voxels {
		if g.counts[v] <= 1 {
			return true
		}
	}
	return false
}

// freeEnds returns the voxels of seg with at most one live neighbour, in
// raster order.
func (g *Graph) freeEnds(seg *Segment) []voxel.Voxel {
	var out []voxel.Voxel
	for _, v := range seg.Voxels.Sorted() {
		if g.counts[v] <= 1 {
			out = append(out, v)
		}
	}
	return out
}

// endBranches returns the edges that touch exactly one vertex and have a
// free end, smallest first (ties by label).
func (g *Graph) endBranches() []Label {
	var out []Label
	for _, l := range g.LabelsOf(KindEdge) {
		seg := g.segments[l]
		if len(seg.Neighbors) != 1 || !g.hasFreeEnd(seg) {
			continue
		}
		only := seg.NeighborLabels()[0]
		if g.segments[only].Kind != KindVertex {
			continue
		}
		out = append(out, l)
	}
	sortBySize(g, out)
	return out
}

func sortBySize(g *Graph, labels []Label) {
	// insertion sort keeps equal sizes in label order
	for i := 1; i < len(labels); i++ {
		for j := i; j > 0 && g.segments[labels[j]].Size() < g.segments[labels[j-1]].Size(); j-- {
			labels[j], labels[j-1] = labels[j-1], labels[j]
		}
	}
}

// relabelAll relabels each label that is still live.
func (g *Graph) relabelAll(labels []Label) {
	for _, l := range labels {
		if _, ok := g.segments[l]; ok {
			g.Relabel(l)
		}
	}
}
