// Package graph decomposes voxel sets into junction (vertex) and chain (edge)
// segments and repairs contour and skeleton topology on top of that
// decomposition.
package graph

import (
	"errors"
	"sort"

	"cell-spine/internal/voxel"
)

var (
	// ErrUnresolvableTopology is returned when a junction or loop cannot be
	// cleaned into the required simple shape.
	ErrUnresolvableTopology = errors.New("unresolvable topology")
	// ErrEmptySkeleton is returned when there is nothing to clean.
	ErrEmptySkeleton = errors.New("empty skeleton")
)

// Kind tags a segment as a junction or a chain.
type Kind int

const (
	// KindEdge is a maximal chain of voxels with at most 2 neighbours each.
	KindEdge Kind = iota
	// KindVertex is a maximal connected set of voxels with more than 2 neighbours.
	KindVertex
)

func (k Kind) String() string {
	switch k {
	case KindEdge:
		return "Edge"
	case KindVertex:
		return "Vertex"
	default:
		return "Unknown"
	}
}

func kindOf(count int) Kind {
	if count > 2 {
		return KindVertex
	}
	return KindEdge
}

// Label identifies a live segment.
type Label int

// Segment is one vertex or edge of the decomposition.
type Segment struct {
	Label     Label
	Kind      Kind
	Voxels    voxel.Set
	Neighbors map[Label]struct{}
}

// Size returns the number of voxels in the segment.
func (s *Segment) Size() int { return len(s.Voxels) }

// NeighborLabels returns the adjacent segment labels in ascending order.
func (s *Segment) NeighborLabels() []Label {
	return sortedLabels(s.Neighbors)
}

func sortedLabels(m map[Label]struct{}) []Label {
	out := make([]Label, 0, len(m))
	for l := range m {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Labels hands out segment labels. Released labels are reused smallest
// first so that repeated local rebuilds do not grow the label space.
type Labels struct {
	next Label
	free []Label
}

// Acquire returns an unused label.
func (l *Labels) Acquire() Label {
	if len(l.free) > 0 {
		lb := l.free[0]
		l.free = l.free[1:]
		return lb
	}
	lb := l.next
	l.next++
	return lb
}

// Release returns lb to the pool.
func (l *Labels) Release(lb Label) {
	i := sort.Search(len(l.free), func(i int) bool { return l.free[i] >= lb })
	if i < len(l.free) && l.free[i] == lb {
		return
	}
	l.free = append(l.free, 0)
	copy(l.free[i+1:], l.free[i:])
	l.free[i] = lb
}

// Issued returns how many distinct labels have ever been handed out.
func (l *Labels) Issued() int { return int(l.next) }
