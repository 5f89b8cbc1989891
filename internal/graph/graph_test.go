package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cell-spine/internal/voxel"
)

func line(x0, x1, y int) voxel.Set {
	s := voxel.NewSet()
	for x := x0; x <= x1; x++ {
		s.Add(voxel.Voxel{X: x, Y: y})
	}
	return s
}

// cross is a plus sign with arms of two voxels around (2,2).
func cross() voxel.Set {
	s := line(0, 4, 2)
	for y := 0; y <= 4; y++ {
		s.Add(voxel.Voxel{X: 2, Y: y})
	}
	return s
}

func TestLabelsReuseSmallestFirst(t *testing.T) {
	t.Parallel()

	var l Labels
	assert.Equal(t, Label(0), l.Acquire())
	assert.Equal(t, Label(1), l.Acquire())
	assert.Equal(t, Label(2), l.Acquire())

	l.Release(2)
	l.Release(0)
	l.Release(0)
	assert.Equal(t, Label(0), l.Acquire())
	assert.Equal(t, Label(2), l.Acquire())
	assert.Equal(t, Label(3), l.Acquire())
	assert.Equal(t, 4, l.Issued())
}

func TestNewChainIsOneEdge(t *testing.T) {
	t.Parallel()

	g := New(line(0, 6, 0))
	require.Equal(t, 1, g.Len())
	seg := g.Segment(0)
	require.NotNil(t, seg)
	assert.Equal(t, KindEdge, seg.Kind)
	assert.Equal(t, 7, seg.Size())
	assert.Empty(t, seg.Neighbors)
}

func TestNewCrossPartition(t *testing.T) {
	t.Parallel()

	g := New(cross())
	vertices := g.LabelsOf(KindVertex)
	edges := g.LabelsOf(KindEdge)
	require.Len(t, vertices, 1)
	require.Len(t, edges, 4)

	v := g.Segment(vertices[0])
	assert.Equal(t, 5, v.Size(), "centre and the four voxels around it")
	assert.Equal(t, edges, v.NeighborLabels())
	for _, e := range edges {
		seg := g.Segment(e)
		assert.Equal(t, 1, seg.Size())
		assert.Equal(t, []Label{vertices[0]}, seg.NeighborLabels())
	}

	// Every live voxel is owned by exactly one segment of the right kind.
	total := 0
	for _, l := range g.Labels() {
		seg := g.Segment(l)
		total += seg.Size()
		for vx := range seg.Voxels {
			owner, ok := g.Owner(vx)
			require.True(t, ok)
			assert.Equal(t, l, owner)
			assert.Equal(t, seg.Kind, kindOf(g.Count(vx)))
		}
	}
	assert.Equal(t, len(g.Live()), total)
}

func TestRemoveKeepsCountsExact(t *testing.T) {
	t.Parallel()

	g := New(cross())
	arm, ok := g.Owner(voxel.Voxel{X: 0, Y: 2})
	require.True(t, ok)
	assert.Equal(t, 4, g.Count(voxel.Voxel{X: 1, Y: 2}))

	g.Remove(arm, true, true)
	assert.False(t, g.Live().Has(voxel.Voxel{X: 0, Y: 2}))
	assert.Equal(t, 3, g.Count(voxel.Voxel{X: 1, Y: 2}))
	assert.Len(t, g.LabelsOf(KindEdge), 3)

	v := g.LabelsOf(KindVertex)[0]
	assert.NotContains(t, g.Segment(v).NeighborLabels(), arm)
}

func TestRelabelTurnsChainBackIntoEdge(t *testing.T) {
	t.Parallel()

	// A T junction: once the stem is gone the bar is a plain chain again.
	s := line(0, 6, 0)
	s.Add(voxel.Voxel{X: 3, Y: 1})
	s.Add(voxel.Voxel{X: 3, Y: 2})
	g := New(s)
	require.Len(t, g.LabelsOf(KindVertex), 1)

	vertex := g.LabelsOf(KindVertex)[0]
	g.Remove(mustOwner(t, g, voxel.Voxel{X: 3, Y: 2}), true, true)
	g.Shrink(vertex, line(2, 4, 0))
	g.Relabel(vertex)

	require.Equal(t, 1, g.Len())
	seg := g.Segment(g.Labels()[0])
	assert.Equal(t, KindEdge, seg.Kind)
	assert.Equal(t, 7, seg.Size())
}

func mustOwner(t *testing.T, g *Graph, v voxel.Voxel) Label {
	t.Helper()
	l, ok := g.Owner(v)
	require.True(t, ok)
	return l
}

func TestMergeLowerLabelSurvives(t *testing.T) {
	t.Parallel()

	s := line(0, 2, 0)
	s.AddAll(line(10, 12, 0))
	g := New(s)
	require.Equal(t, 2, g.Len())

	survivor := g.Merge(1, 0)
	assert.Equal(t, Label(0), survivor)
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 6, g.Segment(0).Size())
	l, _ := g.Owner(voxel.Voxel{X: 11, Y: 0})
	assert.Equal(t, Label(0), l)

	// The released label is handed out again.
	assert.Equal(t, Label(1), g.labels.Acquire())
}

func TestKeepLargestCluster(t *testing.T) {
	t.Parallel()

	s := line(0, 2, 0)
	s.AddAll(line(10, 14, 5))
	g := New(s)
	require.Len(t, g.Clusters(), 2)

	g.KeepLargestCluster()
	assert.Len(t, g.Clusters(), 1)
	assert.Len(t, g.Live(), 5)
	assert.True(t, g.Live().Has(voxel.Voxel{X: 12, Y: 5}))
}
