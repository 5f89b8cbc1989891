package region

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"cell-spine/internal/voxel"
	"cell-spine/pkg/geometry"
)

func TestFromRows(t *testing.T) {
	t.Parallel()

	m := FromRows(7,
		"..#",
		".##",
		"###",
	)
	assert.Equal(t, 7, m.Label)
	assert.Equal(t, 6, m.Area())
	assert.True(t, m.Contains(voxel.Voxel{X: 2, Y: 0}))
	assert.False(t, m.Contains(voxel.Voxel{X: 0, Y: 0}))
	assert.Equal(t, geometry.RectInt{X: 0, Y: 0, Width: 3, Height: 3}, m.Bounds())
	assert.True(t, m.Is2D())

	xy, z := m.Scale()
	assert.Equal(t, 1.0, xy)
	assert.Equal(t, 1.0, z)
}

func TestRectContour(t *testing.T) {
	t.Parallel()

	m := Rect(1, 4, 5, 3, 3)
	assert.Equal(t, geometry.RectInt{X: 4, Y: 5, Width: 3, Height: 3}, m.Bounds())

	want := m.Voxels().Clone()
	want.Remove(voxel.Voxel{X: 5, Y: 6})
	if diff := cmp.Diff(want.Sorted(), m.Contour().Sorted()); diff != "" {
		t.Errorf("Contour() mismatch (-want +got):\n%s", diff)
	}
}

func TestContourUsesFourConnectivity(t *testing.T) {
	t.Parallel()

	// The centre of a plus has background only diagonally.
	m := FromRows(1,
		".#.",
		"###",
		".#.",
	)
	c := m.Contour()
	assert.Len(t, c, 4)
	assert.False(t, c.Has(voxel.Voxel{X: 1, Y: 1}))
}

func TestWithScale(t *testing.T) {
	t.Parallel()

	m := Rect(2, 0, 0, 2, 2)
	scaled := m.WithScale(0.065, 0.2)

	xy, z := scaled.Scale()
	assert.Equal(t, 0.065, xy)
	assert.Equal(t, 0.2, z)
	xy, _ = m.Scale()
	assert.Equal(t, 1.0, xy, "original left untouched")
	assert.Equal(t, m.Label, scaled.Label)
}

func TestIs2D(t *testing.T) {
	t.Parallel()

	s := Rect(1, 0, 0, 3, 3).Voxels().Clone()
	s.Add(voxel.Voxel{X: 1, Y: 1, Z: 1})
	assert.False(t, NewMask(1, s).Is2D())
}
