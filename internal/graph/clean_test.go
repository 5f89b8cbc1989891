package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cell-spine/internal/region"
	"cell-spine/internal/voxel"
)

func assertSimpleCycle(t *testing.T, s voxel.Set) {
	t.Helper()
	for v := range s {
		assert.Equalf(t, 2, s.CountNeighbors(v), "voxel %v", v)
	}
}

func TestCleanContour(t *testing.T) {
	t.Parallel()

	raw := region.Rect(1, 0, 0, 21, 5).Contour()
	require.Len(t, raw, 2*21+2*3)

	cleaned, err := CleanContour(raw)
	require.NoError(t, err)
	assertSimpleCycle(t, cleaned)

	// The corner voxels are the only shortcuts.
	assert.Len(t, cleaned, len(raw)-4)
	for _, corner := range []voxel.Voxel{{X: 0, Y: 0}, {X: 20, Y: 0}, {X: 0, Y: 4}, {X: 20, Y: 4}} {
		assert.False(t, cleaned.Has(corner), "corner %v kept", corner)
	}
	first, _ := cleaned.First()
	assert.Equal(t, voxel.Voxel{X: 1, Y: 0}, first)

	t.Run("already clean", func(t *testing.T) {
		t.Parallel()
		again, err := CleanContour(cleaned)
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(cleaned.Sorted(), again.Sorted()))
	})

	t.Run("input untouched", func(t *testing.T) {
		t.Parallel()
		assert.Len(t, raw, 48)
	})
}

func TestCleanContourDropsSpurs(t *testing.T) {
	t.Parallel()

	want, err := CleanContour(region.Rect(1, 0, 0, 21, 5).Contour())
	require.NoError(t, err)

	tests := []struct {
		name string
		spur []voxel.Voxel
	}{
		{name: "single voxel", spur: []voxel.Voxel{{X: 10, Y: -1}}},
		{name: "two voxels", spur: []voxel.Voxel{{X: 10, Y: -1}, {X: 10, Y: -2}}},
		{name: "bottom", spur: []voxel.Voxel{{X: 7, Y: 5}, {X: 7, Y: 6}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw := region.Rect(1, 0, 0, 21, 5).Contour()
			for _, v := range tt.spur {
				raw.Add(v)
			}
			got, err := CleanContour(raw)
			require.NoError(t, err)
			assertSimpleCycle(t, got)
			assert.Len(t, got, 44)
			for x := 1; x < 20; x++ {
				assert.True(t, got.Has(voxel.Voxel{X: x, Y: 0}), "top side at x=%d", x)
				assert.True(t, got.Has(voxel.Voxel{X: x, Y: 4}), "bottom side at x=%d", x)
			}
			for y := 1; y < 4; y++ {
				assert.True(t, got.Has(voxel.Voxel{X: 0, Y: y}), "left side at y=%d", y)
				assert.True(t, got.Has(voxel.Voxel{X: 20, Y: y}), "right side at y=%d", y)
			}
			for _, v := range tt.spur {
				assert.False(t, got.Has(v), "spur voxel %v kept", v)
			}
			assert.Empty(t, cmp.Diff(want.Sorted(), got.Sorted()))
		})
	}
}

func TestCleanContourJunctions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			// The spoke and the chord are shortcuts across the outline.
			name: "inner chord",
			in: []string{
				".#############.",
				"#......#......#",
				"#......#......#",
				"#......#......#",
				"#......#......#",
				"###############",
				"#.............#",
				"#.............#",
				".#############.",
			},
			want: []string{
				".#############.",
				"#.............#",
				"#.............#",
				"#.............#",
				"#.............#",
				"#.............#",
				"#.............#",
				"#.............#",
				".#############.",
			},
		},
		{
			// A two voxel thick side is walked through its junction.
			name: "thick side",
			in: []string{
				"..........",
				".########.",
				".#......#.",
				".#......##",
				".#......##",
				".#......#.",
				".########.",
			},
			want: []string{
				"..........",
				"..######..",
				".#......#.",
				".#......#.",
				".#......#.",
				".#......#.",
				"..######..",
			},
		},
		{
			// A small loop hanging off the outline through a shared vertex.
			name: "side lobe",
			in: []string{
				"......####......",
				"....##....#.....",
				"..##......#..##.",
				".#........#.#..#",
				".#.........#...#",
				"#........###..#.",
				".#......#...###.",
				".#....##........",
				"..####..........",
			},
			want: []string{
				"......####......",
				"....##....#.....",
				"..##......#.....",
				".#........#.....",
				".#.........#....",
				"#........##.....",
				".#......#.......",
				".#....##........",
				"..####..........",
			},
		},
		{
			// Two loops sharing a corner: the larger one stays.
			name: "figure eight",
			in: []string{
				"#####.....",
				"#...#.....",
				"#...#.....",
				"#####.....",
				"....#####.",
				"....#...#.",
				"....#####.",
			},
			want: []string{
				".###.",
				"#...#",
				"#...#",
				".###.",
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CleanContour(region.FromRows(1, tt.in...).Voxels())
			require.NoError(t, err)
			assertSimpleCycle(t, got)
			want := region.FromRows(1, tt.want...).Voxels()
			if diff := cmp.Diff(want.Sorted(), got.Sorted()); diff != "" {
				t.Errorf("CleanContour() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCleanContourRejectsLasso(t *testing.T) {
	t.Parallel()

	// The only cycle is the small loop at the end of a long tail.
	in := region.FromRows(1,
		"..............................###",
		"###############################.#",
		"..............................###",
	).Voxels()
	_, err := CleanContour(in)
	assert.ErrorIs(t, err, ErrUnresolvableTopology)
}

func TestCleanContourKeepsLargestPiece(t *testing.T) {
	t.Parallel()

	raw := region.Rect(1, 0, 0, 21, 5).Contour()
	raw.AddAll(line(40, 42, 40))
	got, err := CleanContour(raw)
	require.NoError(t, err)
	assertSimpleCycle(t, got)
	assert.False(t, got.Has(voxel.Voxel{X: 41, Y: 40}))
}

func TestCleanContourRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := CleanContour(voxel.NewSet())
	assert.ErrorIs(t, err, ErrUnresolvableTopology)
}

func TestCleanSkeleton(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   voxel.Set
		want []voxel.Voxel
	}{
		{
			name: "straight line",
			in:   line(2, 17, 2),
			want: line(2, 17, 2).Sorted(),
		},
		{
			name: "single voxel",
			in:   voxel.NewSet(voxel.Voxel{X: 4, Y: 4}),
			want: []voxel.Voxel{{X: 4, Y: 4}},
		},
		{
			name: "side branch",
			in: func() voxel.Set {
				s := line(0, 10, 5)
				s.AddAll(voxel.NewSet(voxel.Voxel{X: 5, Y: 4}, voxel.Voxel{X: 5, Y: 3}, voxel.Voxel{X: 5, Y: 2}))
				return s
			}(),
			want: line(0, 10, 5).Sorted(),
		},
		{
			name: "unit spur",
			in: func() voxel.Set {
				s := line(0, 10, 5)
				s.Add(voxel.Voxel{X: 3, Y: 6})
				return s
			}(),
			want: line(0, 10, 5).Sorted(),
		},
		{
			name: "stray piece",
			in: func() voxel.Set {
				s := line(0, 10, 5)
				s.AddAll(line(20, 22, 0))
				return s
			}(),
			want: line(0, 10, 5).Sorted(),
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CleanSkeleton(tt.in)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("CleanSkeleton() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCleanSkeletonOrdersFromUpperLeft(t *testing.T) {
	t.Parallel()

	// A diagonal running up to the right starts at its top end.
	s := voxel.NewSet()
	for i := 0; i < 6; i++ {
		s.Add(voxel.Voxel{X: i, Y: 5 - i})
	}
	got, err := CleanSkeleton(s)
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.Equal(t, voxel.Voxel{X: 5, Y: 0}, got[0])
	assert.Equal(t, voxel.Voxel{X: 0, Y: 5}, got[5])
	for i := 1; i < len(got); i++ {
		assert.True(t, voxel.Adjacent(got[i-1], got[i]))
	}
}

func TestCleanSkeletonEmpty(t *testing.T) {
	t.Parallel()

	_, err := CleanSkeleton(voxel.NewSet())
	assert.ErrorIs(t, err, ErrEmptySkeleton)
}
