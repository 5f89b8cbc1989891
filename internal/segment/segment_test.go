package segment

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cell-spine/internal/spine"
	"cell-spine/internal/voxel"
)

func fill(img *image.Gray, x0, y0, w, h int) {
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
}

// scene holds a 21x5 cell, a cell cut by the left border and a speck.
func scene() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 40, 30))
	fill(img, 5, 5, 21, 5)
	fill(img, 0, 20, 4, 6)
	fill(img, 30, 25, 2, 2)
	return img
}

func TestObjects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		params Params
		areas  []int
	}{
		{name: "defaults", params: DefaultParams(), areas: []int{105}},
		{name: "keep border objects", params: Params{Threshold: 127, MinArea: 20, PixelSize: 1}, areas: []int{105, 24}},
		{name: "keep specks", params: DefaultParams().WithAreaRange(1, 0), areas: []int{105, 4}},
		{name: "upper bound", params: DefaultParams().WithAreaRange(1, 50), areas: []int{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			masks, err := Objects(scene(), tt.params)
			require.NoError(t, err)
			var areas []int
			for _, m := range masks {
				areas = append(areas, m.Area())
			}
			assert.Equal(t, tt.areas, areas)
		})
	}
}

func TestObjectsCalibration(t *testing.T) {
	t.Parallel()

	masks, err := Objects(scene(), DefaultParams().WithPixelSize(0.065))
	require.NoError(t, err)
	require.Len(t, masks, 1)

	xy, _ := masks[0].Scale()
	assert.Equal(t, 0.065, xy)
	assert.True(t, masks[0].Contains(voxel.Voxel{X: 5, Y: 5}))
	assert.False(t, masks[0].Contains(voxel.Voxel{X: 4, Y: 5}))

	res, err := spine.NewBuilder(Thinner{}, spine.DefaultOptions()).Build(masks[0])
	require.NoError(t, err)
	assert.InDelta(t, 20.0, res.Length(), 0.5)
	assert.InDelta(t, 20*0.065, res.PhysicalLength(), 0.5*0.065)
}

func TestThinner(t *testing.T) {
	t.Parallel()

	in := voxel.NewSet()
	for y := 10; y < 15; y++ {
		for x := 7; x < 28; x++ {
			in.Add(voxel.Voxel{X: x, Y: y})
		}
	}
	out := Thinner{}.Thin(in)
	require.NotEmpty(t, out)
	for v := range out {
		assert.True(t, in.Has(v), "%v outside the object", v)
		assert.Equal(t, 12, v.Y)
	}

	assert.Empty(t, Thinner{}.Thin(voxel.NewSet()))
}
