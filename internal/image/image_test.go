package image

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cell-spine/internal/voxel"
	"cell-spine/pkg/geometry"
)

// writeIFD writes a little-endian TIFF header followed by an IFD holding
// only XResolution (num/den) and ResolutionUnit.
func writeIFD(t *testing.T, num, den uint32, unit uint16) string {
	t.Helper()
	var buf bytes.Buffer
	le := binary.LittleEndian
	buf.WriteString("II")
	binary.Write(&buf, le, uint16(42))
	binary.Write(&buf, le, uint32(8))

	// 2 + 2*12 + 4 bytes of IFD, then the rational.
	rationalAt := uint32(8 + 2 + 2*12 + 4)
	binary.Write(&buf, le, uint16(2))
	binary.Write(&buf, le, []uint16{282, 5})
	binary.Write(&buf, le, []uint32{1, rationalAt})
	binary.Write(&buf, le, []uint16{296, 3})
	binary.Write(&buf, le, uint32(1))
	binary.Write(&buf, le, []uint16{unit, 0})
	binary.Write(&buf, le, uint32(0))
	binary.Write(&buf, le, []uint32{num, den})

	path := filepath.Join(t.TempDir(), "frame.tif")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestTIFFPixelSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		num, den uint32
		unit     uint16
		want     float64
		wantErr  bool
	}{
		{name: "per centimetre", num: 15385, den: 1, unit: resUnitCM, want: 1e4 / 15385},
		{name: "per inch", num: 254000, den: 10, unit: resUnitInch, want: 1},
		{name: "no unit", num: 72, den: 1, unit: resUnitNone, wantErr: true},
		{name: "zero", num: 0, den: 1, unit: resUnitCM, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tiffPixelSize(writeIFD(t, tt.num, tt.den, tt.unit))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestLoadPNG(t *testing.T) {
	t.Parallel()

	img := image.NewGray(image.Rect(0, 0, 6, 4))
	img.SetGray(2, 1, color.Gray{Y: 255})
	img.SetGray(3, 1, color.Gray{Y: 200})
	img.SetGray(4, 2, color.Gray{Y: 50})

	path := filepath.Join(t.TempDir(), "mask.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	fr, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, fr.Width())
	assert.Equal(t, 4, fr.Height())
	assert.Equal(t, 1.0, fr.PixelSize)
	assert.False(t, fr.Calibrated)

	fg := fr.Foreground(127)
	assert.Equal(t, []voxel.Voxel{{X: 2, Y: 1}, {X: 3, Y: 1}}, fg.Sorted())
	assert.Len(t, fr.Foreground(0), 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestSupportedFormats(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSupportedFormat("a/b/frame_001.TIF"))
	assert.True(t, IsSupportedFormat("mask.png"))
	assert.False(t, IsSupportedFormat("notes.txt"))
}

func TestOverlay(t *testing.T) {
	t.Parallel()

	base := image.NewGray(image.Rect(0, 0, 4, 4))
	o := NewOverlay(base)
	red := color.RGBA{R: 255, A: 255}
	o.AddPoints([]geometry.Point2D{{X: 1, Y: 2}, {X: 10, Y: 10}}, red, 1)
	o.AddPoints([]geometry.Point2D{{X: 2.5, Y: 0}}, color.RGBA{G: 255, A: 255}, 1)

	out := o.Render()
	require.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds())
	assert.Equal(t, red, out.RGBAAt(1, 2))
	assert.Equal(t, color.RGBA{A: 255}, out.RGBAAt(0, 0), "black base shows through")

	// Half-pixel positions split between two pixels.
	left, right := out.RGBAAt(2, 0), out.RGBAAt(3, 0)
	assert.Greater(t, left.G, uint8(100))
	assert.Greater(t, right.G, uint8(100))
	assert.Less(t, left.G, uint8(255))

	path := filepath.Join(t.TempDir(), "overlay.png")
	require.NoError(t, o.SavePNG(path))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
