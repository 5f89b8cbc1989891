// Package image loads mask images and their spatial calibration.
package image

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/tiff"

	"cell-spine/internal/voxel"
)

// TIFF resolution units.
const (
	resUnitNone = 1
	resUnitInch = 2
	resUnitCM   = 3
)

// Frame is one loaded mask or label image.
type Frame struct {
	Path  string
	Image image.Image
	// PixelSize is the calibrated pixel edge length in micrometres, or 1
	// when the file carries no resolution.
	PixelSize  float64
	Calibrated bool
}

// Load reads an image file. TIFF resolution tags, when present, set the
// pixel size.
func Load(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	f := &Frame{Path: path, Image: img, PixelSize: 1}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".tiff" || ext == ".tif" {
		if size, err := tiffPixelSize(path); err == nil {
			f.PixelSize = size
			f.Calibrated = true
		}
	}
	return f, nil
}

// Width returns the image width in pixels.
func (f *Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (f *Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Foreground returns every pixel whose gray level exceeds threshold,
// relative to the image origin.
func (f *Frame) Foreground(threshold uint8) voxel.Set {
	out := voxel.NewSet()
	if f.Image == nil {
		return out
	}
	b := f.Image.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.GrayModel.Convert(f.Image.At(x, y)).(color.Gray).Y > threshold {
				out.Add(voxel.Voxel{X: x - b.Min.X, Y: y - b.Min.Y})
			}
		}
	}
	return out
}

// tiffPixelSize reads the first IFD's resolution tags and converts them to
// micrometres per pixel.
func tiffPixelSize(path string) (float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	header := make([]byte, 8)
	if _, err := file.Read(header); err != nil {
		return 0, err
	}

	var byteOrder binary.ByteOrder
	switch {
	case header[0] == 'I' && header[1] == 'I':
		byteOrder = binary.LittleEndian
	case header[0] == 'M' && header[1] == 'M':
		byteOrder = binary.BigEndian
	default:
		return 0, fmt.Errorf("not a valid TIFF file")
	}

	if _, err := file.Seek(int64(byteOrder.Uint32(header[4:8])), 0); err != nil {
		return 0, err
	}
	var numEntries uint16
	if err := binary.Read(file, byteOrder, &numEntries); err != nil {
		return 0, err
	}

	var xRes, yRes float64
	var resUnit uint16 = resUnitInch
	for i := uint16(0); i < numEntries; i++ {
		entry := make([]byte, 12)
		if _, err := file.Read(entry); err != nil {
			return 0, err
		}
		tag := byteOrder.Uint16(entry[0:2])
		fieldType := byteOrder.Uint16(entry[2:4])
		value := entry[8:12]

		switch tag {
		case 282: // XResolution
			if fieldType == 5 {
				xRes = readRational(file, int64(byteOrder.Uint32(value)), byteOrder)
			}
		case 283: // YResolution
			if fieldType == 5 {
				yRes = readRational(file, int64(byteOrder.Uint32(value)), byteOrder)
			}
		case 296: // ResolutionUnit, a SHORT stored in the first half
			if fieldType == 3 {
				resUnit = byteOrder.Uint16(value[0:2])
			}
		}
	}

	res := xRes
	if res == 0 {
		res = yRes
	}
	if res == 0 {
		return 0, fmt.Errorf("no resolution tags found")
	}

	switch resUnit {
	case resUnitCM:
		return 1e4 / res, nil
	case resUnitInch:
		return 25400 / res, nil
	case resUnitNone:
		return 0, fmt.Errorf("resolution has no unit")
	}
	return 0, fmt.Errorf("unknown resolution unit %d", resUnit)
}

func readRational(file *os.File, offset int64, byteOrder binary.ByteOrder) float64 {
	currentPos, _ := file.Seek(0, 1)
	defer file.Seek(currentPos, 0)

	file.Seek(offset, 0)
	var num, denom uint32
	binary.Read(file, byteOrder, &num)
	binary.Read(file, byteOrder, &denom)

	if denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}

// SupportedFormats returns the list of supported image formats.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
