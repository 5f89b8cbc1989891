// Package segment labels a binary or gray mask image into per-object
// regions using OpenCV.
package segment

import (
	"errors"
	"image"
	"sort"

	"gocv.io/x/gocv"

	"cell-spine/internal/region"
	"cell-spine/internal/voxel"
)

// Params controls object labelling.
type Params struct {
	Threshold   float32 // gray level above which a pixel is foreground
	Otsu        bool    // pick the threshold automatically
	OpenKernel  int     // side of the opening kernel, 0 to skip
	MinArea     int     // smallest object kept, in pixels
	MaxArea     int     // largest object kept, 0 for no limit
	DropBorders bool    // discard objects touching the image border
	PixelSize   float64 // calibration applied to every region
}

// DefaultParams returns parameters suited to binary masks.
func DefaultParams() Params {
	return Params{
		Threshold:   127,
		OpenKernel:  0,
		MinArea:     20,
		DropBorders: true,
		PixelSize:   1,
	}
}

// WithPixelSize returns a copy with a calibration.
func (p Params) WithPixelSize(size float64) Params {
	p.PixelSize = size
	return p
}

// WithAreaRange returns a copy with a custom object size range.
func (p Params) WithAreaRange(minArea, maxArea int) Params {
	p.MinArea = minArea
	p.MaxArea = maxArea
	return p
}

// Objects thresholds img and returns one mask per 8-connected object,
// ordered by label.
func Objects(img image.Image, params Params) ([]*region.Mask, error) {
	gray := GrayMat(img)
	defer gray.Close()

	mask := gocv.NewMat()
	defer mask.Close()
	flags := gocv.ThresholdBinary
	if params.Otsu {
		flags |= gocv.ThresholdOtsu
	}
	gocv.Threshold(gray, &mask, params.Threshold, 255, flags)

	if params.OpenKernel > 1 {
		kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{params.OpenKernel, params.OpenKernel})
		gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, kernel)
		kernel.Close()
	}

	labels := gocv.NewMat()
	defer labels.Close()
	n := gocv.ConnectedComponents(mask, &labels)
	if n < 1 {
		return nil, errors.New("connected components failed")
	}

	rows, cols := labels.Rows(), labels.Cols()
	sets := make(map[int]voxel.Set)
	touching := make(map[int]bool)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			l := int(labels.GetIntAt(y, x))
			if l == 0 {
				continue
			}
			s, ok := sets[l]
			if !ok {
				s = voxel.NewSet()
				sets[l] = s
			}
			s.Add(voxel.Voxel{X: x, Y: y})
			if x == 0 || y == 0 || x == cols-1 || y == rows-1 {
				touching[l] = true
			}
		}
	}

	ids := make([]int, 0, len(sets))
	for l := range sets {
		ids = append(ids, l)
	}
	sort.Ints(ids)

	var out []*region.Mask
	for _, l := range ids {
		area := len(sets[l])
		if area < params.MinArea || (params.MaxArea > 0 && area > params.MaxArea) {
			continue
		}
		if params.DropBorders && touching[l] {
			continue
		}
		out = append(out, region.NewMask(l, sets[l]).WithScale(params.PixelSize, 1))
	}
	return out, nil
}

// GrayMat converts a Go image to a single-channel 8-bit Mat.
func GrayMat(img image.Image) gocv.Mat {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			lum := (19595*r + 38470*g + 7471*b + 1<<15) >> 24
			mat.SetUCharAt(y, x, uint8(lum))
		}
	}
	return mat
}
