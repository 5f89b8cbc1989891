package segment

import (
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"

	"cell-spine/internal/voxel"
)

// Thinner skeletonizes with OpenCV's ximgproc Zhang–Suen thinning. It
// needs an OpenCV build with the contrib modules.
type Thinner struct{}

// Thin implements thinning.Thinner.
func (Thinner) Thin(foreground voxel.Set) voxel.Set {
	out := voxel.NewSet()
	if len(foreground) == 0 {
		return out
	}
	first, _ := foreground.First()
	minX, minY, maxX, maxY := first.X, first.Y, first.X, first.Y
	for v := range foreground {
		minX, maxX = min(minX, v.X), max(maxX, v.X)
		minY, maxY = min(minY, v.Y), max(maxY, v.Y)
	}

	// One pixel of background around the object.
	ox, oy := minX-1, minY-1
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), maxY-minY+3, maxX-minX+3, gocv.MatTypeCV8UC1)
	defer src.Close()
	for v := range foreground {
		src.SetUCharAt(v.Y-oy, v.X-ox, 255)
	}

	dst := gocv.NewMat()
	defer dst.Close()
	contrib.Thinning(src, &dst, contrib.ThinningZhangSuen)

	for y := 0; y < dst.Rows(); y++ {
		for x := 0; x < dst.Cols(); x++ {
			if dst.GetUCharAt(y, x) > 0 {
				out.Add(voxel.Voxel{X: x + ox, Y: y + oy, Z: first.Z})
			}
		}
	}
	return out
}
