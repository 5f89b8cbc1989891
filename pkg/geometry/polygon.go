package geometry

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// SignedArea returns the shoelace area of a closed polygon.
// In image coordinates (y pointing down) a positive area means the
// vertices run clockwise on screen.
func SignedArea(polygon []Point2D) float64 {
	n := len(polygon)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += polygon[i].Cross(polygon[(i+1)%n])
	}
	return sum / 2
}

// Perimeter returns the length of a closed polygon.
func Perimeter(polygon []Point2D) float64 {
	n := len(polygon)
	if n < 2 {
		return 0
	}
	var total float64
	for i := 0; i < n; i++ {
		total += polygon[i].Distance(polygon[(i+1)%n])
	}
	return total
}

// LineIntersection intersects the line p + t*dir with the segment a-b.
// It returns the ray parameter t, the segment parameter u (0 at a, 1 at b)
// and false when the lines are parallel.
func LineIntersection(p, dir, a, b Point2D) (t, u float64, ok bool) {
	seg := b.Sub(a)
	if math.Abs(dir.Cross(seg)) < 1e-10 {
		return 0, 0, false
	}

	// p + t*dir = a + u*seg  =>  [dir -seg] [t u]^T = a - p
	m := mat.NewDense(2, 2, []float64{
		dir.X, -seg.X,
		dir.Y, -seg.Y,
	})
	rhs := mat.NewVecDense(2, []float64{a.X - p.X, a.Y - p.Y})

	var x mat.VecDense
	if err := x.SolveVec(m, rhs); err != nil {
		return 0, 0, false
	}
	return x.AtVec(0), x.AtVec(1), true
}
