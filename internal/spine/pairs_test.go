package spine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cell-spine/pkg/geometry"
)

// diamond is a four point contour around the origin.
func diamond() *pairSearch {
	return &pairSearch{
		pts:  []geometry.Point2D{{X: 0, Y: -1}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}},
		opts: DefaultOptions(),
	}
}

func TestMisalignment(t *testing.T) {
	t.Parallel()

	ps := diamond()
	origin := geometry.Point2D{}
	tests := []struct {
		name string
		f    flank
		want float64
	}{
		{name: "opposite", f: flank{0, 2}, want: 0},
		{name: "perpendicular", f: flank{0, 1}, want: 2},
		{name: "same point", f: flank{1, 1}, want: math.Inf(1)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ps.misalignment(origin, tt.f))
		})
	}

	// Slightly off the axis the opposite pair scores |sin|.
	p := geometry.Point2D{X: 0.1}
	got := ps.misalignment(p, flank{0, 2})
	va, vb := geometry.Point2D{X: -0.1, Y: -1}, geometry.Point2D{X: -0.1, Y: 1}
	assert.InDelta(t, math.Abs(va.Cross(vb))/(va.Norm()*vb.Norm()), got, 1e-12)
	assert.Less(t, got, AlignTolerance)
}

func TestInitial(t *testing.T) {
	t.Parallel()

	ps := diamond()
	f, ok := ps.initial(geometry.Point2D{Y: 0.1})
	require.True(t, ok)
	assert.Equal(t, flank{2, 0}, f)

	one := &pairSearch{pts: []geometry.Point2D{{X: 3, Y: 3}}, opts: DefaultOptions()}
	_, ok = one.initial(geometry.Point2D{})
	assert.False(t, ok)
}

// box is a 2 x 10 box sampled every unit, clockwise on screen.
func box() []geometry.Point2D {
	var pts []geometry.Point2D
	for x := 0; x < 10; x++ {
		pts = append(pts, geometry.Point2D{X: float64(x), Y: 0})
	}
	for x := 10; x > 0; x-- {
		pts = append(pts, geometry.Point2D{X: float64(x), Y: 2})
	}
	return pts
}

func TestFindAlignsAndOrients(t *testing.T) {
	t.Parallel()

	ps := &pairSearch{pts: box(), opts: DefaultOptions()}

	p := geometry.Point2D{X: 4, Y: 1}
	seed := flank{a: 2, b: 12} // (2,0) and (8,2)
	f, ok := ps.find(p, seed, geometry.Point2D{Y: -1})
	require.True(t, ok)
	assert.Equal(t, geometry.Point2D{X: 4, Y: 1}, ps.mid(f))
	assert.Equal(t, 2.0, ps.width(f))
	assert.Less(t, ps.vector(f).Y, 0.0, "oriented like the reference")
}

func TestAxisFlank(t *testing.T) {
	t.Parallel()

	ps := diamond()
	f, ok := ps.axisFlank(geometry.Point2D{}, geometry.Point2D{X: 1})
	require.True(t, ok)
	assert.Equal(t, flank{0, 2}, f)
}

func TestGlobalPrefersNarrowAlignedPair(t *testing.T) {
	t.Parallel()

	ps := &pairSearch{pts: box(), opts: DefaultOptions()}

	// (0,0)-(8,2) is better aligned, (4,0)-(4,2) is within tolerance and
	// much narrower.
	f, score := ps.global(geometry.Point2D{X: 4.1, Y: 1})
	assert.Equal(t, flank{4, 16}, f)
	assert.InDelta(t, 2.0, ps.width(f), 1e-12)
	assert.LessOrEqual(t, score, AlignTolerance)
}

func TestSnap(t *testing.T) {
	t.Parallel()

	ps := diamond()
	across := flank{0, 2}

	// The flank chord lies behind the origin, the contour ahead is used.
	hit, ok := ps.snap(geometry.Point2D{X: 0.2}, geometry.Point2D{X: 1}, across, SnapLimit)
	require.True(t, ok)
	assert.InDelta(t, 1.0, hit.X, 1e-12)
	assert.InDelta(t, 0.0, hit.Y, 1e-12)

	// The flank chord ahead wins over the contour further on.
	hit, ok = ps.snap(geometry.Point2D{X: -0.5}, geometry.Point2D{X: 1}, across, SnapLimit)
	require.True(t, ok)
	assert.InDelta(t, 0.0, hit.X, 1e-12)
	assert.InDelta(t, 0.0, hit.Y, 1e-12)

	// Slightly outside, the crossing behind the origin is used.
	hit, ok = ps.snap(geometry.Point2D{X: 1.3}, geometry.Point2D{X: 1}, across, SnapLimit)
	require.True(t, ok)
	assert.InDelta(t, 1.0, hit.X, 1e-12)

	_, ok = ps.snap(geometry.Point2D{X: 10}, geometry.Point2D{X: 1}, across, SnapLimit)
	assert.False(t, ok)
}
