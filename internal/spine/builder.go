package spine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"cell-spine/internal/contour"
	"cell-spine/internal/graph"
	"cell-spine/internal/region"
	"cell-spine/internal/thinning"
	"cell-spine/internal/voxel"
	"cell-spine/pkg/geometry"
)

// Builder turns regions into spines.
type Builder struct {
	thinner thinning.Thinner
	opts    Options
}

// NewBuilder returns a builder using thinner for the raw skeleton. A nil
// thinner selects Zhang–Suen thinning.
func NewBuilder(thinner thinning.Thinner, opts Options) *Builder {
	if thinner == nil {
		thinner = thinning.ZhangSuen{}
	}
	return &Builder{thinner: thinner, opts: opts.normalized()}
}

// Options returns the builder's effective options.
func (b *Builder) Options() Options { return b.opts }

// Build computes the spine of one region.
func (b *Builder) Build(r region.Region) (*Result, error) {
	if !r.Is2D() {
		return nil, fmt.Errorf("%w: region spans several planes", ErrInvalidObject)
	}

	cleaned, err := graph.CleanContour(r.Contour())
	if err != nil {
		return nil, fmt.Errorf("cleaning contour: %w", err)
	}
	ring, err := contour.Build(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidObject, err)
	}
	ring.Smooth(b.opts.ContourSmoothSigma)
	ring.Resample(b.opts.ContourResampleStep)
	circular := ring.Points()
	if len(circular) < 3 {
		return nil, fmt.Errorf("%w: contour has %d points", ErrInvalidObject, len(circular))
	}

	skeleton, err := graph.CleanSkeleton(b.thinner.Thin(r.Voxels()))
	switch {
	case errors.Is(err, graph.ErrEmptySkeleton):
		skeleton = []voxel.Voxel{nearestVoxel(r.Voxels(), r.Bounds().Center())}
	case err != nil:
		return nil, fmt.Errorf("cleaning skeleton: %w", err)
	}

	sb := &spineBuild{
		region:   r,
		ps:       &pairSearch{pts: circular, opts: b.opts},
		opts:     b.opts,
		skeleton: voxel.Points(skeleton),
	}
	sp, err := sb.run()
	if err != nil {
		return nil, err
	}

	res := &Result{
		Spine:    sp,
		Contour:  cleaned,
		Circular: circular,
		Bounds:   r.Bounds(),
	}
	res.ScaleXY, _ = r.Scale()
	if m, ok := r.(*region.Mask); ok {
		res.Label = m.Label
	}
	b.opts.logf("object %d: %d vertebrae, length %.2f px", res.Label, len(sp), sp.Length())
	return res, nil
}

// BuildAll builds the spines of independent regions concurrently. Failed
// objects leave a nil result and their error at the same index.
func (b *Builder) BuildAll(regions []region.Region) ([]*Result, []error) {
	results := make([]*Result, len(regions))
	errs := make([]error, len(regions))
	var wg sync.WaitGroup

	for i := range regions {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = b.Build(regions[idx])
			if errs[idx] != nil {
				b.opts.logf("object %d failed: %v", idx, errs[idx])
			}
		}(i)
	}

	wg.Wait()
	return results, errs
}

func nearestVoxel(s voxel.Set, p geometry.Point2D) voxel.Voxel {
	var best voxel.Voxel
	bestDist := math.Inf(1)
	for _, v := range s.Sorted() {
		if d := v.Point().DistanceSq(p); d < bestDist {
			best, bestDist = v, d
		}
	}
	return best
}

// spineBuild holds the state of one spine construction.
type spineBuild struct {
	region   region.Region
	ps       *pairSearch
	opts     Options
	skeleton []geometry.Point2D
}

func (sb *spineBuild) run() (Spine, error) {
	flanks, err := sb.mapToContourPairs()
	if err != nil {
		return nil, err
	}

	var verts Spine
	var kept []flank
	for _, f := range flanks {
		v := Vertebra{Point: sb.ps.mid(f), Direction: sb.ps.vector(f)}
		if len(verts) > 0 && v.Point.Distance(verts[len(verts)-1].Point) < tieEps {
			continue
		}
		verts = append(verts, v)
		kept = append(kept, f)
	}
	verts.accumulate()

	radius := sb.persistenceRadius(verts)
	smoothed := smoothDirections(orientDirections(verts), radius)

	head := sb.extend(smoothed[0], kept[0], sb.outward(smoothed, true))
	tail := sb.extend(smoothed[len(smoothed)-1], kept[len(kept)-1], sb.outward(smoothed, false))

	sp := make(Spine, 0, len(head)+len(verts)+len(tail))
	for i := len(head) - 1; i >= 0; i-- {
		sp = append(sp, head[i])
	}
	sp = append(sp, verts...)
	sp = append(sp, tail...)
	sp = dedupe(sp)
	sp.accumulate()

	sp = smoothDirections(orientDirections(sp), radius)
	sb.opts.logf("%d skeleton points, %d vertebrae, persistence radius %.2f", len(sb.skeleton), len(sp), radius)
	return sp, nil
}

// mapToContourPairs finds the flank pair of every skeleton point, starting
// at the point nearest the bounds centre and propagating both ways.
func (sb *spineBuild) mapToContourPairs() ([]flank, error) {
	n := len(sb.skeleton)
	flanks := make([]flank, n)

	if n <= 2 {
		axis := sb.dominantAxis()
		for i, p := range sb.skeleton {
			f, ok := sb.ps.axisFlank(p, axis)
			if !ok {
				return nil, fmt.Errorf("%w: no contour across (%.1f,%.1f)", ErrInvalidObject, p.X, p.Y)
			}
			flanks[i] = f
		}
		return flanks, nil
	}

	center := sb.region.Bounds().Center()
	c, best := 0, math.Inf(1)
	for i, p := range sb.skeleton {
		if d := p.DistanceSq(center); d < best {
			c, best = i, d
		}
	}

	seed, ok := sb.ps.initial(sb.skeleton[c])
	if !ok {
		return nil, fmt.Errorf("%w: no opposite contour points at the centre", ErrInvalidObject)
	}
	if flanks[c], ok = sb.ps.find(sb.skeleton[c], seed, geometry.Point2D{}); !ok {
		return nil, fmt.Errorf("%w: centre pair search failed", ErrInvalidObject)
	}

	for _, dir := range [2]int{1, -1} {
		for i := c + dir; i >= 0 && i < n; i += dir {
			prev := flanks[i-dir]
			f, ok := sb.ps.find(sb.skeleton[i], prev, sb.ps.vector(prev))
			if !ok {
				p := sb.skeleton[i]
				return nil, fmt.Errorf("%w: pair search failed at (%.1f,%.1f)", ErrInvalidObject, p.X, p.Y)
			}
			flanks[i] = f
		}
	}
	return flanks, nil
}

// dominantAxis is the unit axis along the longer side of the bounds.
func (sb *spineBuild) dominantAxis() geometry.Point2D {
	bounds := sb.region.Bounds()
	if bounds.Width >= bounds.Height {
		return geometry.Point2D{X: 1}
	}
	return geometry.Point2D{Y: 1}
}

// persistenceRadius is the configured radius, or half the median width
// (at least one pixel).
func (sb *spineBuild) persistenceRadius(verts Spine) float64 {
	if sb.opts.PersistenceRadius > 0 {
		return sb.opts.PersistenceRadius
	}
	norms := make([]float64, len(verts))
	for i, v := range verts {
		norms[i] = v.Direction.Norm()
	}
	sort.Float64s(norms)
	return math.Max(1, Median(norms)/2)
}

// outward returns the unit extension direction at a pole: the
// perpendicular of the smoothed width vector, pointing away from the rest
// of the spine.
func (sb *spineBuild) outward(verts Spine, first bool) geometry.Point2D {
	end, inner := len(verts)-1, len(verts)-2
	if first {
		end, inner = 0, 1
	}
	t := verts[end].Direction.Normalize().Perp()

	var ref geometry.Point2D
	if len(verts) >= 2 {
		ref = verts[end].Point.Sub(verts[inner].Point)
	}
	if ref.Norm() < tieEps {
		ref = sb.dominantAxis()
		if first {
			ref = ref.Scale(-1)
		}
	}
	if t.IsZero() {
		t = ref.Normalize()
	}
	if t.Dot(ref) < 0 {
		t = t.Scale(-1)
	}
	return t
}

func (sb *spineBuild) inside(p geometry.Point2D) bool {
	q := geometry.Round(p)
	return sb.region.Contains(voxel.Voxel{X: q.X, Y: q.Y})
}

// extend steps from a pole along t until the next step would leave the
// mask, re-locating the flank pair at every step, then snaps the last
// vertebra onto the chord of its flank pair or the contour. The returned vertebrae are ordered outward.
func (sb *spineBuild) extend(pole Vertebra, seed flank, t geometry.Point2D) []Vertebra {
	var out []Vertebra
	cur, f := pole.Point, seed
	for k := 0; k < len(sb.ps.pts); k++ {
		next := cur.Add(t)
		if !sb.inside(next) {
			break
		}
		if nf, ok := sb.ps.find(next, f, sb.ps.vector(f)); ok {
			f = nf
		}
		out = append(out, Vertebra{Point: next, Direction: sb.ps.vector(f)})
		cur = next
	}

	hit, ok := sb.ps.snap(cur, t, f, sb.opts.SnapLimit)
	if !ok {
		return out
	}
	switch {
	case len(out) >= 2:
		out[len(out)-1] = Vertebra{Point: hit, Direction: out[len(out)-2].Direction}
	case len(out) == 1:
		out[0] = Vertebra{Point: hit, Direction: pole.Direction}
	case hit.Distance(pole.Point) > tieEps:
		out = append(out, Vertebra{Point: hit, Direction: pole.Direction})
	}
	return out
}

// dedupe drops vertebrae coinciding with their predecessor.
func dedupe(sp Spine) Spine {
	out := sp[:0]
	for _, v := range sp {
		if len(out) > 0 && v.Point.Distance(out[len(out)-1].Point) < tieEps {
			continue
		}
		out = append(out, v)
	}
	return out
}

// orientDirections flips width vectors so that they point to the right of
// the local spine tangent (cross(tangent, direction) > 0).
func orientDirections(sp Spine) Spine {
	out := make(Spine, len(sp))
	copy(out, sp)
	if len(out) < 2 {
		return out
	}
	for i := range out {
		lo, hi := max(i-1, 0), min(i+1, len(out)-1)
		tangent := out[hi].Point.Sub(out[lo].Point)
		if tangent.Cross(out[i].Direction) < 0 {
			out[i].Direction = out[i].Direction.Scale(-1)
		}
	}
	return out
}

// smoothDirections averages unit width vectors with a Gaussian kernel over
// curvilinear distance, walking outward from each vertebra until the
// weight becomes negligible. Each vertebra keeps its own width.
func smoothDirections(sp Spine, sigma float64) Spine {
	out := make(Spine, len(sp))
	copy(out, sp)
	if sigma <= 0 || len(sp) < 2 {
		return out
	}
	units := make([]geometry.Point2D, len(sp))
	for i, v := range sp {
		units[i] = v.Direction.Normalize()
	}
	twoSigma2 := 2 * sigma * sigma

	for i := range sp {
		sum := units[i]
		for _, dir := range [2]int{1, -1} {
			for j := i + dir; j >= 0 && j < len(sp); j += dir {
				d := sp[j].Distance - sp[i].Distance
				w := math.Exp(-d * d / twoSigma2)
				if w < contour.SmoothWeightCutoff {
					break
				}
				u := units[j]
				if u.Dot(units[i]) < 0 {
					u = u.Scale(-1)
				}
				sum = sum.Add(u.Scale(w))
			}
		}
		if sum.IsZero() {
			continue
		}
		out[i].Direction = sum.Normalize().Scale(sp[i].Direction.Norm())
	}
	return out
}
