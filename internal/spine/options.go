package spine

const (
	// AlignTolerance is the largest |sin| between the two flank vectors
	// (taken from the vertebra to each contour point) for the pair to count
	// as aligned.
	AlignTolerance = 0.2

	// PushLimit caps the distance-minimising pushes made without improvement.
	PushLimit = 20

	// OutOfBoundTolerance is how far beyond a pole (in pixels, along the
	// spine) a point can still be localized.
	OutOfBoundTolerance = 1.0

	// SnapLimit bounds the distance from the last extension vertebra to the
	// contour crossing it is snapped onto.
	SnapLimit = 2.0
)

// Options controls spine construction.
type Options struct {
	ContourSmoothSigma  float64 `json:"contour_smooth_sigma"`
	ContourResampleStep float64 `json:"contour_resample_step"`
	AlignTolerance      float64 `json:"align_tolerance"`
	PushLimit           int     `json:"push_limit"`
	SnapLimit           float64 `json:"snap_limit"`

	// PersistenceRadius is the bandwidth of the direction smoothing kernel.
	// Zero selects half the median local width, but never less than 1.
	PersistenceRadius float64 `json:"persistence_radius"`

	// Logf receives progress lines. Nil keeps the builder silent.
	Logf func(format string, args ...any) `json:"-"`
}

// DefaultOptions returns the tuned construction parameters.
func DefaultOptions() Options {
	return Options{
		ContourSmoothSigma:  1,
		ContourResampleStep: 1,
		AlignTolerance:      AlignTolerance,
		PushLimit:           PushLimit,
		SnapLimit:           SnapLimit,
	}
}

// WithContour returns a copy with a custom contour smoothing bandwidth and
// resampling step.
func (o Options) WithContour(sigma, step float64) Options {
	o.ContourSmoothSigma = sigma
	o.ContourResampleStep = step
	return o
}

// WithPersistenceRadius returns a copy with a fixed direction smoothing
// bandwidth.
func (o Options) WithPersistenceRadius(r float64) Options {
	o.PersistenceRadius = r
	return o
}

// WithLogger returns a copy that reports progress through logf.
func (o Options) WithLogger(logf func(format string, args ...any)) Options {
	o.Logf = logf
	return o
}

func (o Options) logf(format string, args ...any) {
	if o.Logf != nil {
		o.Logf("[Spine] "+format, args...)
	}
}

// normalized fills zero fields with defaults.
func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.ContourResampleStep <= 0 {
		o.ContourResampleStep = d.ContourResampleStep
	}
	if o.AlignTolerance <= 0 {
		o.AlignTolerance = d.AlignTolerance
	}
	if o.PushLimit <= 0 {
		o.PushLimit = d.PushLimit
	}
	if o.SnapLimit <= 0 {
		o.SnapLimit = d.SnapLimit
	}
	return o
}
