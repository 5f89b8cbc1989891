// Package params provides JSON parameter files that override the built-in
// construction and segmentation defaults.
package params

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cell-spine/internal/spine"
)

const paramsFile = "params.json"

// Keys understood by Spine and by the segmentation stage.
const (
	KeySmoothSigma       = "spine.contour_smooth_sigma"
	KeyResampleStep      = "spine.contour_resample_step"
	KeyAlignTolerance    = "spine.align_tolerance"
	KeyPushLimit         = "spine.push_limit"
	KeySnapLimit         = "spine.snap_limit"
	KeyPersistenceRadius = "spine.persistence_radius"

	KeyThreshold   = "segment.threshold"
	KeyOtsu        = "segment.otsu"
	KeyOpenKernel  = "segment.open_kernel"
	KeyMinArea     = "segment.min_area"
	KeyMaxArea     = "segment.max_area"
	KeyDropBorders = "segment.drop_borders"
)

// Params stores parameters as a key-value map.
type Params struct {
	mu     sync.RWMutex
	values map[string]interface{}
	path   string
}

// New returns an empty parameter set that saves to path.
func New(path string) *Params {
	return &Params{values: make(map[string]interface{}), path: path}
}

// DefaultPath is ~/.config/cell-spine/params.json.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "cell-spine", paramsFile)
}

// Load reads parameters from path. A missing file yields an empty set; a
// malformed one is an error.
func Load(path string) (*Params, error) {
	p := New(path)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read params: %w", err)
	}
	if err := json.Unmarshal(data, &p.values); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return p, nil
}

// Save writes parameters to disk.
func (p *Params) Save() error {
	p.mu.RLock()
	data, err := json.MarshalIndent(p.values, "", "  ")
	p.mu.RUnlock()
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.path, data, 0o644)
}

// Has reports whether key is set.
func (p *Params) Has(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.values[key]
	return ok
}

// FloatWithFallback returns a float64 parameter, or fallback if not set.
func (p *Params) FloatWithFallback(key string, fallback float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if v, ok := p.values[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return fallback
}

// SetFloat stores a float64 parameter.
func (p *Params) SetFloat(key string, val float64) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// IntWithFallback returns an integer parameter, or fallback if not set.
func (p *Params) IntWithFallback(key string, fallback int) int {
	return int(p.FloatWithFallback(key, float64(fallback)))
}

// Bool returns a bool parameter, or fallback if not set.
func (p *Params) Bool(key string, fallback bool) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if b, ok := p.values[key].(bool); ok {
		return b
	}
	return fallback
}

// SetBool stores a bool parameter.
func (p *Params) SetBool(key string, val bool) {
	p.mu.Lock()
	p.values[key] = val
	p.mu.Unlock()
}

// Spine applies the stored overrides to base.
func (p *Params) Spine(base spine.Options) spine.Options {
	base.ContourSmoothSigma = p.FloatWithFallback(KeySmoothSigma, base.ContourSmoothSigma)
	base.ContourResampleStep = p.FloatWithFallback(KeyResampleStep, base.ContourResampleStep)
	base.AlignTolerance = p.FloatWithFallback(KeyAlignTolerance, base.AlignTolerance)
	base.PushLimit = p.IntWithFallback(KeyPushLimit, base.PushLimit)
	base.SnapLimit = p.FloatWithFallback(KeySnapLimit, base.SnapLimit)
	base.PersistenceRadius = p.FloatWithFallback(KeyPersistenceRadius, base.PersistenceRadius)
	return base
}
