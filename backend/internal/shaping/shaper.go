// Package shaping turns raw normalized axis values into rate-limited outputs:
// deadzone, response curve, center snap and per-tick speed bounds.
package shaping

import (
	"math"

	"github.com/soar/DriveAssist/backend/internal/profile"
)

// Shaper applies a deadzone and a response curve to one axis value.
type Shaper struct {
	// Threshold is the deadzone as a fraction of full scale.
	Threshold float64
	// Curve is the response exponent, 1 is linear.
	Curve float64
}

// NewShaper builds a shaper from p. p should already be Effective.
func NewShaper(p profile.Profile) Shaper {
	return Shaper{Threshold: p.DeadzoneFraction(), Curve: p.CurveStrength}
}

// Shape maps x in [-1, 1] to a shaped value in the same range. Values inside
// the deadzone are exactly zero; the rest is rescaled so the output still
// starts at zero on the deadzone edge.
func (s Shaper) Shape(x float64) float64 {
	return Curve(Deadzone(x, s.Threshold), s.Curve)
}

// Deadzone zeroes |x| <= threshold and rescales the remainder to [0, 1].
func Deadzone(x, threshold float64) float64 {
	ax := math.Abs(x)
	if ax <= threshold {
		return 0
	}
	if threshold <= 0 {
		return x
	}
	if threshold >= 1 {
		return 0
	}
	v := math.Min(1, (ax-threshold)/(1-threshold))
	return math.Copysign(v, x)
}

// Curve returns sign(x)*|x|^strength.
func Curve(x, strength float64) float64 {
	if x == 0 {
		return 0
	}
	if strength == 1 {
		return x
	}
	return math.Copysign(math.Pow(math.Abs(x), strength), x)
}

// Returning reports whether moving from current to target heads toward center.
func Returning(current, target float64) bool {
	return math.Abs(target) < math.Abs(current) || target*current < 0
}
