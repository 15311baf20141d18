package shaping

import (
	"math"
	"time"
)

// ScalingConstant converts profile speeds to axis units per second: a speed of
// 500 covers the full scale in one second.
const ScalingConstant = 500.0

// snapTolerance absorbs float drift so repeated equal steps land on target.
const snapTolerance = 1e-9

// Limiter bounds how far an output may move per unit time.
type Limiter struct {
	Speed         float64
	ResponseSpeed float64
	CenterSnap    float64
}

// MaxDelta returns the largest permitted change over elapsed. When returning
// toward center the bound is scaled by CenterSnap.
func (l Limiter) MaxDelta(elapsed time.Duration, returning bool) float64 {
	if elapsed <= 0 {
		return 0
	}
	d := l.Speed * l.ResponseSpeed * elapsed.Seconds() / ScalingConstant
	if returning {
		d *= l.CenterSnap
	}
	return d
}

// Next moves prev toward target within the bound for elapsed.
func (l Limiter) Next(prev, target float64, elapsed time.Duration) float64 {
	return Step(prev, target, l.MaxDelta(elapsed, Returning(prev, target)))
}

// Step moves prev toward target by at most maxDelta. Once target is within
// one step it is returned exactly.
func Step(prev, target, maxDelta float64) float64 {
	if maxDelta <= 0 || math.IsNaN(maxDelta) {
		return prev
	}
	d := target - prev
	if math.Abs(d) <= maxDelta+snapTolerance {
		return target
	}
	return prev + math.Copysign(maxDelta, d)
}
