package shaping

import (
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/soar/DriveAssist/backend/internal/input"
	"github.com/soar/DriveAssist/backend/internal/profile"
)

// AxisState is the pipeline's view of one axis.
type AxisState struct {
	Raw        float64
	Shaped     float64
	Output     float64
	LastUpdate time.Time
}

// Pipeline shapes and rate limits every axis once per tick. It owns its
// AxisStates and is not safe for concurrent use.
type Pipeline struct {
	axes   [input.NumAxes]AxisState
	logger *zap.SugaredLogger
	faults rate.Sometimes

	shape func(axis input.Axis, x float64, s Shaper) float64
}

// NewPipeline returns a pipeline with every axis at neutral.
func NewPipeline(logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		logger: logger,
		faults: rate.Sometimes{Interval: time.Second},
		shape: func(_ input.Axis, x float64, s Shaper) float64 {
			return s.Shape(x)
		},
	}
}

// Advance folds raw into the pipeline at now and returns the new outputs.
// p should already be Effective. An axis whose computation fails or goes
// non-finite keeps its previous output.
func (pl *Pipeline) Advance(raw input.Raw, p profile.Profile, now time.Time) [input.NumAxes]float64 {
	shaper := NewShaper(p)

	var targets [input.NumAxes]float64
	ok := [input.NumAxes]bool{}
	for a := input.Axis(0); a < input.NumAxes; a++ {
		pl.axes[a].Raw = raw.Axes[a]
		targets[a], ok[a] = pl.safeShape(a, raw.Axes[a], shaper)
	}
	if ok[input.Steering] && ok[input.Throttle] {
		targets[input.Steering], targets[input.Throttle] = ApplyAssists(
			targets[input.Steering], targets[input.Throttle], p.Assists)
	}

	var out [input.NumAxes]float64
	for a := input.Axis(0); a < input.NumAxes; a++ {
		st := &pl.axes[a]
		if ok[a] {
			st.Shaped = targets[a]
			var elapsed time.Duration
			if !st.LastUpdate.IsZero() {
				elapsed = now.Sub(st.LastUpdate)
			}
			next := limiterFor(a, p).Next(st.Output, targets[a], elapsed)
			low, high := a.Bounds()
			st.Output = math.Max(low, math.Min(high, next))
		}
		st.LastUpdate = now
		out[a] = st.Output
	}
	return out
}

func (pl *Pipeline) safeShape(a input.Axis, x float64, s Shaper) (v float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			pl.faults.Do(func() {
				pl.logger.Errorw("axis shaping panicked, holding previous output", "axis", a, "panic", r)
			})
			v, ok = 0, false
		}
	}()
	v = pl.shape(a, x, s)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		pl.faults.Do(func() {
			pl.logger.Warnw("non-finite shaped value, holding previous output", "axis", a, "raw", x)
		})
		return 0, false
	}
	return v, true
}

// State returns a copy of the state of axis a.
func (pl *Pipeline) State(a input.Axis) AxisState {
	return pl.axes[a]
}

// Outputs returns the current outputs without advancing.
func (pl *Pipeline) Outputs() [input.NumAxes]float64 {
	var out [input.NumAxes]float64
	for a := range pl.axes {
		out[a] = pl.axes[a].Output
	}
	return out
}

// Reset returns every axis to neutral.
func (pl *Pipeline) Reset() {
	pl.axes = [input.NumAxes]AxisState{}
}

func limiterFor(a input.Axis, p profile.Profile) Limiter {
	speed := p.SteerSpeed
	switch a {
	case input.Throttle, input.Clutch:
		speed = p.ThrottleSpeed
	case input.Brake:
		speed = p.BrakeSpeed
	}
	return Limiter{
		Speed:         float64(speed),
		ResponseSpeed: p.ResponseSpeed,
		CenterSnap:    p.CenterSnap,
	}
}
