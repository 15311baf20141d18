package feedback

import (
	"math"
	"time"

	"github.com/soar/DriveAssist/backend/internal/profile"
)

// Pattern is the kind of vibration requested.
type Pattern string

const (
	PatternNone      Pattern = ""
	PatternRoad      Pattern = "road"
	PatternCollision Pattern = "collision"
)

const (
	roadSteerThreshold = 1000.0 / 32768
	collisionJump      = 5000.0 / 32768
	collisionIntensity = 0.8
	coastDragKMHs      = 2.0
)

// Output is the feedback for one tick.
type Output struct {
	Intensity float64 `json:"intensity"`
	Pattern   Pattern `json:"pattern,omitempty"`
	SpeedKMH  float64 `json:"speed_kmh"`
}

// Intensity returns the raw force intensity in [0, 1] for normalized steering
// in [-1, 1], pedals in [0, 1] and speed in km/h.
func Intensity(v Vehicle, steer, throttle, brake, speedKMH float64) float64 {
	speedFactor := math.Min(speedKMH/100, 1)
	weightTransfer := (throttle - brake) * 0.1 * (1 - v.WeightDistribution)
	i := math.Abs(steer) * v.TireGripFactor * (1 + speedFactor) * (1 + math.Abs(weightTransfer))
	return math.Min(i, 1)
}

// SpeedEstimator integrates pedal positions into an approximate road speed.
type SpeedEstimator struct {
	speed float64
}

// Update advances the estimate by dt and returns the speed in km/h.
func (s *SpeedEstimator) Update(v Vehicle, throttle, brake float64, dt time.Duration) float64 {
	sec := dt.Seconds()
	if sec <= 0 {
		return s.speed
	}
	top := v.Performance.TopSpeedKMH
	accel := 0.0
	if v.Performance.ZeroTo100 > 0 {
		accel = 100 / v.Performance.ZeroTo100
	}
	if top > 0 {
		// less push near top speed
		accel *= math.Max(0, 1-s.speed/top)
	}
	s.speed += throttle*accel*sec - brake*v.Performance.BrakingKMHs*sec
	if throttle == 0 {
		s.speed -= coastDragKMHs * sec
	}
	s.speed = math.Max(0, s.speed)
	if top > 0 {
		s.speed = math.Min(top, s.speed)
	}
	return s.speed
}

// Speed returns the current estimate.
func (s *SpeedEstimator) Speed() float64 { return s.speed }

// Reset stops the car.
func (s *SpeedEstimator) Reset() { s.speed = 0 }

// Synth produces one Output per tick. It is owned by the control loop.
type Synth struct {
	vehicle   Vehicle
	speed     SpeedEstimator
	lastSteer float64
}

// NewSynth creates a synthesizer for v.
func NewSynth(v Vehicle) *Synth {
	return &Synth{vehicle: v}
}

// SetVehicle swaps the vehicle, keeping the current speed.
func (s *Synth) SetVehicle(v Vehicle) {
	s.vehicle = v
}

// Vehicle returns the active vehicle.
func (s *Synth) Vehicle() Vehicle { return s.vehicle }

// Update computes the feedback for the current outputs.
func (s *Synth) Update(steer, throttle, brake float64, settings profile.Feedback, dt time.Duration) Output {
	speed := s.speed.Update(s.vehicle, throttle, brake, dt)
	jump := math.Abs(steer - s.lastSteer)
	s.lastSteer = steer

	out := Output{SpeedKMH: speed}
	if !settings.Enabled {
		return out
	}
	intensity := Intensity(s.vehicle, steer, throttle, brake, speed)
	switch {
	case jump > collisionJump:
		out.Pattern = PatternCollision
		intensity = collisionIntensity
	case math.Abs(steer) > roadSteerThreshold && intensity > 0:
		out.Pattern = PatternRoad
	}
	out.Intensity = intensity * settings.VibrationStrength
	return out
}

// Reset clears speed and steering history.
func (s *Synth) Reset() {
	s.speed.Reset()
	s.lastSteer = 0
}
