package control

import (
	"math"

	"github.com/soar/DriveAssist/backend/internal/feedback"
	"github.com/soar/DriveAssist/backend/internal/input"
)

// Axes holds one value per driving axis.
type Axes struct {
	Steering float64 `json:"steering"`
	Throttle float64 `json:"throttle"`
	Brake    float64 `json:"brake"`
	Clutch   float64 `json:"clutch"`
}

func axesFrom(v [input.NumAxes]float64) Axes {
	return Axes{
		Steering: v[input.Steering],
		Throttle: v[input.Throttle],
		Brake:    v[input.Brake],
		Clutch:   v[input.Clutch],
	}
}

// Buttons holds the digital outputs.
type Buttons struct {
	Handbrake bool `json:"handbrake"`
	GearUp    bool `json:"gearUp"`
	GearDown  bool `json:"gearDown"`
}

// Telemetry is the loop state published after every tick.
type Telemetry struct {
	Tick      uint64          `json:"tick"`
	Profile   string          `json:"profile"`
	Vehicle   string          `json:"vehicle"`
	Raw       Axes            `json:"raw"`
	Output    Axes            `json:"output"`
	Buttons   Buttons         `json:"buttons"`
	Feedback  feedback.Output `json:"feedback"`
	Failsafe  bool            `json:"failsafe"`
	Override  bool            `json:"override"`
	Recording bool            `json:"recording"`
	Dropped   uint64          `json:"dropped"`
}

// Delta carries only the parts of Telemetry that changed.
type Delta struct {
	Profile   *string          `json:"profile,omitempty"`
	Vehicle   *string          `json:"vehicle,omitempty"`
	Raw       *Axes            `json:"raw,omitempty"`
	Output    *Axes            `json:"output,omitempty"`
	Buttons   *Buttons         `json:"buttons,omitempty"`
	Feedback  *feedback.Output `json:"feedback,omitempty"`
	Failsafe  *bool            `json:"failsafe,omitempty"`
	Override  *bool            `json:"override,omitempty"`
	Recording *bool            `json:"recording,omitempty"`
	Dropped   *uint64          `json:"dropped,omitempty"`
}

func (d *Delta) IsEmpty() bool {
	return d.Profile == nil &&
		d.Vehicle == nil &&
		d.Raw == nil &&
		d.Output == nil &&
		d.Buttons == nil &&
		d.Feedback == nil &&
		d.Failsafe == nil &&
		d.Override == nil &&
		d.Recording == nil &&
		d.Dropped == nil
}

const analogThreshold = 0.01

func floatEqual(a, b float64) bool {
	return math.Abs(a-b) < analogThreshold
}

func axesEqual(a, b Axes) bool {
	return floatEqual(a.Steering, b.Steering) &&
		floatEqual(a.Throttle, b.Throttle) &&
		floatEqual(a.Brake, b.Brake) &&
		floatEqual(a.Clutch, b.Clutch)
}

// ComputeDelta returns what changed between old and new_. Analog values
// moving less than 0.01 are not reported.
func ComputeDelta(old, new_ Telemetry) *Delta {
	d := &Delta{}

	if old.Profile != new_.Profile {
		d.Profile = &new_.Profile
	}
	if old.Vehicle != new_.Vehicle {
		d.Vehicle = &new_.Vehicle
	}
	if !axesEqual(old.Raw, new_.Raw) {
		d.Raw = &new_.Raw
	}
	if !axesEqual(old.Output, new_.Output) {
		d.Output = &new_.Output
	}
	if old.Buttons != new_.Buttons {
		d.Buttons = &new_.Buttons
	}
	if old.Feedback.Pattern != new_.Feedback.Pattern ||
		!floatEqual(old.Feedback.Intensity, new_.Feedback.Intensity) ||
		math.Abs(old.Feedback.SpeedKMH-new_.Feedback.SpeedKMH) >= 1 {
		d.Feedback = &new_.Feedback
	}
	if old.Failsafe != new_.Failsafe {
		d.Failsafe = &new_.Failsafe
	}
	if old.Override != new_.Override {
		d.Override = &new_.Override
	}
	if old.Recording != new_.Recording {
		d.Recording = &new_.Recording
	}
	if old.Dropped != new_.Dropped {
		d.Dropped = &new_.Dropped
	}

	return d
}

// Apply copies the changed fields onto t. Tick is not carried by deltas.
func (d *Delta) Apply(t *Telemetry) {
	if d.Profile != nil {
		t.Profile = *d.Profile
	}
	if d.Vehicle != nil {
		t.Vehicle = *d.Vehicle
	}
	if d.Raw != nil {
		t.Raw = *d.Raw
	}
	if d.Output != nil {
		t.Output = *d.Output
	}
	if d.Buttons != nil {
		t.Buttons = *d.Buttons
	}
	if d.Feedback != nil {
		t.Feedback = *d.Feedback
	}
	if d.Failsafe != nil {
		t.Failsafe = *d.Failsafe
	}
	if d.Override != nil {
		t.Override = *d.Override
	}
	if d.Recording != nil {
		t.Recording = *d.Recording
	}
	if d.Dropped != nil {
		t.Dropped = *d.Dropped
	}
}
