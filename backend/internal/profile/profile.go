// Package profile defines the per-game tuning profile that drives input
// shaping, its validation rules and steering-mode presets.
package profile

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
)

// AxisFullRange is the magnitude of a full-scale axis deflection in profile
// units. Deadzone is expressed against it.
const AxisFullRange = 32767

// Accepted ranges for user-editable fields.
const (
	MinDeadzone = 0
	MaxDeadzone = 8000

	MinSpeed = 100
	MaxSpeed = 2000

	MinCurveStrength = 1.0
	MaxCurveStrength = 3.0

	MinResponseSpeed = 0.5
	MaxResponseSpeed = 2.0

	MinCenterSnap = 0.5
	MaxCenterSnap = 2.0

	MinReleaseRate = 0.5
	MaxReleaseRate = 20.0

	MinMouseSensitivity = 0.0001
	MaxMouseSensitivity = 0.1
)

// ErrInvalid is matched by every *ValidationError.
var ErrInvalid = errors.New("invalid profile")

// Action is something a key can be bound to.
type Action string

const (
	SteerLeft  Action = "steer_left"
	SteerRight Action = "steer_right"
	Throttle   Action = "throttle"
	Brake      Action = "brake"
	Clutch     Action = "clutch"
	Handbrake  Action = "handbrake"
	GearUp     Action = "gear_up"
	GearDown   Action = "gear_down"
	Override   Action = "override"
	Exit       Action = "exit"
)

// Actions lists every bindable action.
var Actions = []Action{SteerLeft, SteerRight, Throttle, Brake, Clutch, Handbrake, GearUp, GearDown, Override, Exit}

// DefaultKeyBindings returns a fresh copy of the stock key layout.
func DefaultKeyBindings() map[Action]string {
	return map[Action]string{
		SteerLeft:  "a",
		SteerRight: "d",
		Throttle:   "w",
		Brake:      "s",
		Clutch:     "c",
		Handbrake:  "space",
		GearUp:     "e",
		GearDown:   "q",
		Override:   "f12",
		Exit:       "esc",
	}
}

// Feedback holds the simulated force feedback settings.
type Feedback struct {
	Enabled           bool    `json:"enabled"`
	VibrationStrength float64 `json:"vibration_strength" jsonschema:"minimum=0,maximum=1"`
}

// Assists configures the driving aids applied on top of the shaped inputs.
type Assists struct {
	CounterSteer         bool    `json:"counter_steer"`
	CounterSteerStrength float64 `json:"counter_steer_strength" jsonschema:"minimum=0,maximum=1"`
	AntiSpin             bool    `json:"anti_spin"`
	SpinPrevention       float64 `json:"spin_prevention" jsonschema:"minimum=0,maximum=1"`
}

// Profile is the tuning for one game. It is treated as a value: the control
// loop receives copies and never mutates them.
type Profile struct {
	Name             string            `json:"name" jsonschema:"required"`
	Executable       string            `json:"executable,omitempty"`
	Deadzone         int               `json:"deadzone" jsonschema:"minimum=0,maximum=8000"`
	SteerSpeed       int               `json:"steer_speed" jsonschema:"minimum=100,maximum=2000"`
	ThrottleSpeed    int               `json:"throttle_speed" jsonschema:"minimum=100,maximum=2000"`
	BrakeSpeed       int               `json:"brake_speed" jsonschema:"minimum=100,maximum=2000"`
	CurveStrength    float64           `json:"curve_strength" jsonschema:"minimum=1,maximum=3"`
	ResponseSpeed    float64           `json:"response_speed" jsonschema:"minimum=0.5,maximum=2"`
	CenterSnap       float64           `json:"center_snap" jsonschema:"minimum=0.5,maximum=2"`
	SteeringMode     Mode              `json:"steering_mode,omitempty" jsonschema:"enum=,enum=Custom,enum=Comfort,enum=Sport,enum=Race"`
	ReleaseRate      float64           `json:"release_rate" jsonschema:"minimum=0.5,maximum=20"`
	MouseSteering    bool              `json:"mouse_steering"`
	MouseSensitivity float64           `json:"mouse_sensitivity" jsonschema:"minimum=0.0001,maximum=0.1"`
	Feedback         Feedback          `json:"feedback"`
	Assists          Assists           `json:"assists"`
	KeyBindings      map[Action]string `json:"key_bindings"`
	Vehicle          string            `json:"vehicle,omitempty"`
}

// DefaultName is the name of the built-in fallback profile.
const DefaultName = "Default"

// Default returns the built-in profile used whenever nothing valid is loaded.
func Default() Profile {
	return Profile{
		Name:             DefaultName,
		Deadzone:         1000,
		SteerSpeed:       500,
		ThrottleSpeed:    700,
		BrakeSpeed:       800,
		CurveStrength:    1.5,
		ResponseSpeed:    1.0,
		CenterSnap:       1.0,
		SteeringMode:     ModeCustom,
		ReleaseRate:      4.0,
		MouseSensitivity: 0.002,
		Feedback: Feedback{
			VibrationStrength: 0.5,
		},
		Assists: Assists{
			CounterSteerStrength: 0.5,
			SpinPrevention:       0.6,
		},
		KeyBindings: DefaultKeyBindings(),
	}
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	p.KeyBindings = lo.Assign(p.KeyBindings)
	return p
}

// DeadzoneFraction is the deadzone as a fraction of full deflection.
func (p Profile) DeadzoneFraction() float64 {
	return float64(p.Deadzone) / AxisFullRange
}

// Effective returns the profile with its steering-mode preset applied.
func (p Profile) Effective() Profile {
	out := p.Clone()
	if pr, ok := modePresets[p.SteeringMode]; ok {
		out.CurveStrength = pr.CurveStrength
		out.ResponseSpeed = pr.ResponseSpeed
		out.CenterSnap = pr.CenterSnap
	}
	return out
}

// ValidationError lists every field of a profile that failed validation.
type ValidationError struct {
	Profile string
	err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("profile %q: %v", e.Profile, e.err)
}

// Fields returns one error per rejected field.
func (e *ValidationError) Fields() []error {
	return multierr.Errors(e.err)
}

// Is makes errors.Is(err, ErrInvalid) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func (e *ValidationError) Unwrap() error { return e.err }

func checkInt(field string, v, low, high int) error {
	if v < low || v > high {
		return errors.Errorf("%s %d out of range [%d, %d]", field, v, low, high)
	}
	return nil
}

func checkFloat(field string, v, low, high float64) error {
	// NaN fails too
	if !(v >= low && v <= high) {
		return errors.Errorf("%s %g out of range [%g, %g]", field, v, low, high)
	}
	return nil
}

// Validate checks every field against its accepted range.
func (p Profile) Validate() error {
	var err error
	if p.Name == "" {
		err = multierr.Append(err, errors.New("name is required"))
	}
	err = multierr.Combine(err,
		checkInt("deadzone", p.Deadzone, MinDeadzone, MaxDeadzone),
		checkInt("steer_speed", p.SteerSpeed, MinSpeed, MaxSpeed),
		checkInt("throttle_speed", p.ThrottleSpeed, MinSpeed, MaxSpeed),
		checkInt("brake_speed", p.BrakeSpeed, MinSpeed, MaxSpeed),
		checkFloat("curve_strength", p.CurveStrength, MinCurveStrength, MaxCurveStrength),
		checkFloat("response_speed", p.ResponseSpeed, MinResponseSpeed, MaxResponseSpeed),
		checkFloat("center_snap", p.CenterSnap, MinCenterSnap, MaxCenterSnap),
		checkFloat("release_rate", p.ReleaseRate, MinReleaseRate, MaxReleaseRate),
		checkFloat("mouse_sensitivity", p.MouseSensitivity, MinMouseSensitivity, MaxMouseSensitivity),
		checkFloat("feedback.vibration_strength", p.Feedback.VibrationStrength, 0, 1),
		checkFloat("assists.counter_steer_strength", p.Assists.CounterSteerStrength, 0, 1),
		checkFloat("assists.spin_prevention", p.Assists.SpinPrevention, 0, 1),
	)
	if _, ok := modePresets[p.SteeringMode]; !ok && p.SteeringMode != "" && p.SteeringMode != ModeCustom {
		err = multierr.Append(err, errors.Errorf("steering_mode %q is not one of %v", p.SteeringMode, Modes))
	}
	err = multierr.Append(err, validateBindings(p.KeyBindings))
	if err != nil {
		return &ValidationError{Profile: p.Name, err: err}
	}
	return nil
}

func validateBindings(b map[Action]string) error {
	var err error
	for action, key := range b {
		if !lo.Contains(Actions, action) {
			err = multierr.Append(err, errors.Errorf("key_bindings: unknown action %q", action))
			continue
		}
		if key == "" {
			err = multierr.Append(err, errors.Errorf("key_bindings: %s has no key", action))
		}
	}
	for _, key := range lo.FindDuplicates(lo.Values(b)) {
		if key == "" {
			continue
		}
		err = multierr.Append(err, errors.Errorf("key_bindings: key %q bound more than once", key))
	}
	return err
}
