// Package device writes axis and button values to a virtual joystick.
package device

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// AxisID is a HID generic desktop usage.
type AxisID uint32

const (
	AxisX      AxisID = 0x30
	AxisY      AxisID = 0x31
	AxisZ      AxisID = 0x32
	AxisRX     AxisID = 0x33
	AxisRY     AxisID = 0x34
	AxisRZ     AxisID = 0x35
	AxisSlider AxisID = 0x36
)

func (a AxisID) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	case AxisRX:
		return "rx"
	case AxisRY:
		return "ry"
	case AxisRZ:
		return "rz"
	case AxisSlider:
		return "slider"
	}
	return "unknown"
}

// Range is the native axis range of a device, inclusive.
type Range struct {
	Min, Max int32
}

// Center is the neutral value of a bidirectional axis.
func (r Range) Center() int32 {
	return r.Min + (r.Max-r.Min+1)/2
}

// Clamp limits v to the range.
func (r Range) Clamp(v int32) int32 {
	return lo.Clamp(v, r.Min, r.Max)
}

// Neutral is the resting value: center for bidirectional axes, Min for
// pedals.
func (r Range) Neutral(unidirectional bool) int32 {
	if unidirectional {
		return r.Min
	}
	return r.Center()
}

// ToDevice converts a normalized value to the device range. Bidirectional
// values are in [-1, 1], unidirectional ones in [0, 1]; anything outside
// (including NaN) is clamped first.
func ToDevice(value float64, unidirectional bool, r Range) int32 {
	if math.IsNaN(value) {
		return r.Neutral(unidirectional)
	}
	span := float64(r.Max - r.Min)
	var v float64
	if unidirectional {
		v = float64(r.Min) + lo.Clamp(value, 0, 1)*span
	} else {
		c := float64(r.Center())
		x := lo.Clamp(value, -1, 1)
		if x < 0 {
			v = c + x*(c-float64(r.Min))
		} else {
			v = c + x*(float64(r.Max)-c)
		}
	}
	return r.Clamp(int32(math.Round(v)))
}

// StickPosition maps a device value onto a gamepad stick deflection in
// [-1, 1]. A pedal's [Min, Max] covers only [0, 1] of the stick, so a released
// pedal rests at the stick center instead of full negative deflection.
func StickPosition(v int32, r Range, pedal bool) float32 {
	v = r.Clamp(v)
	if pedal {
		if r.Max == r.Min {
			return 0
		}
		return float32(v-r.Min) / float32(r.Max-r.Min)
	}
	c := r.Center()
	switch {
	case v > c:
		return float32(v-c) / float32(r.Max-c)
	case v < c:
		return float32(v-c) / float32(c-r.Min)
	}
	return 0
}

// Device is a virtual joystick. Writes may be buffered until Flush.
// Implementations are used from a single goroutine.
type Device interface {
	SetAxis(axis AxisID, value int32) error
	// SetButton sets a 1-based button.
	SetButton(button int, pressed bool) error
	Flush() error
	Range() Range
	Close() error
}

// Backend names a device implementation.
type Backend string

const (
	BackendAuto   Backend = "auto"
	BackendVJoy   Backend = "vjoy"
	BackendUinput Backend = "uinput"
	BackendNull   Backend = "null"
)

// ErrUnsupported is returned for a backend not available on this platform.
var ErrUnsupported = errors.New("device backend not supported on this platform")

// Config selects and parameterizes a backend.
type Config struct {
	Backend Backend
	// ID is the vJoy device number, 1-based.
	ID uint
	// Path is the uinput node.
	Path string
	// Name is the advertised device name.
	Name string
}

// Open creates the configured device.
func Open(cfg Config, logger *zap.SugaredLogger) (Device, error) {
	backend := cfg.Backend
	if backend == "" || backend == BackendAuto {
		backend = nativeBackend
	}
	logger.Infow("opening virtual joystick", "backend", backend, "id", cfg.ID)
	switch backend {
	case BackendNull:
		return NewNull(), nil
	case BackendVJoy:
		return openVJoy(cfg)
	case BackendUinput:
		return openUinput(cfg)
	}
	return nil, errors.Errorf("unknown device backend %q", cfg.Backend)
}
