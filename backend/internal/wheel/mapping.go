// Package wheel maps physical wheels, pedal sets and gamepads onto driving
// axes. The SDL3 reader is only linked in builds tagged "sdl".
package wheel

import (
	"fmt"
	"math"

	"github.com/soar/DriveAssist/backend/internal/input"
)

// AxisMapping defines how a raw SDL axis index maps to a driving axis.
type AxisMapping struct {
	Index  int32
	Target input.Axis
	Invert bool
	// Pedal axes are normalized from RawMin (released) to RawMax (pressed).
	// Wheels differ: some rest at -32768, some at 32767.
	Pedal  bool
	RawMin int16
	RawMax int16
}

// Mapping holds the complete mapping for a specific device type.
type Mapping struct {
	Name string
	Axes []AxisMapping
}

// NormalizeAxis converts a raw axis value (-32768..32767) to -1.0..1.0.
func NormalizeAxis(raw int16) float64 {
	v := float64(raw) / math.MaxInt16
	if v < -1.0 {
		v = -1.0
	}
	return v
}

// NormalizePedal converts a raw pedal value to 0.0..1.0. rawMin may be larger
// than rawMax for pedals that read high when released.
func NormalizePedal(raw, rawMin, rawMax int16) float64 {
	if rawMax == rawMin {
		return 0
	}
	v := (float64(raw) - float64(rawMin)) / (float64(rawMax) - float64(rawMin))
	return math.Min(1, math.Max(0, v))
}

// ButtonKey is the key name reported for joystick button index i, so buttons
// can be bound like keyboard keys (e.g. "gear_up": "joy_5").
func ButtonKey(i int32) string {
	return fmt.Sprintf("joy_%d", i)
}

// Built-in mappings for common wheels and pads.

var logitechWheelMapping = &Mapping{
	Name: "logitech_wheel",
	Axes: []AxisMapping{
		{Index: 0, Target: input.Steering},
		{Index: 1, Target: input.Throttle, Pedal: true, RawMin: 32767, RawMax: -32768},
		{Index: 2, Target: input.Brake, Pedal: true, RawMin: 32767, RawMax: -32768},
		{Index: 3, Target: input.Clutch, Pedal: true, RawMin: 32767, RawMax: -32768},
	},
}

var thrustmasterWheelMapping = &Mapping{
	Name: "thrustmaster_wheel",
	Axes: []AxisMapping{
		{Index: 0, Target: input.Steering},
		{Index: 2, Target: input.Throttle, Pedal: true, RawMin: 32767, RawMax: -32768},
		{Index: 1, Target: input.Brake, Pedal: true, RawMin: 32767, RawMax: -32768},
		{Index: 3, Target: input.Clutch, Pedal: true, RawMin: 32767, RawMax: -32768},
	},
}

var padMapping = &Mapping{
	Name: "gamepad",
	Axes: []AxisMapping{
		{Index: 0, Target: input.Steering},
		{Index: 5, Target: input.Throttle, Pedal: true, RawMin: -32768, RawMax: 32767},
		{Index: 4, Target: input.Brake, Pedal: true, RawMin: -32768, RawMax: 32767},
	},
}

var genericMapping = &Mapping{
	Name: "generic",
	Axes: []AxisMapping{
		{Index: 0, Target: input.Steering},
		{Index: 1, Target: input.Throttle, Pedal: true, RawMin: -32768, RawMax: 32767},
		{Index: 2, Target: input.Brake, Pedal: true, RawMin: -32768, RawMax: 32767},
	},
}

type deviceKey struct {
	VendorID  uint16
	ProductID uint16
}

var knownDevices = map[deviceKey]*Mapping{
	// Logitech wheels
	{0x046D, 0xC24F}: logitechWheelMapping, // G29 (PS)
	{0x046D, 0xC262}: logitechWheelMapping, // G920
	{0x046D, 0xC266}: logitechWheelMapping, // G923 (PS)
	{0x046D, 0xC29B}: logitechWheelMapping, // G27
	// Thrustmaster wheels
	{0x044F, 0xB66E}: thrustmasterWheelMapping, // T300RS
	{0x044F, 0xB677}: thrustmasterWheelMapping, // T150
	{0x044F, 0xB696}: thrustmasterWheelMapping, // T248
	// Pads
	{0x045E, 0x028E}: padMapping, // Xbox 360
	{0x045E, 0x02FF}: padMapping, // Xbox One
	{0x045E, 0x0B12}: padMapping, // Xbox Series X|S
	{0x045E, 0x0B13}: padMapping, // Xbox Series X|S (wireless)
	{0x054C, 0x0CE6}: padMapping, // DualSense
	{0x054C, 0x09CC}: padMapping, // DualShock 4 v2
}

// GetMapping returns the mapping for a device identified by vendor/product
// ID, falling back to the generic mapping.
func GetMapping(vendorID, productID uint16) *Mapping {
	if m, ok := knownDevices[deviceKey{VendorID: vendorID, ProductID: productID}]; ok {
		return m
	}
	return genericMapping
}

const analogThreshold = 0.01

// snapshot is the last reported state of a device.
type snapshot struct {
	axes    [input.NumAxes]float64
	present [input.NumAxes]bool
	buttons []bool
}

// diff returns the events needed to move a consumer from prev to cur.
func diff(prev, cur *snapshot) []input.Event {
	var out []input.Event
	for a := input.Axis(0); a < input.NumAxes; a++ {
		if !cur.present[a] {
			continue
		}
		if !prev.present[a] || math.Abs(prev.axes[a]-cur.axes[a]) >= analogThreshold {
			out = append(out, input.Event{Kind: input.AxisMove, Axis: a, Value: cur.axes[a]})
		}
	}
	for i, down := range cur.buttons {
		was := i < len(prev.buttons) && prev.buttons[i]
		if down == was {
			continue
		}
		kind := input.KeyUp
		if down {
			kind = input.KeyDown
		}
		out = append(out, input.Event{Kind: kind, Key: ButtonKey(int32(i))})
	}
	return out
}

// readAxes fills snap from raw axis values using m.
func (m *Mapping) readAxes(snap *snapshot, raw func(index int32) (int16, bool)) {
	for _, am := range m.Axes {
		v, ok := raw(am.Index)
		if !ok {
			continue
		}
		var val float64
		if am.Pedal {
			val = NormalizePedal(v, am.RawMin, am.RawMax)
		} else {
			val = NormalizeAxis(v)
			if am.Invert {
				val = -val
			}
		}
		snap.axes[am.Target] = val
		snap.present[am.Target] = true
	}
}
