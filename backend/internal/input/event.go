// Package input turns key, mouse and wheel events into bounded analog axis
// values. Capture mechanisms only push Events into a Queue; the control loop
// drains it once per tick.
package input

import (
	"fmt"
	"time"
)

// Axis identifies one analog control.
type Axis int

const (
	Steering Axis = iota
	Throttle
	Brake
	Clutch

	NumAxes
)

var axisNames = [NumAxes]string{"steering", "throttle", "brake", "clutch"}

func (a Axis) String() string {
	if a < 0 || a >= NumAxes {
		return fmt.Sprintf("axis(%d)", int(a))
	}
	return axisNames[a]
}

// Bidirectional reports whether the axis spans [-1, 1] rather than [0, 1].
func (a Axis) Bidirectional() bool {
	return a == Steering
}

// Bounds returns the normalized range of the axis.
func (a Axis) Bounds() (float64, float64) {
	if a.Bidirectional() {
		return -1, 1
	}
	return 0, 1
}

// Kind is the type of an input event.
type Kind uint8

const (
	KeyDown Kind = iota + 1
	KeyUp
	MouseMove
	AxisMove
)

func (k Kind) String() string {
	switch k {
	case KeyDown:
		return "key_down"
	case KeyUp:
		return "key_up"
	case MouseMove:
		return "mouse_move"
	case AxisMove:
		return "axis_move"
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Event is one captured input occurrence.
type Event struct {
	Kind Kind
	// Key is the lower-case key name for KeyDown and KeyUp.
	Key string
	// DX and DY are relative mouse counts for MouseMove.
	DX, DY float64
	// Axis and Value carry an absolute normalized position for AxisMove.
	Axis  Axis
	Value float64
	Time  time.Time
}

// continuous events can be dropped under pressure without leaving state stuck.
func (e Event) continuous() bool {
	return e.Kind == MouseMove || e.Kind == AxisMove
}

// Raw is the normalizer output for one tick.
type Raw struct {
	Axes      [NumAxes]float64
	Handbrake bool
	GearUp    bool
	GearDown  bool
	// Override and Exit are edges: true only on the tick the key went down.
	Override bool
	Exit     bool
}
