package input

import (
	"math"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/soar/DriveAssist/backend/internal/profile"
)

// Normalizer folds events into per-axis raw values. It is owned by the control
// loop and is not safe for concurrent use.
type Normalizer struct {
	bindings map[string]profile.Action
	pressed  map[profile.Action]bool

	// digital holds key-driven components; steering uses steerLeft/steerRight.
	steerLeft, steerRight float64
	digital               [NumAxes]float64

	mouse     float64
	analog    [NumAxes]float64
	hasAnalog [NumAxes]bool

	releaseRate   float64
	mouseSteering bool
	mouseSens     float64

	override, exit bool
	last           time.Time
}

// NewNormalizer builds a normalizer for the given profile's bindings.
func NewNormalizer(p profile.Profile) *Normalizer {
	n := &Normalizer{pressed: map[profile.Action]bool{}}
	n.SetProfile(p)
	return n
}

// SetProfile replaces bindings and rates. Held keys are released since their
// meaning may have changed.
func (n *Normalizer) SetProfile(p profile.Profile) {
	n.bindings = make(map[string]profile.Action, len(p.KeyBindings))
	for action, key := range p.KeyBindings {
		n.bindings[strings.ToLower(key)] = action
	}
	n.pressed = map[profile.Action]bool{}
	n.releaseRate = p.ReleaseRate
	n.mouseSteering = p.MouseSteering
	n.mouseSens = p.MouseSensitivity
	if !n.mouseSteering {
		n.mouse = 0
	}
}

// Apply folds one event into the state.
func (n *Normalizer) Apply(ev Event) {
	switch ev.Kind {
	case KeyDown, KeyUp:
		action, ok := n.bindings[strings.ToLower(ev.Key)]
		if !ok {
			return
		}
		down := ev.Kind == KeyDown
		if down && n.pressed[action] {
			// auto-repeat
			return
		}
		n.pressed[action] = down
		if !down {
			return
		}
		switch action {
		case profile.SteerLeft:
			n.steerLeft = 1
		case profile.SteerRight:
			n.steerRight = 1
		case profile.Throttle:
			n.digital[Throttle] = 1
		case profile.Brake:
			n.digital[Brake] = 1
		case profile.Clutch:
			n.digital[Clutch] = 1
		case profile.Override:
			n.override = true
		case profile.Exit:
			n.exit = true
		}
	case MouseMove:
		if n.mouseSteering {
			n.mouse = lo.Clamp(n.mouse+ev.DX*n.mouseSens, -1, 1)
		}
	case AxisMove:
		if ev.Axis < 0 || ev.Axis >= NumAxes || math.IsNaN(ev.Value) {
			return
		}
		low, high := ev.Axis.Bounds()
		n.analog[ev.Axis] = lo.Clamp(ev.Value, low, high)
		n.hasAnalog[ev.Axis] = true
	}
}

// Sample advances release decay to now and returns the raw axis values.
// Edge flags are cleared after being reported once.
func (n *Normalizer) Sample(now time.Time) Raw {
	var dt float64
	if !n.last.IsZero() && now.After(n.last) {
		dt = now.Sub(n.last).Seconds()
	}
	n.last = now

	step := n.releaseRate * dt
	n.steerLeft = decay(n.steerLeft, n.pressed[profile.SteerLeft], step)
	n.steerRight = decay(n.steerRight, n.pressed[profile.SteerRight], step)
	n.digital[Throttle] = decay(n.digital[Throttle], n.pressed[profile.Throttle], step)
	n.digital[Brake] = decay(n.digital[Brake], n.pressed[profile.Brake], step)
	n.digital[Clutch] = decay(n.digital[Clutch], n.pressed[profile.Clutch], step)
	n.digital[Steering] = n.steerRight - n.steerLeft

	var raw Raw
	for a := Axis(0); a < NumAxes; a++ {
		v := n.digital[a]
		if a == Steering && n.mouseSteering {
			v = strongest(v, n.mouse)
		}
		if n.hasAnalog[a] {
			v = strongest(v, n.analog[a])
		}
		low, high := a.Bounds()
		raw.Axes[a] = lo.Clamp(v, low, high)
	}
	raw.Handbrake = n.pressed[profile.Handbrake]
	raw.GearUp = n.pressed[profile.GearUp]
	raw.GearDown = n.pressed[profile.GearDown]
	raw.Override, raw.Exit = n.override, n.exit
	n.override, n.exit = false, false
	return raw
}

// Reset releases every key and recenters all sources.
func (n *Normalizer) Reset() {
	n.pressed = map[profile.Action]bool{}
	n.steerLeft, n.steerRight, n.mouse = 0, 0, 0
	n.digital = [NumAxes]float64{}
	n.analog = [NumAxes]float64{}
	n.hasAnalog = [NumAxes]bool{}
	n.override, n.exit = false, false
}

func decay(v float64, held bool, step float64) float64 {
	if held {
		return 1
	}
	return math.Max(0, v-step)
}

func strongest(a, b float64) float64 {
	if math.Abs(b) > math.Abs(a) {
		return b
	}
	return a
}
