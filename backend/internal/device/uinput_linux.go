//go:build linux

package device

import (
	"github.com/bendahl/uinput"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const nativeBackend = BackendUinput

const (
	defaultUinputPath = "/dev/uinput"
	defaultDeviceName = "DriveAssist Virtual Wheel"
	// Xbox 360 ids so games pick up a standard layout.
	uinputVendor  = 0x045e
	uinputProduct = 0x028e
)

var uinputRange = Range{Min: -32767, Max: 32767}

// throttle, brake and clutch
var uinputPedals = map[AxisID]bool{AxisY: true, AxisZ: true, AxisRZ: true}

var uinputButtons = map[int]int{
	1: uinput.ButtonSouth,
	2: uinput.ButtonBumperRight,
	3: uinput.ButtonBumperLeft,
	4: uinput.ButtonEast,
	5: uinput.ButtonWest,
	6: uinput.ButtonNorth,
	7: uinput.ButtonSelect,
	8: uinput.ButtonStart,
}

// Uinput exposes a virtual gamepad through /dev/uinput. Steering and clutch
// go to the left stick, throttle and brake to the right stick. Pedals use the
// positive half of their stick axis so that released pedals sit at center.
// Stick writes are batched until Flush.
type Uinput struct {
	pad  uinput.Gamepad
	axes map[AxisID]int32
}

func openUinput(cfg Config) (Device, error) {
	path := cfg.Path
	if path == "" {
		path = defaultUinputPath
	}
	name := cfg.Name
	if name == "" {
		name = defaultDeviceName
	}
	pad, err := uinput.CreateGamepad(path, []byte(name), uinputVendor, uinputProduct)
	if err != nil {
		return nil, errors.Wrapf(err, "creating gamepad on %s", path)
	}
	u := &Uinput{pad: pad, axes: map[AxisID]int32{}}
	for axis, pedal := range uinputPedals {
		u.axes[axis] = uinputRange.Neutral(pedal)
	}
	return u, nil
}

func (u *Uinput) SetAxis(axis AxisID, value int32) error {
	switch axis {
	case AxisX, AxisY, AxisZ, AxisRX, AxisRY, AxisRZ:
	default:
		return errors.Errorf("uinput gamepad has no %s axis", axis)
	}
	u.axes[axis] = uinputRange.Clamp(value)
	return nil
}

func (u *Uinput) SetButton(button int, pressed bool) error {
	code, ok := uinputButtons[button]
	if !ok {
		return errors.Errorf("uinput gamepad has no button %d", button)
	}
	if pressed {
		return u.pad.ButtonDown(code)
	}
	return u.pad.ButtonUp(code)
}

func (u *Uinput) Flush() error {
	left := multierr.Append(nil, u.pad.LeftStickMove(u.stick(AxisX), u.stick(AxisRZ)))
	return multierr.Append(left, u.pad.RightStickMove(u.stick(AxisY), u.stick(AxisZ)))
}

func (u *Uinput) stick(axis AxisID) float32 {
	v, ok := u.axes[axis]
	if !ok {
		v = uinputRange.Center()
	}
	return StickPosition(v, uinputRange, uinputPedals[axis])
}

func (u *Uinput) Range() Range { return uinputRange }

func (u *Uinput) Close() error {
	return errors.Wrap(u.pad.Close(), "closing uinput gamepad")
}

func openVJoy(Config) (Device, error) {
	return nil, errors.Wrap(ErrUnsupported, "vjoy")
}
