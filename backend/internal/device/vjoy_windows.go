//go:build windows

package device

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sys/windows"
)

const nativeBackend = BackendVJoy

// vJoy axis range, from public.h of the vJoy SDK.
var vjoyRange = Range{Min: 1, Max: 0x8000}

// GetVJDStatus results.
const (
	vjdStatOwn  = 0
	vjdStatFree = 1
	vjdStatBusy = 2
	vjdStatMiss = 3
)

var (
	vjoyDLL = windows.NewLazyDLL("vJoyInterface.dll")

	procVJoyEnabled   = vjoyDLL.NewProc("vJoyEnabled")
	procGetVJDStatus  = vjoyDLL.NewProc("GetVJDStatus")
	procAcquireVJD    = vjoyDLL.NewProc("AcquireVJD")
	procRelinquishVJD = vjoyDLL.NewProc("RelinquishVJD")
	procResetVJD      = vjoyDLL.NewProc("ResetVJD")
	procSetAxis       = vjoyDLL.NewProc("SetAxis")
	procSetBtn        = vjoyDLL.NewProc("SetBtn")
)

// VJoy drives one vJoy device through vJoyInterface.dll. Writes go straight
// to the driver; Flush is a no-op.
type VJoy struct {
	id uintptr
}

func openVJoy(cfg Config) (Device, error) {
	if err := vjoyDLL.Load(); err != nil {
		return nil, errors.Wrap(err, "loading vJoyInterface.dll (is vJoy installed?)")
	}
	if r, _, _ := procVJoyEnabled.Call(); r == 0 {
		return nil, errors.New("vJoy driver is not enabled")
	}
	id := uintptr(cfg.ID)
	if id == 0 {
		id = 1
	}
	status, _, _ := procGetVJDStatus.Call(id)
	switch status {
	case vjdStatOwn, vjdStatFree:
	case vjdStatBusy:
		return nil, errors.Errorf("vJoy device %d is owned by another feeder", id)
	case vjdStatMiss:
		return nil, errors.Errorf("vJoy device %d is not configured", id)
	default:
		return nil, errors.Errorf("vJoy device %d: unknown status %d", id, status)
	}
	if r, _, err := procAcquireVJD.Call(id); r == 0 {
		return nil, errors.Wrapf(err, "acquiring vJoy device %d", id)
	}
	procResetVJD.Call(id)
	return &VJoy{id: id}, nil
}

func (v *VJoy) SetAxis(axis AxisID, value int32) error {
	value = vjoyRange.Clamp(value)
	if r, _, _ := procSetAxis.Call(uintptr(value), v.id, uintptr(axis)); r == 0 {
		return errors.Errorf("vJoy SetAxis %s=%d failed on device %d", axis, value, v.id)
	}
	return nil
}

func (v *VJoy) SetButton(button int, pressed bool) error {
	var val uintptr
	if pressed {
		val = 1
	}
	if r, _, _ := procSetBtn.Call(val, v.id, uintptr(uint8(button))); r == 0 {
		return errors.Errorf("vJoy SetBtn %d failed on device %d", button, v.id)
	}
	return nil
}

func (v *VJoy) Flush() error { return nil }

func (v *VJoy) Range() Range { return vjoyRange }

func (v *VJoy) Close() error {
	var err error
	if r, _, _ := procResetVJD.Call(v.id); r == 0 {
		err = multierr.Append(err, errors.Errorf("resetting vJoy device %d", v.id))
	}
	procRelinquishVJD.Call(v.id)
	return err
}

func openUinput(Config) (Device, error) {
	return nil, errors.Wrap(ErrUnsupported, "uinput")
}
