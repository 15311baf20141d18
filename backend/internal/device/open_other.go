//go:build !linux && !windows

package device

import "github.com/pkg/errors"

const nativeBackend = BackendNull

func openVJoy(Config) (Device, error) {
	return nil, errors.Wrap(ErrUnsupported, "vjoy")
}

func openUinput(Config) (Device, error) {
	return nil, errors.Wrap(ErrUnsupported, "uinput")
}
