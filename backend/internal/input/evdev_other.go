//go:build !linux

package input

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrUnsupported is returned by sources not available on this platform.
var ErrUnsupported = errors.New("input source not supported on this platform")

// EvdevSource is only available on Linux.
type EvdevSource struct {
	path string
}

// NewEvdevSource creates a source that fails on Run.
func NewEvdevSource(path string, _ *Queue, _ *zap.SugaredLogger) *EvdevSource {
	return &EvdevSource{path: path}
}

// Run always fails on this platform.
func (s *EvdevSource) Run(context.Context) error {
	return errors.Wrap(ErrUnsupported, s.path)
}
