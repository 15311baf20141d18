//go:build !sdl

package wheel

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/soar/DriveAssist/backend/internal/input"
)

// Available reports whether this build can read wheels.
const Available = false

// ErrUnavailable is returned by Run in builds without SDL3.
var ErrUnavailable = errors.New("wheel support not built in (rebuild with -tags sdl)")

// Source is a placeholder in builds without SDL3.
type Source struct {
	logger *zap.SugaredLogger
}

// NewSource creates a source that reports ErrUnavailable.
func NewSource(_ *input.Queue, logger *zap.SugaredLogger) *Source {
	return &Source{logger: logger}
}

// OnInit is a no-op without SDL.
func (w *Source) OnInit(func()) {}

// Run returns ErrUnavailable.
func (w *Source) Run(context.Context) error {
	return ErrUnavailable
}
