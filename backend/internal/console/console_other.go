//go:build !windows

// Package console is a no-op outside Windows, where os/signal handles Ctrl+C.
package console

import "go.uber.org/zap"

// Interactive is always true outside Windows.
func Interactive() bool {
	return true
}

// Interrupts returns a channel that is never closed.
func Interrupts(*zap.SugaredLogger) (<-chan struct{}, func()) {
	return make(chan struct{}), func() {}
}
