package device

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("device closed")

// ErrInjected is the failure produced by a Memory device set to fail.
var ErrInjected = errors.New("injected device failure")

// Write is one recorded SetAxis call.
type Write struct {
	Axis  AxisID
	Value int32
}

// Memory is an in-process device that records everything written to it.
// It is safe for concurrent use so tests can inspect it while a loop runs.
type Memory struct {
	mu      sync.Mutex
	rng     Range
	axes    map[AxisID]int32
	buttons map[int]bool
	writes  []Write
	flushes int
	failing bool
	closed  bool
	atClose map[AxisID]int32
}

// NewMemory returns a device with range r.
func NewMemory(r Range) *Memory {
	return &Memory{
		rng:     r,
		axes:    map[AxisID]int32{},
		buttons: map[int]bool{},
	}
}

// SetFailing makes every following write and flush fail until reset.
func (m *Memory) SetFailing(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = fail
}

func (m *Memory) SetAxis(axis AxisID, value int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	if value < m.rng.Min || value > m.rng.Max {
		return errors.Errorf("axis %s value %d outside [%d, %d]", axis, value, m.rng.Min, m.rng.Max)
	}
	m.axes[axis] = value
	m.writes = append(m.writes, Write{Axis: axis, Value: value})
	return nil
}

func (m *Memory) SetButton(button int, pressed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	m.buttons[button] = pressed
	return nil
}

func (m *Memory) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}
	m.flushes++
	return nil
}

func (m *Memory) Range() Range {
	return m.rng
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.closed = true
	m.atClose = lo.Assign(m.axes)
	return nil
}

func (m *Memory) check() error {
	if m.closed {
		return ErrClosed
	}
	if m.failing {
		return ErrInjected
	}
	return nil
}

// Axis returns the last value written to axis.
func (m *Memory) Axis(axis AxisID) (int32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.axes[axis]
	return v, ok
}

// Button returns the last state of a button.
func (m *Memory) Button(button int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buttons[button]
}

// Writes returns a copy of every successful axis write.
func (m *Memory) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Write(nil), m.writes...)
}

// Flushes returns the number of successful flushes.
func (m *Memory) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// AxesAtClose returns the axis values the device held when it was closed.
func (m *Memory) AxesAtClose() map[AxisID]int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Assign(m.atClose)
}

// Null discards everything.
type Null struct{}

// NewNull returns a device that accepts and drops all writes.
func NewNull() *Null { return &Null{} }

func (*Null) SetAxis(AxisID, int32) error { return nil }
func (*Null) SetButton(int, bool) error   { return nil }
func (*Null) Flush() error                { return nil }
func (*Null) Range() Range                { return Range{Min: 1, Max: 0x8000} }
func (*Null) Close() error                { return nil }
