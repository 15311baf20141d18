package device

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
)

func TestToDevice(t *testing.T) {
	vj := Range{Min: 1, Max: 0x8000}
	sym := Range{Min: -32767, Max: 32767}

	for _, tc := range []struct {
		name  string
		value float64
		uni   bool
		r     Range
		want  int32
	}{
		{"left", -1, false, vj, 1},
		{"right", 1, false, vj, 0x8000},
		{"center", 0, false, vj, vj.Center()},
		{"sym center", 0, false, sym, 0},
		{"sym half", 0.5, false, sym, 16384},
		{"pedal released", 0, true, vj, 1},
		{"pedal full", 1, true, vj, 0x8000},
		{"over range", 7, false, vj, 0x8000},
		{"under range", -3, true, sym, -32767},
		{"nan", math.NaN(), false, sym, 0},
		{"inf", math.Inf(-1), false, sym, -32767},
	} {
		t.Run(tc.name, func(t *testing.T) {
			test.That(t, ToDevice(tc.value, tc.uni, tc.r), test.ShouldEqual, tc.want)
		})
	}
}

func TestStickPosition(t *testing.T) {
	sym := Range{Min: -32767, Max: 32767}
	vj := Range{Min: 1, Max: 0x8000}

	// released pedals sit at stick center, not full deflection
	test.That(t, StickPosition(ToDevice(0, true, sym), sym, true), test.ShouldEqual, float32(0))
	test.That(t, StickPosition(sym.Neutral(true), sym, true), test.ShouldEqual, float32(0))
	test.That(t, StickPosition(ToDevice(1, true, sym), sym, true), test.ShouldEqual, float32(1))
	test.That(t, StickPosition(ToDevice(0.5, true, sym), sym, true), test.ShouldAlmostEqual, 0.5, 1e-4)
	test.That(t, StickPosition(ToDevice(0, true, vj), vj, true), test.ShouldEqual, float32(0))

	test.That(t, StickPosition(ToDevice(0, false, sym), sym, false), test.ShouldEqual, float32(0))
	test.That(t, StickPosition(ToDevice(-1, false, sym), sym, false), test.ShouldEqual, float32(-1))
	test.That(t, StickPosition(ToDevice(1, false, sym), sym, false), test.ShouldEqual, float32(1))
	test.That(t, StickPosition(ToDevice(-0.5, false, sym), sym, false), test.ShouldAlmostEqual, -0.5, 1e-4)

	test.That(t, StickPosition(99999, sym, true), test.ShouldEqual, float32(1))
	test.That(t, StickPosition(0, Range{Min: 5, Max: 5}, true), test.ShouldEqual, float32(0))
}

func TestToDeviceStaysInRange(t *testing.T) {
	for _, r := range []Range{{Min: 1, Max: 0x8000}, {Min: -32767, Max: 32767}, {Min: 0, Max: 255}} {
		for i := -150; i <= 150; i++ {
			v := float64(i) / 100
			for _, uni := range []bool{false, true} {
				got := ToDevice(v, uni, r)
				test.That(t, got, test.ShouldBeGreaterThanOrEqualTo, r.Min)
				test.That(t, got, test.ShouldBeLessThanOrEqualTo, r.Max)
			}
		}
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory(Range{Min: 1, Max: 0x8000})
	test.That(t, m.SetAxis(AxisX, 100), test.ShouldBeNil)
	test.That(t, m.SetButton(2, true), test.ShouldBeNil)
	test.That(t, m.Flush(), test.ShouldBeNil)

	v, ok := m.Axis(AxisX)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, int32(100))
	test.That(t, m.Button(2), test.ShouldBeTrue)
	test.That(t, m.Flushes(), test.ShouldEqual, 1)

	test.That(t, m.SetAxis(AxisY, 0), test.ShouldNotBeNil)

	m.SetFailing(true)
	err := m.SetAxis(AxisX, 5)
	test.That(t, errors.Is(err, ErrInjected), test.ShouldBeTrue)
	test.That(t, errors.Is(m.Flush(), ErrInjected), test.ShouldBeTrue)
	m.SetFailing(false)

	test.That(t, m.SetAxis(AxisX, 200), test.ShouldBeNil)
	test.That(t, m.Close(), test.ShouldBeNil)
	test.That(t, m.Closed(), test.ShouldBeTrue)
	test.That(t, m.AxesAtClose(), test.ShouldResemble, map[AxisID]int32{AxisX: 200})
	test.That(t, errors.Is(m.SetAxis(AxisX, 1), ErrClosed), test.ShouldBeTrue)
	test.That(t, m.Writes(), test.ShouldResemble, []Write{{AxisX, 100}, {AxisX, 200}})
}

func TestOpen(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	dev, err := Open(Config{Backend: BackendNull}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.Range(), test.ShouldResemble, Range{Min: 1, Max: 0x8000})
	test.That(t, dev.Close(), test.ShouldBeNil)

	_, err = Open(Config{Backend: "joystick9000"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "joystick9000")
}
