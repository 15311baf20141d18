package control

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/soar/DriveAssist/backend/internal/device"
	"github.com/soar/DriveAssist/backend/internal/input"
	"github.com/soar/DriveAssist/backend/internal/profile"
	"github.com/soar/DriveAssist/backend/internal/record"
)

var testRange = device.Range{Min: 1, Max: 0x8000}

type fixture struct {
	loop  *Loop
	queue *input.Queue
	dev   *device.Memory
	clk   *clock.Mock
}

func newFixture(t *testing.T, p profile.Profile, opts Options) *fixture {
	t.Helper()
	clk := clock.NewMock()
	opts.Clock = clk
	q := input.NewQueue(16)
	dev := device.NewMemory(testRange)
	l := New(p, q, dev, opts, zaptest.NewLogger(t).Sugar())
	return &fixture{loop: l, queue: q, dev: dev, clk: clk}
}

// step advances the mock clock by one tick and runs it.
func (f *fixture) step() bool {
	f.clk.Add(f.loop.tick)
	return f.loop.Step(f.clk.Now())
}

func linearProfile() profile.Profile {
	p := profile.Default()
	p.Deadzone = 0
	p.CurveStrength = 1
	p.SteerSpeed = 2000
	p.ThrottleSpeed = 2000
	p.BrakeSpeed = 2000
	return p
}

func axis(t *testing.T, dev *device.Memory, a input.Axis) int32 {
	t.Helper()
	v, ok := dev.Axis(Layout[a])
	test.That(t, ok, test.ShouldBeTrue)
	return v
}

func TestLoopDrivesDevice(t *testing.T) {
	f := newFixture(t, linearProfile(), Options{})
	f.step()
	test.That(t, axis(t, f.dev, input.Steering), test.ShouldEqual, testRange.Center())
	test.That(t, axis(t, f.dev, input.Throttle), test.ShouldEqual, testRange.Min)

	f.queue.Push(input.Event{Kind: input.KeyDown, Key: "d"})
	f.queue.Push(input.Event{Kind: input.KeyDown, Key: "w"})
	f.queue.Push(input.Event{Kind: input.KeyDown, Key: "space"})
	for i := 0; i < 30; i++ {
		f.step()
	}
	test.That(t, axis(t, f.dev, input.Steering), test.ShouldEqual, testRange.Max)
	test.That(t, axis(t, f.dev, input.Throttle), test.ShouldEqual, testRange.Max)
	test.That(t, f.dev.Button(ButtonHandbrake), test.ShouldBeTrue)

	last := f.loop.Last()
	test.That(t, last.Output.Steering, test.ShouldEqual, 1.0)
	test.That(t, last.Raw.Throttle, test.ShouldEqual, 1.0)
	test.That(t, last.Buttons.Handbrake, test.ShouldBeTrue)
	test.That(t, last.Profile, test.ShouldEqual, profile.DefaultName)
	test.That(t, last.Tick, test.ShouldEqual, uint64(31))
}

func TestLoopRateLimitsOutput(t *testing.T) {
	p := linearProfile()
	p.SteerSpeed = 500
	f := newFixture(t, p, Options{})
	f.step()

	f.queue.Push(input.Event{Kind: input.KeyDown, Key: "d"})
	prev := 0.0
	bound := 500 * f.loop.tick.Seconds() / 500
	for i := 0; i < 70; i++ {
		f.step()
		cur := f.loop.Last().Output.Steering
		test.That(t, cur-prev, test.ShouldBeLessThanOrEqualTo, bound+1e-9)
		prev = cur
	}
	test.That(t, prev, test.ShouldEqual, 1.0)
}

func TestLoopOverride(t *testing.T) {
	f := newFixture(t, linearProfile(), Options{})
	f.step()
	f.queue.Push(input.Event{Kind: input.KeyDown, Key: "a"})
	for i := 0; i < 20; i++ {
		f.step()
	}
	test.That(t, axis(t, f.dev, input.Steering), test.ShouldEqual, testRange.Min)

	// the override key toggles neutral output
	f.queue.Push(input.Event{Kind: input.KeyDown, Key: "f12"})
	f.step()
	test.That(t, f.loop.Override(), test.ShouldBeTrue)
	test.That(t, axis(t, f.dev, input.Steering), test.ShouldEqual, testRange.Center())
	f.step()
	test.That(t, axis(t, f.dev, input.Steering), test.ShouldEqual, testRange.Center())

	f.loop.SetOverride(false)
	// the pipeline restarts from center
	f.step()
	test.That(t, axis(t, f.dev, input.Steering), test.ShouldEqual, testRange.Center())
	f.step()
	test.That(t, f.loop.Last().Override, test.ShouldBeFalse)
	test.That(t, axis(t, f.dev, input.Steering), test.ShouldBeLessThan, testRange.Center())
}

func TestLoopFailsafe(t *testing.T) {
	f := newFixture(t, linearProfile(), Options{FailsafeThreshold: 3})
	f.queue.Push(input.Event{Kind: input.KeyDown, Key: "w"})
	for i := 0; i < 20; i++ {
		f.step()
	}
	test.That(t, axis(t, f.dev, input.Throttle), test.ShouldEqual, testRange.Max)

	f.dev.SetFailing(true)
	f.step()
	f.step()
	test.That(t, f.loop.Failsafe(), test.ShouldBeFalse)
	f.step()
	test.That(t, f.loop.Failsafe(), test.ShouldBeTrue)

	// device recovers: failsafe stays latched and output is neutral
	f.dev.SetFailing(false)
	f.step()
	test.That(t, f.loop.Failsafe(), test.ShouldBeTrue)
	test.That(t, f.loop.Last().Failsafe, test.ShouldBeTrue)
	test.That(t, axis(t, f.dev, input.Throttle), test.ShouldEqual, testRange.Min)

	f.loop.ClearFailsafe()
	for i := 0; i < 20; i++ {
		f.step()
	}
	test.That(t, f.loop.Failsafe(), test.ShouldBeFalse)
	test.That(t, axis(t, f.dev, input.Throttle), test.ShouldEqual, testRange.Max)
}

func TestLoopIntermittentFailuresDoNotLatch(t *testing.T) {
	f := newFixture(t, linearProfile(), Options{FailsafeThreshold: 3})
	for i := 0; i < 10; i++ {
		f.dev.SetFailing(i%2 == 0)
		f.step()
	}
	test.That(t, f.loop.Failsafe(), test.ShouldBeFalse)
}

func TestLoopSetProfile(t *testing.T) {
	f := newFixture(t, linearProfile(), Options{})
	f.step()

	bad := linearProfile()
	bad.Deadzone = -5
	err := f.loop.SetProfile(bad)
	test.That(t, errors.Is(err, profile.ErrInvalid), test.ShouldBeTrue)
	test.That(t, f.loop.ProfileName(), test.ShouldEqual, profile.DefaultName)

	next := linearProfile()
	next.Name = "Assetto"
	next.KeyBindings[profile.SteerRight] = "right"
	test.That(t, f.loop.SetProfile(next), test.ShouldBeNil)
	test.That(t, f.loop.ProfileName(), test.ShouldEqual, "Assetto")

	f.queue.Push(input.Event{Kind: input.KeyDown, Key: "right"})
	for i := 0; i < 20; i++ {
		f.step()
	}
	test.That(t, f.loop.Last().Profile, test.ShouldEqual, "Assetto")
	test.That(t, f.loop.Last().Output.Steering, test.ShouldEqual, 1.0)
}

func TestLoopExitKey(t *testing.T) {
	f := newFixture(t, linearProfile(), Options{})
	test.That(t, f.step(), test.ShouldBeTrue)
	f.queue.Push(input.Event{Kind: input.KeyDown, Key: "esc"})
	test.That(t, f.step(), test.ShouldBeFalse)
}

func TestLoopRunFlushesNeutralOnStop(t *testing.T) {
	f := newFixture(t, linearProfile(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.loop.Run(ctx)
	}()

	// wait for the loop to hold the ticker before moving the clock
	time.Sleep(10 * time.Millisecond)
	f.queue.Push(input.Event{Kind: input.KeyDown, Key: "d"})
	f.queue.Push(input.Event{Kind: input.KeyDown, Key: "w"})
	f.queue.Push(input.Event{Kind: input.KeyDown, Key: "s"})
	for i := 0; i < 30; i++ {
		f.clk.Add(f.loop.tick)
	}

	test.That(t, f.loop.Last().Tick, test.ShouldBeGreaterThan, uint64(0))
	test.That(t, f.loop.Last().Output.Steering, test.ShouldBeGreaterThan, 0)

	cancel()
	select {
	case err := <-done:
		test.That(t, err, test.ShouldBeNil)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}

	test.That(t, f.dev.Closed(), test.ShouldBeTrue)
	test.That(t, f.dev.AxesAtClose(), test.ShouldResemble, map[device.AxisID]int32{
		device.AxisX:  testRange.Center(),
		device.AxisY:  testRange.Min,
		device.AxisZ:  testRange.Min,
		device.AxisRZ: testRange.Min,
	})
	test.That(t, f.dev.Button(ButtonHandbrake), test.ShouldBeFalse)
}

func TestLoopRunStopsOnExitKey(t *testing.T) {
	f := newFixture(t, linearProfile(), Options{})
	done := make(chan error, 1)
	go func() {
		done <- f.loop.Run(context.Background())
	}()
	time.Sleep(10 * time.Millisecond)

	f.queue.Push(input.Event{Kind: input.KeyDown, Key: "esc"})
	f.clk.Add(f.loop.tick)

	select {
	case err := <-done:
		test.That(t, errors.Is(err, ErrExit), test.ShouldBeTrue)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	test.That(t, f.dev.Closed(), test.ShouldBeTrue)
	v, _ := f.dev.Axis(device.AxisX)
	test.That(t, v, test.ShouldEqual, testRange.Center())
}

func TestLoopRecording(t *testing.T) {
	rec, err := record.NewRecorder(t.TempDir(), zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldBeNil)
	f := newFixture(t, linearProfile(), Options{Recorder: rec})

	id, err := f.loop.SetRecording(true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldNotBeEmpty)
	for i := 0; i < 5; i++ {
		f.step()
	}
	test.That(t, f.loop.Last().Recording, test.ShouldBeTrue)

	saved, err := f.loop.SetRecording(false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, saved, test.ShouldEqual, id)

	r, err := rec.Load(id)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Samples, test.ShouldHaveLength, 5)
	test.That(t, r.Profile, test.ShouldEqual, profile.DefaultName)
}

func TestLoopTelemetryDoesNotBlock(t *testing.T) {
	f := newFixture(t, linearProfile(), Options{})
	for i := 0; i < telemetryBuffer*2; i++ {
		f.step()
	}
	test.That(t, len(f.loop.Telemetry()), test.ShouldEqual, telemetryBuffer)
	first := <-f.loop.Telemetry()
	test.That(t, first.Tick, test.ShouldEqual, uint64(1))
}

func TestComputeDelta(t *testing.T) {
	old := Telemetry{Profile: "a", Output: Axes{Steering: 0.5}}

	d := ComputeDelta(old, old)
	test.That(t, d.IsEmpty(), test.ShouldBeTrue)

	next := old
	next.Output.Steering = 0.505
	test.That(t, ComputeDelta(old, next).IsEmpty(), test.ShouldBeTrue)

	next.Output.Steering = 0.6
	next.Failsafe = true
	d = ComputeDelta(old, next)
	test.That(t, d.Output, test.ShouldNotBeNil)
	test.That(t, d.Output.Steering, test.ShouldEqual, 0.6)
	test.That(t, *d.Failsafe, test.ShouldBeTrue)
	test.That(t, d.Profile, test.ShouldBeNil)
	test.That(t, d.Raw, test.ShouldBeNil)
}

func TestDeltaApply(t *testing.T) {
	old := Telemetry{Tick: 3, Profile: "a", Vehicle: "Generic Sedan", Output: Axes{Throttle: 0.2}}
	next := old
	next.Tick = 4
	next.Profile = "b"
	next.Output.Throttle = 0.9
	next.Override = true

	got := old
	ComputeDelta(old, next).Apply(&got)
	got.Tick = next.Tick
	test.That(t, got, test.ShouldResemble, next)
}
