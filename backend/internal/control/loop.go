// Package control runs the fixed-rate tick loop that drains input, shapes it
// and writes the virtual joystick.
package control

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/soar/DriveAssist/backend/internal/device"
	"github.com/soar/DriveAssist/backend/internal/feedback"
	"github.com/soar/DriveAssist/backend/internal/input"
	"github.com/soar/DriveAssist/backend/internal/profile"
	"github.com/soar/DriveAssist/backend/internal/record"
	"github.com/soar/DriveAssist/backend/internal/shaping"
)

// ErrExit is returned by Run when the exit key stopped the loop.
var ErrExit = errors.New("exit requested")

const (
	DefaultTickRate          = 60
	DefaultFailsafeThreshold = 30
	telemetryBuffer          = 64
)

// Device buttons, 1-based.
const (
	ButtonHandbrake = 1
	ButtonGearUp    = 2
	ButtonGearDown  = 3
)

// Layout assigns device axes to driving axes.
var Layout = [input.NumAxes]device.AxisID{
	input.Steering: device.AxisX,
	input.Throttle: device.AxisY,
	input.Brake:    device.AxisZ,
	input.Clutch:   device.AxisRZ,
}

// Options configures a Loop.
type Options struct {
	// TickRate is in Hz.
	TickRate int
	// FailsafeThreshold is the number of consecutive failed ticks before
	// failsafe latches.
	FailsafeThreshold int
	Clock             clock.Clock
	Catalog           *feedback.Catalog
	// Recorder is optional.
	Recorder *record.Recorder
}

// Loop is the single owner of the normalizer, pipeline, feedback state and
// device. Other goroutines talk to it through SetProfile, SetOverride,
// ClearFailsafe and SetRecording; requests take effect on the next tick.
type Loop struct {
	logger    *zap.SugaredLogger
	clock     clock.Clock
	queue     *input.Queue
	dev       device.Device
	catalog   *feedback.Catalog
	recorder  *record.Recorder
	tick      time.Duration
	threshold int

	normalizer *input.Normalizer
	pipeline   *shaping.Pipeline
	synth      *feedback.Synth

	mu      sync.Mutex
	pending *profile.Profile
	name    string
	last    Telemetry

	override      atomic.Bool
	failsafe      atomic.Bool
	clearFailsafe atomic.Bool

	effective profile.Profile
	failures  int
	lastTick  time.Time
	seq       uint64
	events    []input.Event
	writeLog  *rate.Limiter

	telemetry chan Telemetry
}

// New creates a loop writing to dev with p as the initial profile. p must
// be valid.
func New(p profile.Profile, q *input.Queue, dev device.Device, opts Options, logger *zap.SugaredLogger) *Loop {
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultTickRate
	}
	if opts.FailsafeThreshold <= 0 {
		opts.FailsafeThreshold = DefaultFailsafeThreshold
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Catalog == nil {
		opts.Catalog = feedback.NewCatalog()
	}
	l := &Loop{
		logger:     logger,
		clock:      opts.Clock,
		queue:      q,
		dev:        dev,
		catalog:    opts.Catalog,
		recorder:   opts.Recorder,
		tick:       time.Second / time.Duration(opts.TickRate),
		threshold:  opts.FailsafeThreshold,
		normalizer: input.NewNormalizer(p),
		pipeline:   shaping.NewPipeline(logger),
		synth:      feedback.NewSynth(feedback.DefaultVehicle()),
		writeLog:   rate.NewLimiter(rate.Every(time.Second), 1),
		telemetry:  make(chan Telemetry, telemetryBuffer),
	}
	l.apply(p)
	return l
}

// Telemetry returns the channel on which per-tick state is published. Ticks
// are dropped when the reader falls behind.
func (l *Loop) Telemetry() <-chan Telemetry {
	return l.telemetry
}

// Last returns the most recent telemetry.
func (l *Loop) Last() Telemetry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// SetProfile queues p to replace the active profile on the next tick. p is
// validated first; an invalid profile is rejected and the active one kept.
func (l *Loop) SetProfile(p profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c := p.Clone()
	l.mu.Lock()
	l.pending = &c
	l.mu.Unlock()
	return nil
}

// ProfileName is the name of the active (or pending) profile.
func (l *Loop) ProfileName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending != nil {
		return l.pending.Name
	}
	return l.name
}

// SetOverride forces neutral output while on.
func (l *Loop) SetOverride(on bool) {
	if l.override.Swap(on) != on {
		l.logger.Infow("emergency override", "enabled", on)
	}
}

// Override reports whether the override is on.
func (l *Loop) Override() bool { return l.override.Load() }

// Failsafe reports whether repeated device failures latched the failsafe.
func (l *Loop) Failsafe() bool { return l.failsafe.Load() }

// ClearFailsafe releases a latched failsafe on the next tick.
func (l *Loop) ClearFailsafe() {
	l.clearFailsafe.Store(true)
}

// SetRecording starts or stops the recorder. It returns the id of the
// recording started or saved.
func (l *Loop) SetRecording(on bool) (string, error) {
	if l.recorder == nil {
		return "", errors.New("recording is not configured")
	}
	if on {
		return l.recorder.Start(l.ProfileName(), l.clock.Now()), nil
	}
	return l.recorder.Stop()
}

// Run ticks until ctx is done or the exit key is pressed. Either way the
// device is left neutral, flushed and closed before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.Ticker(l.tick)
	defer ticker.Stop()

	l.logger.Infow("control loop started", "tick", l.tick, "profile", l.ProfileName())
	for {
		select {
		case <-ctx.Done():
			return l.shutdown()
		case now := <-ticker.C:
			if !l.Step(now) {
				l.logger.Info("exit key pressed")
				return multierr.Append(ErrExit, l.shutdown())
			}
		}
	}
}

// Step runs one tick at now. It returns false when the exit key was pressed.
func (l *Loop) Step(now time.Time) bool {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()
	if pending != nil {
		l.apply(*pending)
	}
	if l.clearFailsafe.Swap(false) && l.failsafe.Load() {
		l.failsafe.Store(false)
		l.failures = 0
		l.logger.Info("failsafe cleared")
	}

	l.events = l.queue.Drain(l.events[:0])
	for _, ev := range l.events {
		l.normalizer.Apply(ev)
	}
	raw := l.normalizer.Sample(now)
	if raw.Override {
		l.SetOverride(!l.override.Load())
	}

	out := l.pipeline.Advance(raw, l.effective, now)
	buttons := Buttons{Handbrake: raw.Handbrake, GearUp: raw.GearUp, GearDown: raw.GearDown}

	neutral := l.override.Load() || l.failsafe.Load()
	if neutral {
		l.pipeline.Reset()
		out = [input.NumAxes]float64{}
		buttons = Buttons{}
	}

	if err := l.write(out, buttons); err != nil {
		l.failures++
		if l.writeLog.Allow() {
			l.logger.Warnw("device write failed", "error", err, "consecutive", l.failures)
		}
		if l.failures >= l.threshold && !l.failsafe.Load() {
			l.failsafe.Store(true)
			l.logger.Errorw("device keeps failing, failsafe engaged: output forced neutral",
				"failures", l.failures)
		}
	} else {
		l.failures = 0
	}

	var dt time.Duration
	if !l.lastTick.IsZero() {
		dt = now.Sub(l.lastTick)
	}
	l.lastTick = now
	fb := l.synth.Update(out[input.Steering], out[input.Throttle], out[input.Brake], l.effective.Feedback, dt)

	l.publish(raw, out, buttons, fb)
	if l.recorder != nil {
		l.recorder.Add(record.Sample{
			Time:     now,
			Steering: out[input.Steering],
			Throttle: out[input.Throttle],
			Brake:    out[input.Brake],
			Clutch:   out[input.Clutch],
			Buttons: map[string]bool{
				string(profile.Handbrake): buttons.Handbrake,
				string(profile.GearUp):    buttons.GearUp,
				string(profile.GearDown):  buttons.GearDown,
			},
		})
	}
	return !raw.Exit
}

func (l *Loop) apply(p profile.Profile) {
	l.effective = p.Effective()
	l.normalizer.SetProfile(p)

	v, ok := l.catalog.Get(p.Vehicle)
	if !ok {
		l.logger.Warnw("unknown vehicle, using default", "vehicle", p.Vehicle, "profile", p.Name)
		v = feedback.DefaultVehicle()
	}
	l.synth.SetVehicle(v)

	l.mu.Lock()
	changed := l.name != p.Name
	l.name = p.Name
	l.mu.Unlock()
	if changed {
		l.logger.Infow("profile active", "profile", p.Name, "mode", p.SteeringMode, "vehicle", v.Name())
	}
}

func (l *Loop) write(out [input.NumAxes]float64, b Buttons) error {
	r := l.dev.Range()
	var err error
	for a := input.Axis(0); a < input.NumAxes; a++ {
		v := device.ToDevice(out[a], !a.Bidirectional(), r)
		err = multierr.Append(err, l.dev.SetAxis(Layout[a], v))
	}
	err = multierr.Append(err, l.dev.SetButton(ButtonHandbrake, b.Handbrake))
	err = multierr.Append(err, l.dev.SetButton(ButtonGearUp, b.GearUp))
	err = multierr.Append(err, l.dev.SetButton(ButtonGearDown, b.GearDown))
	return multierr.Append(err, l.dev.Flush())
}

func (l *Loop) publish(raw input.Raw, out [input.NumAxes]float64, b Buttons, fb feedback.Output) {
	l.seq++
	t := Telemetry{
		Tick:      l.seq,
		Profile:   l.ProfileName(),
		Vehicle:   l.synth.Vehicle().Name(),
		Raw:       axesFrom(raw.Axes),
		Output:    axesFrom(out),
		Buttons:   b,
		Feedback:  fb,
		Failsafe:  l.failsafe.Load(),
		Override:  l.override.Load(),
		Recording: l.recorder != nil && l.recorder.Active(),
		Dropped:   l.queue.Dropped(),
	}
	l.mu.Lock()
	l.last = t
	l.mu.Unlock()

	select {
	case l.telemetry <- t:
	default:
		// never block the tick on a slow reader
	}
}

// shutdown leaves the device neutral before releasing it.
func (l *Loop) shutdown() error {
	l.pipeline.Reset()
	l.normalizer.Reset()
	err := l.write([input.NumAxes]float64{}, Buttons{})
	if err != nil {
		l.logger.Errorw("writing neutral output on stop", "error", err)
	}
	if l.recorder != nil && l.recorder.Active() {
		if _, rerr := l.recorder.Stop(); rerr != nil {
			err = multierr.Append(err, rerr)
		}
	}
	err = multierr.Append(err, errors.Wrap(l.dev.Close(), "closing device"))
	l.logger.Info("control loop stopped")
	return err
}
