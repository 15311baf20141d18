//go:build sdl

package wheel

import (
	"context"
	"runtime"

	"github.com/jupiterrider/purego-sdl3/sdl"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/soar/DriveAssist/backend/internal/input"
)

// Available reports whether this build can read wheels.
const Available = true

const pollDelayNS = 4_000_000 // ~250Hz, faster than the control tick

type joystickInfo struct {
	joystick *sdl.Joystick
	mapping  *Mapping
	name     string
	id       sdl.JoystickID
}

// Source reads a physical wheel, pedal set or gamepad through the SDL3
// joystick API and pushes absolute axis and button events into an input.Queue.
type Source struct {
	queue     *input.Queue
	logger    *zap.SugaredLogger
	joysticks map[sdl.JoystickID]*joystickInfo
	activeID  sdl.JoystickID // the first connected joystick
	hasActive bool
	prev      snapshot
	onInit    func()
}

// NewSource creates a source that feeds q.
func NewSource(q *input.Queue, logger *zap.SugaredLogger) *Source {
	return &Source{
		queue:     q,
		logger:    logger,
		joysticks: make(map[sdl.JoystickID]*joystickInfo),
	}
}

// OnInit registers fn to run on the SDL thread right after initialization.
// SDL replaces the process console handlers during init, so callers use this
// to install theirs again.
func (w *Source) OnInit(fn func()) {
	w.onInit = fn
}

// Run initializes SDL and polls until ctx is done. SDL requires all calls on
// one OS thread, so Run locks its goroutine to the current thread.
func (w *Source) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !sdl.Init(sdl.InitJoystick) {
		return errors.Errorf("SDL init failed: %s", sdl.GetError())
	}
	defer sdl.Quit()

	w.logger.Info("SDL3 joystick subsystem initialized")
	if w.onInit != nil {
		w.onInit()
	}

	for _, id := range sdl.GetJoysticks() {
		w.openJoystick(id)
	}

	for {
		select {
		case <-ctx.Done():
			w.closeAll()
			return nil
		default:
		}

		w.processEvents()
		w.pollState()
		sdl.DelayNS(pollDelayNS)
	}
}

func (w *Source) processEvents() {
	var event sdl.Event
	for sdl.PollEvent(&event) {
		switch event.Type() {
		case sdl.EventJoystickAdded:
			w.openJoystick(event.JDevice().Which)
		case sdl.EventJoystickRemoved:
			w.removeJoystick(event.JDevice().Which)
		}
	}
}

func (w *Source) openJoystick(instanceID sdl.JoystickID) {
	if _, exists := w.joysticks[instanceID]; exists {
		return
	}

	js := sdl.OpenJoystick(instanceID)
	if js == nil {
		w.logger.Warnw("failed to open joystick", "id", instanceID, "error", sdl.GetError())
		return
	}

	jsID := sdl.GetJoystickID(js)
	vendorID := sdl.GetJoystickVendor(js)
	productID := sdl.GetJoystickProduct(js)
	name := sdl.GetJoystickName(js)
	mapping := GetMapping(vendorID, productID)

	w.joysticks[jsID] = &joystickInfo{
		joystick: js,
		mapping:  mapping,
		name:     name,
		id:       jsID,
	}

	w.logger.Infow("joystick connected",
		"name", name,
		"vid", vendorID,
		"pid", productID,
		"mapping", mapping.Name,
		"axes", sdl.GetNumJoystickAxes(js),
		"buttons", sdl.GetNumJoystickButtons(js))

	if !w.hasActive {
		w.activeID = jsID
		w.hasActive = true
		w.logger.Infow("active joystick set", "name", name, "id", jsID)
	}
}

func (w *Source) removeJoystick(instanceID sdl.JoystickID) {
	info, exists := w.joysticks[instanceID]
	if !exists {
		return
	}

	w.logger.Infow("joystick disconnected", "name", info.name)
	sdl.CloseJoystick(info.joystick)
	delete(w.joysticks, instanceID)

	if !w.hasActive || w.activeID != instanceID {
		return
	}
	w.hasActive = false
	// Center everything the unplugged device was holding.
	w.release()

	for id, js := range w.joysticks {
		if sdl.JoystickConnected(js.joystick) {
			w.activeID = id
			w.hasActive = true
			w.logger.Infow("active joystick switched", "name", js.name, "id", id)
			break
		}
	}
}

func (w *Source) release() {
	var cur snapshot
	cur.present = w.prev.present
	cur.buttons = make([]bool, len(w.prev.buttons))
	for _, ev := range diff(&w.prev, &cur) {
		w.queue.Push(ev)
	}
	w.prev = snapshot{}
}

func (w *Source) closeAll() {
	for id, info := range w.joysticks {
		sdl.CloseJoystick(info.joystick)
		delete(w.joysticks, id)
	}
	w.hasActive = false
}

func (w *Source) pollState() {
	if !w.hasActive {
		return
	}

	info, exists := w.joysticks[w.activeID]
	if !exists || !sdl.JoystickConnected(info.joystick) {
		return
	}
	js := info.joystick

	numAxes := sdl.GetNumJoystickAxes(js)
	var cur snapshot
	info.mapping.readAxes(&cur, func(index int32) (int16, bool) {
		if index >= numAxes {
			return 0, false
		}
		return sdl.GetJoystickAxis(js, index), true
	})

	numButtons := sdl.GetNumJoystickButtons(js)
	cur.buttons = make([]bool, numButtons)
	for i := int32(0); i < numButtons; i++ {
		cur.buttons[i] = sdl.GetJoystickButton(js, i)
	}

	for _, ev := range diff(&w.prev, &cur) {
		if !w.queue.Push(ev) {
			w.logger.Debugw("input queue full, dropped event")
		}
	}
	// Only remember axes that moved past the threshold so slow drifts still
	// get reported once they add up.
	for a := input.Axis(0); a < input.NumAxes; a++ {
		if cur.present[a] && (!w.prev.present[a] || absDiff(w.prev.axes[a], cur.axes[a]) >= analogThreshold) {
			w.prev.axes[a] = cur.axes[a]
			w.prev.present[a] = true
		}
	}
	w.prev.buttons = cur.buttons
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
