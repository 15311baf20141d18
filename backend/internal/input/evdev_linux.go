//go:build linux

package input

import (
	"context"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// evdev key values
const (
	keyReleased = 0
	keyPressed  = 1
)

var evdevKeyNames = map[int]string{
	evdev.KEY_A: "a", evdev.KEY_B: "b", evdev.KEY_C: "c", evdev.KEY_D: "d",
	evdev.KEY_E: "e", evdev.KEY_F: "f", evdev.KEY_G: "g", evdev.KEY_H: "h",
	evdev.KEY_I: "i", evdev.KEY_J: "j", evdev.KEY_K: "k", evdev.KEY_L: "l",
	evdev.KEY_M: "m", evdev.KEY_N: "n", evdev.KEY_O: "o", evdev.KEY_P: "p",
	evdev.KEY_Q: "q", evdev.KEY_R: "r", evdev.KEY_S: "s", evdev.KEY_T: "t",
	evdev.KEY_U: "u", evdev.KEY_V: "v", evdev.KEY_W: "w", evdev.KEY_X: "x",
	evdev.KEY_Y: "y", evdev.KEY_Z: "z",

	evdev.KEY_0: "0", evdev.KEY_1: "1", evdev.KEY_2: "2", evdev.KEY_3: "3",
	evdev.KEY_4: "4", evdev.KEY_5: "5", evdev.KEY_6: "6", evdev.KEY_7: "7",
	evdev.KEY_8: "8", evdev.KEY_9: "9",

	evdev.KEY_UP:    "up",
	evdev.KEY_DOWN:  "down",
	evdev.KEY_LEFT:  "left",
	evdev.KEY_RIGHT: "right",

	evdev.KEY_SPACE:      "space",
	evdev.KEY_ESC:        "esc",
	evdev.KEY_ENTER:      "enter",
	evdev.KEY_TAB:        "tab",
	evdev.KEY_LEFTSHIFT:  "shift",
	evdev.KEY_RIGHTSHIFT: "right_shift",
	evdev.KEY_LEFTCTRL:   "ctrl",
	evdev.KEY_RIGHTCTRL:  "right_ctrl",
	evdev.KEY_LEFTALT:    "alt",
	evdev.KEY_RIGHTALT:   "right_alt",

	evdev.KEY_F1: "f1", evdev.KEY_F2: "f2", evdev.KEY_F3: "f3", evdev.KEY_F4: "f4",
	evdev.KEY_F5: "f5", evdev.KEY_F6: "f6", evdev.KEY_F7: "f7", evdev.KEY_F8: "f8",
	evdev.KEY_F9: "f9", evdev.KEY_F10: "f10", evdev.KEY_F11: "f11", evdev.KEY_F12: "f12",

	evdev.BTN_LEFT:   "mouse_left",
	evdev.BTN_RIGHT:  "mouse_right",
	evdev.BTN_MIDDLE: "mouse_middle",
}

// EvdevSource reads key and relative mouse events from a Linux input device
// node such as /dev/input/event3.
type EvdevSource struct {
	path   string
	queue  *Queue
	logger *zap.SugaredLogger
}

// NewEvdevSource creates a source for the device node at path.
func NewEvdevSource(path string, q *Queue, logger *zap.SugaredLogger) *EvdevSource {
	return &EvdevSource{path: path, queue: q, logger: logger}
}

// Run reads the device until ctx is done or the device goes away.
func (s *EvdevSource) Run(ctx context.Context) error {
	dev, err := evdev.Open(s.path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", s.path)
	}
	s.logger.Infow("reading input device", "path", s.path, "name", dev.Name)

	go func() {
		<-ctx.Done()
		// unblocks Read
		dev.File.Close()
	}()

	for {
		events, err := dev.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrapf(err, "reading %s", s.path)
		}
		for i := range events {
			if ev, ok := translateEvdev(&events[i]); ok {
				s.queue.Push(ev)
			}
		}
	}
}

func translateEvdev(raw *evdev.InputEvent) (Event, bool) {
	now := time.Now()
	switch raw.Type {
	case evdev.EV_KEY:
		name, ok := evdevKeyNames[int(raw.Code)]
		if !ok {
			return Event{}, false
		}
		switch raw.Value {
		case keyPressed:
			return Event{Kind: KeyDown, Key: name, Time: now}, true
		case keyReleased:
			return Event{Kind: KeyUp, Key: name, Time: now}, true
		}
	case evdev.EV_REL:
		switch raw.Code {
		case evdev.REL_X:
			return Event{Kind: MouseMove, DX: float64(raw.Value), Time: now}, true
		case evdev.REL_Y:
			return Event{Kind: MouseMove, DY: float64(raw.Value), Time: now}, true
		}
	}
	return Event{}, false
}
