package tray

import (
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"fyne.io/systray"
	"go.uber.org/zap"
)

// ShutdownFunc is called when "Exit" is clicked
type ShutdownFunc func()

// Controller is the part of the control loop the tray menu drives.
type Controller interface {
	SetOverride(on bool)
	Override() bool
	Failsafe() bool
	ClearFailsafe()
}

const statePollInterval = 500 * time.Millisecond

// Tray manages the system tray icon and menu
type Tray struct {
	shutdownFunc ShutdownFunc
	ctrl         Controller
	url          string
	logger       *zap.SugaredLogger
	once         sync.Once
	shuttingDown atomic.Bool
	menuOpen     *systray.MenuItem
	menuOverride *systray.MenuItem
	menuClear    *systray.MenuItem
	menuExit     *systray.MenuItem
}

// New creates a new Tray instance
func New(ctrl Controller, url string, shutdownFn ShutdownFunc, logger *zap.SugaredLogger) *Tray {
	return &Tray{
		shutdownFunc: shutdownFn,
		ctrl:         ctrl,
		url:          url,
		logger:       logger,
	}
}

// Run initializes and runs the system tray (blocks until Quit())
func (t *Tray) Run(iconData []byte) {
	systray.Run(func() {
		t.onReady(iconData)
	}, func() {
		t.onExit()
	})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	if t.shuttingDown.CompareAndSwap(false, true) {
		systray.Quit()
	}
}

// onReady is called when the tray is ready
func (t *Tray) onReady(iconData []byte) {
	if iconData != nil {
		systray.SetIcon(iconData)
	}
	systray.SetTitle("DriveAssist")
	systray.SetTooltip("DriveAssist - " + t.url)

	t.menuOpen = systray.AddMenuItem("Open Visualizer", "Open web interface")
	systray.AddSeparator()
	t.menuOverride = systray.AddMenuItemCheckbox("Emergency Override", "Force neutral output", t.ctrl.Override())
	t.menuClear = systray.AddMenuItem("Clear Failsafe", "Resume output after device errors")
	t.menuClear.Disable()
	systray.AddSeparator()
	t.menuExit = systray.AddMenuItem("Exit", "Quit application")

	// Handle menu clicks in separate goroutines to prevent blocking
	go t.handleMenuClicks()

	t.logger.Info("system tray initialized")
}

// handleMenuClicks processes menu item clicks without blocking
func (t *Tray) handleMenuClicks() {
	ticker := time.NewTicker(statePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.menuOpen.ClickedCh:
			if !t.shuttingDown.Load() {
				t.openBrowser()
			}
		case <-t.menuOverride.ClickedCh:
			t.ctrl.SetOverride(!t.ctrl.Override())
			t.sync()
		case <-t.menuClear.ClickedCh:
			t.ctrl.ClearFailsafe()
		case <-ticker.C:
			// the override key and the web page change state too
			t.sync()
		case <-t.menuExit.ClickedCh:
			if t.shuttingDown.CompareAndSwap(false, true) {
				t.once.Do(t.shutdownFunc)
				systray.Quit()
				return
			}
		}
	}
}

func (t *Tray) sync() {
	if t.ctrl.Override() {
		t.menuOverride.Check()
	} else {
		t.menuOverride.Uncheck()
	}
	if t.ctrl.Failsafe() {
		t.menuClear.Enable()
		systray.SetTooltip("DriveAssist - FAILSAFE, output neutral")
	} else {
		t.menuClear.Disable()
		systray.SetTooltip("DriveAssist - " + t.url)
	}
}

// onExit is called when the tray is exiting
func (t *Tray) onExit() {
	t.shuttingDown.Store(true)
	t.logger.Info("system tray exiting")
}

// openBrowser opens the default web browser
func (t *Tray) openBrowser() {
	// Prevent multiple browser launches during shutdown
	if t.shuttingDown.Load() {
		return
	}

	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", t.url)
	case "darwin":
		cmd = exec.Command("open", t.url)
	default:
		cmd = exec.Command("xdg-open", t.url)
	}

	if err := cmd.Start(); err != nil {
		t.logger.Warnw("failed to open browser", "error", err)
	}
}
