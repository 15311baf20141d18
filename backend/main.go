package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/soar/DriveAssist/backend/internal/config"
	"github.com/soar/DriveAssist/backend/internal/console"
	"github.com/soar/DriveAssist/backend/internal/control"
	"github.com/soar/DriveAssist/backend/internal/device"
	"github.com/soar/DriveAssist/backend/internal/feedback"
	"github.com/soar/DriveAssist/backend/internal/hub"
	"github.com/soar/DriveAssist/backend/internal/input"
	"github.com/soar/DriveAssist/backend/internal/logging"
	"github.com/soar/DriveAssist/backend/internal/profile"
	"github.com/soar/DriveAssist/backend/internal/record"
	"github.com/soar/DriveAssist/backend/internal/server"
	"github.com/soar/DriveAssist/backend/internal/tray"
	"github.com/soar/DriveAssist/backend/internal/wheel"
)

// Cross-platform signal handling: use os.Interrupt on all platforms
// On Windows: os.Interrupt is sent when Ctrl+C is pressed
// On Unix: os.Interrupt is equivalent to syscall.SIGINT
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, args, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.DevLog)
	if err != nil {
		logger = logging.Fallback()
		logger.Warnw("using fallback logger", "error", err)
	}
	defer func() { _ = logger.Sync() }()

	name := "run"
	if len(args) > 0 {
		name, args = args[0], args[1:]
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintln(os.Stderr, usage())
		os.Exit(2)
	}
	if err := cmd(cfg, args, os.Stdout, logger); err != nil {
		logger.Errorw(name+" failed", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func usage() string {
	names := lo.Keys(commands)
	sort.Strings(names)
	return fmt.Sprintf("usage: driveassist [flags] %v", names)
}

// runCommand starts the control loop with its input sources, the visualizer
// and the tray, and blocks until shutdown.
func runCommand(cfg *config.Config, _ []string, _ io.Writer, logger *zap.SugaredLogger) error {
	interactive := console.Interactive()
	interrupted, rearmInterrupts := console.Interrupts(logger)

	// Create cancellable context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals...)
	defer signal.Stop(sigCh)

	store, err := profile.NewStore(cfg.ProfilesDir, logger.Named("profiles"))
	if err != nil {
		return err
	}
	// a rejected profile is logged by the store and replaced by the default
	active, _ := store.LoadOrDefault(cfg.Profile)

	catalog, err := feedback.LoadCatalog(cfg.VehiclesDir, logger.Named("vehicles"))
	if err != nil {
		logger.Warnw("some vehicle files were skipped", "error", err)
	}
	recorder, err := record.NewRecorder(cfg.RecordingsDir, logger.Named("record"))
	if err != nil {
		return err
	}

	dev, err := device.Open(cfg.DeviceConfig(), logger.Named("device"))
	if err != nil {
		return errors.Wrap(err, "opening virtual joystick")
	}

	queue := input.NewQueue(cfg.Queue.Capacity)
	loop := control.New(active, queue, dev, control.Options{
		TickRate:          cfg.TickRate,
		FailsafeThreshold: cfg.Failsafe.Threshold,
		Catalog:           catalog,
		Recorder:          recorder,
	}, logger.Named("control"))
	ctrl := &controller{Loop: loop, store: store, logger: logger.Named("app")}

	// Create and start hub
	h := hub.NewHub(logger.Named("hub"))
	go h.Run(ctx)

	// Create broadcaster
	broadcaster := hub.NewBroadcaster(h, loop.Telemetry(), logger.Named("broadcast"))
	go broadcaster.Run(ctx)

	// Create and start HTTP server
	srv := server.New(h, broadcaster, ctrl, ctrl, getFrontendFS(), cfg.Listen, logger.Named("http"))
	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	var sources sync.WaitGroup
	start := func(name string, run func(context.Context) error) {
		sources.Add(1)
		go func() {
			defer sources.Done()
			if err := run(ctx); err != nil {
				logger.Warnw("source stopped", "source", name, "error", err)
			}
		}()
	}
	if cfg.Input.Keyboard != "" {
		start("keyboard", input.NewEvdevSource(cfg.Input.Keyboard, queue, logger.Named("keyboard")).Run)
	}
	if cfg.Input.Mouse != "" {
		start("mouse", input.NewEvdevSource(cfg.Input.Mouse, queue, logger.Named("mouse")).Run)
	}
	if cfg.Input.Wheel {
		src := wheel.NewSource(queue, logger.Named("wheel"))
		src.OnInit(rearmInterrupts)
		start("wheel", src.Run)
	}
	if cfg.Profiles.Watch {
		start("profile watcher", func(ctx context.Context) error {
			return store.Watch(ctx, cfg.Profiles.Debounce, ctrl.onProfileChanged)
		})
	}

	// Channel for tray-triggered shutdown
	shutdownRequested := make(chan struct{})

	// Without a console the tray is the only way to quit.
	var t *tray.Tray
	if cfg.Tray || !interactive {
		t = tray.New(ctrl, cfg.URL(), func() {
			close(shutdownRequested)
		}, logger.Named("tray"))
		go t.Run(tray.GetIcon())
	} else {
		logger.Info("press Ctrl+C to exit")
	}

	loopDone := make(chan error, 1)
	go func() {
		loopDone <- loop.Run(ctx)
	}()

	logger.Infow("DriveAssist started", "url", cfg.URL(), "profile", active.Name, "config", cfg.ConfigFile)

	// Wait for shutdown signal, tray request, exit key, or server error
	var loopErr error
	loopStopped := false
	select {
	case <-sigCh:
		logger.Info("shutting down")
	case <-interrupted:
		logger.Info("shutting down")
	case <-shutdownRequested:
		logger.Info("shutdown requested from tray")
	case err := <-serverErrCh:
		logger.Errorw("HTTP server error", "error", err)
		loopErr = err
	case loopErr = <-loopDone:
		loopStopped = true
	}
	cancel()

	// the loop leaves the device neutral and closed before it returns
	if !loopStopped {
		loopErr = multierr.Append(loopErr, <-loopDone)
	}
	sources.Wait()

	// Shutdown the HTTP server gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("HTTP server shutdown error", "error", err)
	}
	if t != nil {
		t.Quit()
	}

	logger.Info("DriveAssist stopped")
	return withoutExit(loopErr)
}

// withoutExit drops the exit-key marker, which is a normal way to stop.
func withoutExit(err error) error {
	var rest error
	for _, e := range multierr.Errors(err) {
		if !errors.Is(e, control.ErrExit) {
			rest = multierr.Append(rest, e)
		}
	}
	return rest
}
