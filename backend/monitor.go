package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/soar/DriveAssist/backend/internal/config"
	"github.com/soar/DriveAssist/backend/internal/control"
	"github.com/soar/DriveAssist/backend/internal/hub"
)

// monitorCommand prints live telemetry from a running instance.
func monitorCommand(cfg *config.Config, _ []string, out io.Writer, logger *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()
	return monitor(ctx, wsURL(cfg.Listen), out, logger)
}

func wsURL(listen string) string {
	host := listen
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	return u.String()
}

func monitor(ctx context.Context, addr string, out io.Writer, logger *zap.SugaredLogger) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return errors.Wrapf(err, "connecting to %s", addr)
	}
	defer conn.Close()
	logger.Infow("monitoring", "url", addr)

	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	var (
		state control.Telemetry
		synced bool
	)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "reading telemetry")
		}
		var msg hub.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnw("bad message", "error", err)
			continue
		}
		switch msg.Type {
		case hub.TypeFull:
			if msg.Data != nil {
				state = *msg.Data
				synced = true
			}
		case hub.TypeDelta:
			if !synced || msg.Changes == nil {
				continue
			}
			msg.Changes.Apply(&state)
		default:
			continue
		}
		if _, err := fmt.Fprintln(out, formatTelemetry(state)); err != nil {
			return err
		}
	}
}

func formatTelemetry(t control.Telemetry) string {
	status := "ok"
	switch {
	case t.Failsafe:
		status = "FAILSAFE"
	case t.Override:
		status = "OVERRIDE"
	}
	return fmt.Sprintf("%-12s steer %+.3f  thr %.3f  brk %.3f  clu %.3f  ffb %.2f %-9s %5.1f km/h  [%s]",
		t.Profile, t.Output.Steering, t.Output.Throttle, t.Output.Brake, t.Output.Clutch,
		t.Feedback.Intensity, t.Feedback.Pattern, t.Feedback.SpeedKMH, status)
}
