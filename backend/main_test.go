package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/soar/DriveAssist/backend/internal/config"
	"github.com/soar/DriveAssist/backend/internal/control"
	"github.com/soar/DriveAssist/backend/internal/hub"
	"github.com/soar/DriveAssist/backend/internal/profile"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Listen:        ":0",
		ProfilesDir:   filepath.Join(dir, "profiles"),
		VehiclesDir:   filepath.Join(dir, "vehicles"),
		RecordingsDir: filepath.Join(dir, "recordings"),
	}
}

func TestWithoutExit(t *testing.T) {
	test.That(t, withoutExit(control.ErrExit), test.ShouldBeNil)
	test.That(t, withoutExit(nil), test.ShouldBeNil)

	closeErr := errors.New("closing device")
	err := withoutExit(multierr.Append(control.ErrExit, closeErr))
	test.That(t, err, test.ShouldEqual, closeErr)
}

func TestWSURL(t *testing.T) {
	test.That(t, wsURL(":8080"), test.ShouldEqual, "ws://localhost:8080/ws")
	test.That(t, wsURL("10.0.0.2:9000"), test.ShouldEqual, "ws://10.0.0.2:9000/ws")
}

func TestProfileCommands(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	cfg := testConfig(t)

	// import a profile written elsewhere
	src := filepath.Join(t.TempDir(), "Forza.json")
	p := profile.Default()
	p.Name = "Forza"
	p.SteeringMode = profile.ModeRace
	data, err := profile.Marshal(p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, os.WriteFile(src, data, 0o644), test.ShouldBeNil)

	var out bytes.Buffer
	test.That(t, importCommand(cfg, []string{src}, &out, logger), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, `"Forza"`)

	// a broken file shows up in the listing with its error
	bad := `{"name":"Broken","deadzone":-5}`
	test.That(t, os.WriteFile(filepath.Join(cfg.ProfilesDir, "Broken.json"), []byte(bad), 0o644), test.ShouldBeNil)

	out.Reset()
	test.That(t, profilesCommand(cfg, nil, &out, logger), test.ShouldBeNil)
	listing := out.String()
	test.That(t, listing, test.ShouldContainSubstring, "Forza")
	test.That(t, listing, test.ShouldContainSubstring, "Race")
	test.That(t, listing, test.ShouldContainSubstring, "built-in")
	test.That(t, listing, test.ShouldContainSubstring, "Broken")
	test.That(t, listing, test.ShouldContainSubstring, "deadzone")

	dst := filepath.Join(t.TempDir(), "out.json")
	out.Reset()
	test.That(t, exportCommand(cfg, []string{"Forza", dst}, &out, logger), test.ShouldBeNil)
	exported, err := profile.LoadFile(dst)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, exported.SteeringMode, test.ShouldEqual, profile.ModeRace)

	test.That(t, exportCommand(cfg, []string{"Forza"}, &out, logger), test.ShouldNotBeNil)
	test.That(t, importCommand(cfg, nil, &out, logger), test.ShouldNotBeNil)
}

func TestSchemaCommand(t *testing.T) {
	var out bytes.Buffer
	test.That(t, schemaCommand(nil, nil, &out, zaptest.NewLogger(t).Sugar()), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "steer_speed")
	test.That(t, out.String(), test.ShouldContainSubstring, "curve_strength")
}

func TestMonitor(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		state := control.Telemetry{Tick: 1, Profile: "Forza", Output: control.Axes{Steering: -0.25}}
		_ = conn.WriteJSON(hub.NewFullMessage(1, &state))
		next := state
		next.Output.Throttle = 0.75
		next.Failsafe = true
		_ = conn.WriteJSON(hub.NewDeltaMessage(2, control.ComputeDelta(state, next)))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out bytes.Buffer
	addr := "ws" + strings.TrimPrefix(srv.URL, "http")
	test.That(t, monitor(ctx, addr, &out, zaptest.NewLogger(t).Sugar()), test.ShouldBeNil)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	test.That(t, len(lines), test.ShouldEqual, 2)
	test.That(t, lines[0], test.ShouldContainSubstring, "steer -0.250")
	test.That(t, lines[0], test.ShouldContainSubstring, "[ok]")
	test.That(t, lines[1], test.ShouldContainSubstring, "thr 0.750")
	test.That(t, lines[1], test.ShouldContainSubstring, "[FAILSAFE]")
}
