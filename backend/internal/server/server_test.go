package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/soar/DriveAssist/backend/internal/control"
	"github.com/soar/DriveAssist/backend/internal/hub"
)

type fakeController struct {
	mu        sync.Mutex
	override  bool
	cleared   int
	profile   string
	recording bool
}

func (f *fakeController) SetOverride(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.override = on
}

func (f *fakeController) ClearFailsafe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func (f *fakeController) SelectProfile(name string) error {
	if name != "Forza" && name != "Default" {
		return errors.Errorf("profile %q not found", name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = name
	return nil
}

func (f *fakeController) SetRecording(on bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recording = on
	return "rec-1", nil
}

func (f *fakeController) ListProfiles() ([]string, error) {
	return []string{"Default", "Forza"}, nil
}

func (f *fakeController) ActiveProfile() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profile == "" {
		return "Default"
	}
	return f.profile
}

func (f *fakeController) snapshot() fakeController {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeController{override: f.override, cleared: f.cleared, profile: f.profile, recording: f.recording}
}

type testEnv struct {
	srv     *httptest.Server
	hub     *hub.Hub
	changes chan control.Telemetry
	ctrl    *fakeController
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	ctx, cancel := context.WithCancel(context.Background())

	h := hub.NewHub(logger)
	go h.Run(ctx)
	changes := make(chan control.Telemetry, 8)
	b := hub.NewBroadcaster(h, changes, logger)
	go b.Run(ctx)

	frontend := fstest.MapFS{
		"index.html": {Data: []byte("<!doctype html>\n<html>\n  <head>\n    <title>DriveAssist</title>\n  </head>\n  <!-- layout -->\n  <body>\n    <p>  hello  </p>\n  </body>\n</html>\n")},
		"style.css":  {Data: []byte("body {\n  margin: 0px;\n}\n")},
	}
	ctrl := &fakeController{}
	s := New(h, b, ctrl, ctrl, frontend, ":0", logger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &testEnv{srv: srv, hub: h, changes: changes, ctrl: ctrl}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) hub.WSMessage {
	t.Helper()
	test.That(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)), test.ShouldBeNil)
	_, data, err := conn.ReadMessage()
	test.That(t, err, test.ShouldBeNil)
	var msg hub.WSMessage
	test.That(t, json.Unmarshal(data, &msg), test.ShouldBeNil)
	return msg
}

// readUntil skips messages of other types, such as periodic full syncs.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) hub.WSMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := readMessage(t, conn)
		if msg.Type == typ {
			return msg
		}
	}
	t.Fatalf("no %q message received", typ)
	return hub.WSMessage{}
}

func TestStaticFilesAreMinified(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/")
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, string(body), test.ShouldContainSubstring, "DriveAssist")
	test.That(t, string(body), test.ShouldNotContainSubstring, "layout")
	test.That(t, string(body), test.ShouldNotContainSubstring, "\n  ")

	resp, err = http.Get(env.srv.URL + "/style.css")
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	body, err = io.ReadAll(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(body), test.ShouldEqual, "body{margin:0}")
}

func TestProfilesAPI(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/api/profiles")
	test.That(t, err, test.ShouldBeNil)
	defer resp.Body.Close()
	test.That(t, resp.Header.Get("Content-Type"), test.ShouldEqual, "application/json")

	var got ProfilesResponse
	test.That(t, json.NewDecoder(resp.Body).Decode(&got), test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, ProfilesResponse{Active: "Default", Profiles: []string{"Default", "Forza"}})

	resp, err = http.Post(env.srv.URL+"/api/profiles", "application/json", strings.NewReader("{}"))
	test.That(t, err, test.ShouldBeNil)
	resp.Body.Close()
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusMethodNotAllowed)
}

func TestWebSocketSendsFullThenDelta(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	first := readMessage(t, conn)
	test.That(t, first.Type, test.ShouldEqual, hub.TypeFull)
	test.That(t, first.Data, test.ShouldNotBeNil)
	test.That(t, env.hub.Count(), test.ShouldEqual, 1)

	env.changes <- control.Telemetry{Tick: 1, Profile: "Default", Output: control.Axes{Steering: 0.5}}
	delta := readUntil(t, conn, hub.TypeDelta)
	test.That(t, delta.Seq, test.ShouldBeGreaterThan, first.Seq)
	test.That(t, delta.Changes, test.ShouldNotBeNil)
	test.That(t, *delta.Changes.Profile, test.ShouldEqual, "Default")
	test.That(t, delta.Changes.Output.Steering, test.ShouldEqual, 0.5)
	test.That(t, delta.Changes.Raw, test.ShouldBeNil)
}

func TestWebSocketCommands(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)
	readUntil(t, conn, hub.TypeFull)

	send := func(msg hub.ClientMessage) {
		t.Helper()
		test.That(t, conn.WriteJSON(msg), test.ShouldBeNil)
	}

	send(hub.ClientMessage{Type: hub.CmdOverride, Enabled: true})
	ack := readUntil(t, conn, hub.TypeEvent)
	test.That(t, ack.Event, test.ShouldEqual, "override_set")
	test.That(t, env.ctrl.snapshot().override, test.ShouldBeTrue)

	send(hub.ClientMessage{Type: hub.CmdClearFailsafe})
	ack = readUntil(t, conn, hub.TypeEvent)
	test.That(t, ack.Event, test.ShouldEqual, "failsafe_cleared")
	test.That(t, env.ctrl.snapshot().cleared, test.ShouldEqual, 1)

	send(hub.ClientMessage{Type: hub.CmdSelectProfile, Profile: "Forza"})
	ack = readUntil(t, conn, hub.TypeEvent)
	test.That(t, ack.Event, test.ShouldEqual, "profile_selected")
	test.That(t, ack.Profile, test.ShouldEqual, "Forza")

	send(hub.ClientMessage{Type: hub.CmdSelectProfile, Profile: "Missing"})
	bad := readUntil(t, conn, hub.TypeError)
	test.That(t, bad.Event, test.ShouldEqual, hub.CmdSelectProfile)
	test.That(t, bad.Error, test.ShouldContainSubstring, "Missing")
	test.That(t, env.ctrl.snapshot().profile, test.ShouldEqual, "Forza")

	send(hub.ClientMessage{Type: hub.CmdRecord, Enabled: true})
	ack = readUntil(t, conn, hub.TypeEvent)
	test.That(t, ack.Event, test.ShouldEqual, "recording_started")
	test.That(t, ack.Recording, test.ShouldEqual, "rec-1")

	send(hub.ClientMessage{Type: "warp_drive"})
	bad = readUntil(t, conn, hub.TypeError)
	test.That(t, bad.Error, test.ShouldContainSubstring, "warp_drive")
}
