// Package record captures per-tick driving inputs to JSON files so a session
// can be reviewed or replayed.
package record

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a recording does not exist.
var ErrNotFound = errors.New("recording not found")

// Sample is one recorded tick.
type Sample struct {
	Time     time.Time       `json:"timestamp"`
	Steering float64         `json:"steering"`
	Throttle float64         `json:"throttle"`
	Brake    float64         `json:"brake"`
	Clutch   float64         `json:"clutch"`
	Buttons  map[string]bool `json:"buttons,omitempty"`
}

// Recording is a saved session.
type Recording struct {
	ID      string    `json:"id"`
	Profile string    `json:"profile"`
	Started time.Time `json:"started"`
	Samples []Sample  `json:"samples"`
}

// Recorder buffers samples between Start and Stop and writes them to dir.
// Add is called from the control loop; Start and Stop may come from any
// goroutine.
type Recorder struct {
	dir    string
	logger *zap.SugaredLogger

	mu      sync.Mutex
	current *Recording
}

// NewRecorder creates dir if needed.
func NewRecorder(dir string, logger *zap.SugaredLogger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating recordings dir %s", dir)
	}
	return &Recorder{dir: dir, logger: logger}, nil
}

// Start begins a new recording. It is a no-op when one is already running.
func (r *Recorder) Start(profileName string, now time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return r.current.ID
	}
	r.current = &Recording{
		ID:      uuid.NewString(),
		Profile: profileName,
		Started: now,
	}
	r.logger.Infow("recording started", "id", r.current.ID, "profile", profileName)
	return r.current.ID
}

// Active reports whether a recording is running.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// Add appends s to the running recording, if any.
func (r *Recorder) Add(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return
	}
	r.current.Samples = append(r.current.Samples, s)
}

// Stop ends the running recording and saves it. An empty recording is
// discarded and yields an empty id.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	rec := r.current
	r.current = nil
	r.mu.Unlock()

	if rec == nil || len(rec.Samples) == 0 {
		return "", nil
	}
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return "", errors.Wrap(err, "encoding recording")
	}
	path := filepath.Join(r.dir, rec.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "writing %s", path)
	}
	r.logger.Infow("recording saved", "id", rec.ID, "samples", len(rec.Samples), "path", path)
	return rec.ID, nil
}

// List returns the ids of saved recordings, sorted.
func (r *Recorder) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", r.dir)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Load reads a saved recording.
func (r *Recorder) Load(id string) (Recording, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Recording{}, errors.Wrapf(ErrNotFound, "bad id %q", id)
	}
	data, err := os.ReadFile(filepath.Join(r.dir, id+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return Recording{}, errors.Wrap(ErrNotFound, id)
	}
	if err != nil {
		return Recording{}, errors.Wrapf(err, "reading recording %s", id)
	}
	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return Recording{}, errors.Wrapf(err, "parsing recording %s", id)
	}
	return rec, nil
}
