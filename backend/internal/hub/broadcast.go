package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/soar/DriveAssist/backend/internal/control"
)

const (
	fullSyncInterval = 5 * time.Second
	deltaCountSync   = 100
)

// Broadcaster listens for loop telemetry and broadcasts it to the hub.
type Broadcaster struct {
	hub     *Hub
	changes <-chan control.Telemetry
	logger  *zap.SugaredLogger

	mu        sync.Mutex
	lastState control.Telemetry
	seq       int64
}

func NewBroadcaster(h *Hub, changes <-chan control.Telemetry, logger *zap.SugaredLogger) *Broadcaster {
	return &Broadcaster{
		hub:     h,
		changes: changes,
		logger:  logger,
	}
}

// Run starts the broadcaster loop. Should be run in a goroutine.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(fullSyncInterval)
	defer ticker.Stop()

	var deltaCount int64

	for {
		select {
		case <-ctx.Done():
			return

		case state, ok := <-b.changes:
			if !ok {
				return
			}

			b.mu.Lock()
			delta := control.ComputeDelta(b.lastState, state)
			// keep the reference point when nothing moved far enough, so
			// slow drifts still show up once they add up
			if delta.IsEmpty() {
				b.lastState.Tick = state.Tick
				b.mu.Unlock()
				continue
			}
			b.lastState = state
			b.seq++
			deltaCount++
			seq := b.seq
			b.mu.Unlock()

			// Send full sync periodically
			if deltaCount >= deltaCountSync {
				b.sendFull(seq, state)
				deltaCount = 0
			} else {
				b.sendDelta(seq, delta)
			}

		case <-ticker.C:
			b.mu.Lock()
			if b.lastState.Tick == 0 {
				b.mu.Unlock()
				continue
			}
			b.seq++
			seq, state := b.seq, b.lastState
			b.mu.Unlock()
			b.sendFull(seq, state)
		}
	}
}

// SendInitialState sends the current full state to a newly connected client.
func (b *Broadcaster) SendInitialState(c *Client) {
	b.mu.Lock()
	b.seq++
	msg := NewFullMessage(b.seq, &b.lastState)
	data, err := json.Marshal(msg)
	b.mu.Unlock()
	if err != nil {
		b.logger.Errorw("error marshaling initial state", "error", err)
		return
	}
	b.hub.Send(c, data)
}

func (b *Broadcaster) sendFull(seq int64, state control.Telemetry) {
	msg := NewFullMessage(seq, &state)
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Errorw("error marshaling full message", "error", err)
		return
	}
	b.hub.Broadcast(data)
}

func (b *Broadcaster) sendDelta(seq int64, delta *control.Delta) {
	msg := NewDeltaMessage(seq, delta)
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Errorw("error marshaling delta message", "error", err)
		return
	}
	b.hub.Broadcast(data)
}
