package hub

import (
	"encoding/json"
	"time"

	"github.com/lxzan/gws"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	sendBuffer   = 256
	pingInterval = 10 * time.Second
	readTimeout  = 3 * pingInterval
	sessionKey   = "client"
)

// Controller is what websocket clients may change.
type Controller interface {
	SetOverride(on bool)
	ClearFailsafe()
	SelectProfile(name string) error
	SetRecording(on bool) (string, error)
}

// Client represents a connected WebSocket client.
type Client struct {
	hub  *Hub
	conn *gws.Conn
	send chan []byte
}

// NewClient creates a new Client attached to the hub.
func NewClient(hub *Hub, conn *gws.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

// WritePump sends messages from the send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.WriteClose(1000, nil)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(gws.OpcodeText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WritePing(nil); err != nil {
				return
			}
		}
	}
}

// reply queues msg for this client only.
func (c *Client) reply(msg *WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.hub.Send(c, data)
}

// Handler is the gws event handler for the visualizer endpoint.
type Handler struct {
	gws.BuiltinEventHandler
	hub         *Hub
	broadcaster *Broadcaster
	ctrl        Controller
	logger      *zap.SugaredLogger
}

// NewHandler creates the websocket event handler.
func NewHandler(h *Hub, b *Broadcaster, ctrl Controller, logger *zap.SugaredLogger) *Handler {
	return &Handler{hub: h, broadcaster: b, ctrl: ctrl, logger: logger}
}

// NewUpgrader wraps handler in a gws upgrader.
func NewUpgrader(handler *Handler) *gws.Upgrader {
	return gws.NewUpgrader(handler, &gws.ServerOption{
		Recovery:          gws.Recovery,
		PermessageDeflate: gws.PermessageDeflate{Enabled: true},
	})
}

func (h *Handler) OnOpen(socket *gws.Conn) {
	_ = socket.SetDeadline(time.Now().Add(readTimeout))
	client := NewClient(h.hub, socket)
	socket.Session().Store(sessionKey, client)
	if !h.hub.Register(client) {
		socket.WriteClose(1001, []byte("shutting down"))
		return
	}
	// Send current state to the new client
	h.broadcaster.SendInitialState(client)
	go client.WritePump()
}

func (h *Handler) OnClose(socket *gws.Conn, err error) {
	if client, ok := clientOf(socket); ok {
		h.hub.Unregister(client)
	}
	h.logger.Debugw("websocket closed", "error", err)
}

func (h *Handler) OnPing(socket *gws.Conn, payload []byte) {
	_ = socket.SetDeadline(time.Now().Add(readTimeout))
	_ = socket.WritePong(payload)
}

func (h *Handler) OnPong(socket *gws.Conn, _ []byte) {
	_ = socket.SetDeadline(time.Now().Add(readTimeout))
}

// OnMessage handles client commands.
func (h *Handler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	_ = socket.SetDeadline(time.Now().Add(readTimeout))

	client, ok := clientOf(socket)
	if !ok {
		return
	}

	var clientMsg ClientMessage
	if err := json.Unmarshal(message.Bytes(), &clientMsg); err != nil {
		h.logger.Warnw("error parsing client message", "error", err)
		client.reply(NewErrorMessage("parse", err))
		return
	}

	switch clientMsg.Type {
	case CmdOverride:
		h.ctrl.SetOverride(clientMsg.Enabled)
		client.reply(NewEventMessage("override_set"))

	case CmdClearFailsafe:
		h.ctrl.ClearFailsafe()
		client.reply(NewEventMessage("failsafe_cleared"))

	case CmdSelectProfile:
		if err := h.ctrl.SelectProfile(clientMsg.Profile); err != nil {
			h.logger.Warnw("failed to select profile", "profile", clientMsg.Profile, "error", err)
			client.reply(NewErrorMessage(CmdSelectProfile, err))
			return
		}
		msg := NewEventMessage("profile_selected")
		msg.Profile = clientMsg.Profile
		client.reply(msg)
		h.logger.Infow("client switched profile", "profile", clientMsg.Profile)

	case CmdRecord:
		id, err := h.ctrl.SetRecording(clientMsg.Enabled)
		if err != nil {
			client.reply(NewErrorMessage(CmdRecord, err))
			return
		}
		event := "recording_stopped"
		if clientMsg.Enabled {
			event = "recording_started"
		}
		msg := NewEventMessage(event)
		msg.Recording = id
		client.reply(msg)

	default:
		client.reply(NewErrorMessage(clientMsg.Type, errors.Errorf("unknown command %q", clientMsg.Type)))
	}
}

func clientOf(socket *gws.Conn) (*Client, bool) {
	v, ok := socket.Session().Load(sessionKey)
	if !ok {
		return nil, false
	}
	c, ok := v.(*Client)
	return c, ok
}
