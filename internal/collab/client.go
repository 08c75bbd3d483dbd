package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/plantrace/plantrace/backend-go/internal/config"
	"github.com/plantrace/plantrace/backend-go/internal/engine"
)

const (
	writeWait  = 10 * time.Second
	loadWait   = 15 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 64 * 1024
)

type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	UserID      string
	DisplayName string
	PlanID      string
	ClientID    string
	Options     config.Options

	mu     sync.Mutex
	send   chan []byte
	closed bool

	// Owned by the read goroutine.
	session *engine.Session
	meta    map[string]json.RawMessage
	seq     int64
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, displayName, planID, clientID string, opts config.Options) *Client {
	c := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		UserID:      userID,
		DisplayName: displayName,
		PlanID:      planID,
		ClientID:    clientID,
		Options:     opts,
	}

	sessionOpts := engine.OptionsFromConfig(opts)
	sessionOpts.Logger = slog.Default().With("plan", planID, "client", clientID)
	sessionOpts.Notify = c.notice
	sessionOpts.OnProbe = func(r engine.ProbeReport) { hub.probeHit(c, r) }
	c.session = engine.NewSession(sessionOpts)
	return c
}

func (c *Client) presence() *PresencePayload {
	return &PresencePayload{
		UserID:      c.UserID,
		DisplayName: c.DisplayName,
		Mode:        c.session.Mode().String(),
		ReadOnly:    c.session.ReadOnly(),
		Marker:      c.Options.Point,
	}
}

// ReadPump loads the plan, then applies incoming events until the
// connection drops.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.load(ctx)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return
			}
			slog.Debug("read error", "error", err, "client", c.ClientID)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid message", "error", err, "client", c.ClientID)
			c.sendError("invalid message")
			continue
		}

		msg.UserID = c.UserID
		msg.ClientID = c.ClientID
		msg.PlanID = c.PlanID

		c.hub.handleMessage(ctx, c, &msg)
	}
}

func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				slog.Debug("write error", "error", err, "client", c.ClientID)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// load fetches the plan and its floor plan image and sends the first frame
// once both have settled.
func (c *Client) load(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, loadWait)
	defer cancel()

	gate := engine.NewGate(c.sendFrame)
	gate.Add(1)
	if c.Options.Src != "" {
		gate.Add(1)
	}

	resp, err := c.hub.plans.Load(ctx, c.PlanID)
	if err != nil {
		c.session.LoadFailed(err)
	} else if err := c.session.Load(resp); err == nil && resp.Data != nil {
		c.meta = resp.Data.Meta
	}
	gate.Done()

	if src := c.Options.Src; src != "" {
		w, h, err := c.hub.backgrounds.Measure(ctx, src)
		if err != nil {
			c.session.BackgroundFailed(src, err)
		} else {
			c.session.SetBackground(src, w, h)
		}
		gate.Done()
	}
}

func (c *Client) notice(n engine.Notice) {
	c.Send(newMessage(TypeNotice, n))
}

func (c *Client) sendError(message string) {
	c.Send(newMessage(TypeError, ErrorPayload{Message: message}))
}

func (c *Client) sendFrame() {
	if !c.session.Ready() {
		return
	}
	c.seq++
	msg := newMessage(TypeFrame, c.session.Frame())
	msg.PlanID = c.PlanID
	msg.Seq = c.seq
	c.Send(msg)
}

func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("client send buffer full, dropping message", "client", c.ClientID)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
