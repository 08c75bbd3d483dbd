// Package collab runs live plan sessions over websockets. Each connection
// drives its own engine session on the server; clients viewing the same
// plan share a room for presence, probe hits and save notifications.
package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/engine"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// Plans is the load and save port seen by live sessions.
type Plans interface {
	Load(ctx context.Context, planID string) (*document.LoadResponse, error)
	Save(ctx context.Context, planID, userID string, req *document.SaveRequest) (*document.SaveRequest, int, error)
}

// Backgrounds measures floor plan images.
type Backgrounds interface {
	Measure(ctx context.Context, src string) (width, height float64, err error)
}

type Room struct {
	planID   string
	clients  map[string]*Client // clientID -> client
	presence *PresenceManager
}

func NewRoom(planID string) *Room {
	return &Room{
		planID:   planID,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
	}
}

type Hub struct {
	plans       Plans
	backgrounds Backgrounds

	mu         sync.RWMutex
	rooms      map[string]*Room // planID -> room
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewHub(plans Plans, backgrounds Backgrounds) *Hub {
	return &Hub{
		plans:       plans,
		backgrounds: backgrounds,
		rooms:       make(map[string]*Room),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		stop:        make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-h.stop:
			return
		}
	}
}

// Stop ends Run and closes every connected client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for planID, room := range h.rooms {
		for _, c := range room.clients {
			c.close()
		}
		delete(h.rooms, planID)
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stop:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stop:
	}
}

// ClientCount returns how many clients are connected to planID.
func (h *Hub) ClientCount(planID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if room, ok := h.rooms[planID]; ok {
		return len(room.clients)
	}
	return 0
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.PlanID]
	if !ok {
		room = NewRoom(client.PlanID)
		h.rooms[client.PlanID] = room
	}
	room.clients[client.ClientID] = client
	presence := client.presence()
	room.presence.Update(client.ClientID, presence)
	h.mu.Unlock()

	client.Send(newMessage(TypeWelcome, WelcomePayload{
		ClientID: client.ClientID,
		Options:  client.Options,
	}))
	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	join := newMessage(TypePresenceJoin, presence)
	join.ClientID = client.ClientID
	join.UserID = client.UserID
	h.broadcastToRoom(client.PlanID, join, client.ClientID)

	slog.Info("client joined", "user", client.UserID, "plan", client.PlanID, "client", client.ClientID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.PlanID]
	if !ok || room.clients[client.ClientID] != client {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	client.close()
	room.presence.Remove(client.ClientID)

	if len(room.clients) == 0 {
		delete(h.rooms, client.PlanID)
	}
	h.mu.Unlock()

	leave := newMessage(TypePresenceLeave, PresenceLeavePayload{ClientID: client.ClientID})
	leave.ClientID = client.ClientID
	leave.UserID = client.UserID
	h.broadcastToRoom(client.PlanID, leave, "")

	slog.Info("client left", "user", client.UserID, "plan", client.PlanID, "client", client.ClientID)
}

func (h *Hub) handleMessage(ctx context.Context, sender *Client, msg *Message) {
	switch msg.Type {
	case TypeSave:
		if !h.handleSave(ctx, sender, msg) {
			return
		}
	case TypeReload:
		sender.load(ctx)
		return
	default:
		ev := engine.Event{Type: msg.Type, Payload: msg.Payload}
		if err := sender.session.Dispatch(ev); err != nil {
			slog.Warn("invalid event", "type", msg.Type, "error", err, "client", sender.ClientID)
			sender.sendError(err.Error())
			return
		}
	}
	sender.sendFrame()
}

type saveMeta struct {
	Meta map[string]json.RawMessage `json:"meta,omitempty"`
}

// handleSave hands the session's save request to the plan port. It reports
// false when the request never reached the port, leaving the view untouched.
func (h *Hub) handleSave(ctx context.Context, sender *Client, msg *Message) bool {
	if sender.session.ReadOnly() || !sender.session.Editable() {
		sender.sendError("session is read-only")
		return false
	}

	meta := sender.meta
	if len(msg.Payload) > 0 {
		var p saveMeta
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			sender.sendError("invalid save payload")
			return false
		}
		if p.Meta != nil {
			meta = p.Meta
		}
	}

	req, err := sender.session.SaveRequest(meta)
	if err != nil {
		sender.session.SaveDone(nil, err)
		return false
	}

	saved, version, err := h.plans.Save(ctx, sender.PlanID, sender.UserID, req)
	sender.session.SaveDone(saved, err)
	if err != nil {
		return true
	}
	sender.meta = meta

	out := newMessage(TypeSaved, SavedPayload{Version: version})
	out.PlanID = sender.PlanID
	out.ClientID = sender.ClientID
	out.UserID = sender.UserID
	h.broadcastToRoom(sender.PlanID, out, sender.ClientID)
	return true
}

// probeHit shares a probe result with the whole room and moves the
// sender's presence marker.
func (h *Hub) probeHit(sender *Client, report engine.ProbeReport) {
	h.mu.RLock()
	room, ok := h.rooms[sender.PlanID]
	h.mu.RUnlock()
	if ok {
		room.presence.SetMarker(sender.ClientID, geom.Pt(float64(report.X), float64(report.Y)))
	}

	msg := newMessage(TypeProbeHit, ProbeHitPayload{ProbeReport: report, ClientID: sender.ClientID})
	msg.PlanID = sender.PlanID
	msg.ClientID = sender.ClientID
	msg.UserID = sender.UserID
	h.broadcastToRoom(sender.PlanID, msg, "")
}

func (h *Hub) broadcastToRoom(planID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[planID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}
