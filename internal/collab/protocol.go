package collab

import (
	"encoding/json"

	"github.com/plantrace/plantrace/backend-go/internal/config"
	"github.com/plantrace/plantrace/backend-go/internal/engine"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

type Message struct {
	Type     string          `json:"type"`
	PlanID   string          `json:"planId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Client to server. Input events use the engine event types
// (pointer.*, key.*, toolbar, label.*) with the engine payloads.
const (
	TypeSave   = "plan.save"
	TypeReload = "plan.reload"
)

// Server to client.
const (
	TypeWelcome = "welcome"
	TypeFrame   = "frame"
	TypeNotice  = "notice"
	TypeError   = "error"

	// TypeProbeHit goes to every client of the plan, sender included.
	TypeProbeHit = "probe.hit"
	// TypeSaved tells the other clients of a plan that a new version exists.
	TypeSaved = "plan.saved"

	TypePresenceState = "presence.state"
	TypePresenceJoin  = "presence.join"
	TypePresenceLeave = "presence.leave"
)

type WelcomePayload struct {
	ClientID string         `json:"clientId"`
	Options  config.Options `json:"options"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type ProbeHitPayload struct {
	engine.ProbeReport
	ClientID string `json:"clientId"`
}

type SavedPayload struct {
	Version int `json:"version"`
}

type PresencePayload struct {
	UserID      string      `json:"userId,omitempty"`
	DisplayName string      `json:"displayName,omitempty"`
	Mode        string      `json:"mode"`
	ReadOnly    bool        `json:"readonly,omitempty"`
	Marker      *geom.Point `json:"marker,omitempty"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceLeavePayload struct {
	ClientID string `json:"clientId"`
}

// newMessage marshals payload into a message of type typ.
func newMessage(typ string, payload any) *Message {
	msg := &Message{Type: typ}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return &Message{Type: TypeError, Payload: json.RawMessage(`{"message":"encode failed"}`)}
		}
		msg.Payload = data
	}
	return msg
}
