package collab

import (
	"log/slog"
	"sync"

	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// PresenceManager tracks who is viewing a plan, keyed by client id.
type PresenceManager struct {
	mu        sync.RWMutex
	presences map[string]*PresencePayload
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		presences: make(map[string]*PresencePayload),
	}
}

func (pm *PresenceManager) Update(clientID string, p *PresencePayload) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.presences[clientID] = p
}

// SetMarker records where a client last probed.
func (pm *PresenceManager) SetMarker(clientID string, p geom.Point) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if cur, ok := pm.presences[clientID]; ok {
		next := *cur
		next.Marker = &p
		pm.presences[clientID] = &next
	}
}

func (pm *PresenceManager) Remove(clientID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.presences, clientID)
}

func (pm *PresenceManager) GetAll() map[string]*PresencePayload {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	result := make(map[string]*PresencePayload, len(pm.presences))
	for k, v := range pm.presences {
		result[k] = v
	}
	return result
}

func (pm *PresenceManager) StateMessage() *Message {
	msg := newMessage(TypePresenceState, PresenceStatePayload{Presences: pm.GetAll()})
	if msg.Type == TypeError {
		slog.Error("marshal presence state")
		return nil
	}
	return msg
}
