package collab

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/plantrace/plantrace/backend-go/internal/config"
)

// Peer identifies the person behind a connection. Anonymous viewers have
// an empty UserID.
type Peer struct {
	UserID      string
	DisplayName string
}

// Accept upgrades the request and runs a client until the connection
// closes. Session options come from the query string.
func (h *Hub) Accept(w http.ResponseWriter, r *http.Request, planID string, peer Peer, originPatterns []string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	opts := config.ParseOptions(r.URL.Query())
	client := NewClient(h, conn, peer.UserID, peer.DisplayName, planID, uuid.NewString(), opts)
	h.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
