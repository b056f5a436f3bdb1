package inspect

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/strand-dev/strand/pkg/strand"
)

// wireEvent is the JSON shape of a core event on the /events stream.
type wireEvent struct {
	Kind       string `json:"kind"`
	CellID     uint64 `json:"cell_id"`
	CellName   string `json:"cell_name,omitempty"`
	Derived    bool   `json:"derived"`
	DurationUS int64  `json:"duration_us,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newWireEvent(ev strand.Event) wireEvent {
	we := wireEvent{
		Kind:       string(ev.Kind),
		CellID:     ev.CellID,
		CellName:   ev.CellName,
		Derived:    ev.Derived,
		DurationUS: ev.Duration.Microseconds(),
	}
	if ev.Err != nil {
		we.Error = ev.Err.Error()
	}
	return we
}

// handleEvents upgrades the connection and holds it until the client
// disconnects. Clients only receive; inbound messages are drained and
// discarded to detect the close.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade", "error", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	s.clientsMu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.clientsMu.Unlock()
	conn.Close()
}

// broadcast sends the event to all connected clients, dropping any
// client whose write fails or stalls past the write deadline. Events
// arrive from whichever goroutine mutated the graph, and gorilla permits
// one writer per connection, so sends are serialized under writeMu.
func (s *Server) broadcast(we wireEvent) {
	s.clientsMu.RLock()
	if len(s.clients) == 0 {
		s.clientsMu.RUnlock()
		return
	}
	clients := make([]*websocket.Conn, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.clientsMu.RUnlock()

	data, err := json.Marshal(we)
	if err != nil {
		s.logger.Error("encode event", "error", err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for _, client := range clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			s.clientsMu.Lock()
			delete(s.clients, client)
			s.clientsMu.Unlock()
			client.Close()
		}
	}
}
