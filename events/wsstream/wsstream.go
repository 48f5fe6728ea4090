// Package wsstream offers a websocket-backed Subscriber so a desktop UI
// process can observe a pipeline run's event stream over a local socket
// (SPEC_FULL.md §4, "streaming events surfaced to the caller" from spec §1).
package wsstream

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cadforge/codepilot/events"
)

// wireEvent is the JSON envelope written to the socket. The concrete event
// payload is marshaled as-is; Type lets the UI dispatch without guessing.
type wireEvent struct {
	Type      events.EventType `json:"type"`
	RunID     string           `json:"run_id"`
	SessionID string           `json:"session_id"`
	Timestamp int64            `json:"timestamp"`
	TurnID    string           `json:"turn_id,omitempty"`
	Payload   events.Event     `json:"payload"`
}

// Sink forwards events to a single websocket connection as JSON text
// frames. One Sink serves one connection; fan-out to multiple UI clients is
// done by registering one Sink per connection on the run's Bus.
type Sink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewSink wraps an already-upgraded websocket connection.
func NewSink(conn *websocket.Conn) *Sink {
	return &Sink{conn: conn}
}

// HandleEvent implements events.Subscriber.
func (s *Sink) HandleEvent(_ context.Context, event events.Event) error {
	msg := wireEvent{
		Type:      event.Type(),
		RunID:     event.RunID(),
		SessionID: event.SessionID(),
		Timestamp: event.Timestamp(),
		TurnID:    event.TurnID(),
		Payload:   event,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection with a normal closure frame.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
