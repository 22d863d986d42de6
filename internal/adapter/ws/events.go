package ws

import "encoding/json"

// Message is the envelope for all WebSocket frames. Type is the domain event
// type; Payload is the event itself.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
