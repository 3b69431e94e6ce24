package core

import "github.com/goccy/go-json"

// Envelope is the wire shape of every real-time event in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func Encode(event string, data any) (Frame, error) {
	out := struct {
		Type string `json:"type"`
		Data any    `json:"data,omitempty"`
	}{event, data}
	return json.Marshal(out)
}
