package domain

import (
	"encoding/json"
	"time"
)

// Event types emitted by the HTTP server.
const (
	EventTypeHTTPRequest = "http_request"
)

// Event is one telemetry event. It is serialized as JSON onto the Kafka topic and read back by
// the worker; UserEmail is empty for anonymous requests.
type Event struct {
	UserEmail string          `json:"userEmail,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
