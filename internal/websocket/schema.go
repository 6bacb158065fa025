package websocket

import (
	"encoding/json"
	"time"
)

// Event types pushed on a session's live stream.
const (
	EventStress    = "stress"
	EventScore     = "score"
	EventReadiness = "readiness"
	EventAlerts    = "alerts"
	EventCompleted = "completed"
	EventError     = "error"
)

// ErrorResponse is sent to the client when the stream cannot be served.
type ErrorResponse struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// StreamEvent is the envelope for every message on a session stream. Payload
// shape depends on Type.
type StreamEvent struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// StressPayload carries a stress reclassification.
type StressPayload struct {
	State string `json:"state"`
}

// ScorePayload carries one item's score result.
type ScorePayload struct {
	ItemID string  `json:"item_id"`
	Earned float64 `json:"earned"`
	Max    float64 `json:"max"`
	Ratio  float64 `json:"ratio"`
}

// ReadinessPayload carries the updated pass-probability estimate.
type ReadinessPayload struct {
	PassProbability float64 `json:"pass_probability"`
	Progress        float64 `json:"progress"`
}

// AlertsPayload carries the derived clinical alerts for the visible data.
type AlertsPayload struct {
	Alerts []string `json:"alerts"`
}

// NewStreamEvent builds an envelope with a marshaled payload.
func NewStreamEvent(eventType, sessionID string, payload any) (*StreamEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &StreamEvent{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Payload:   raw,
	}, nil
}
