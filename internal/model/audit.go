package model

import (
	"time"
)

// AuditAction enumerates the interaction event kinds produced by the UI.
type AuditAction string

const (
	AuditActionClick          AuditAction = "click"
	AuditActionTabChange      AuditAction = "tabChange"
	AuditActionAnswerSelect   AuditAction = "answerSelect"
	AuditActionAnswerDeselect AuditAction = "answerDeselect"
	AuditActionSubmit         AuditAction = "submit"
	AuditActionNavigation     AuditAction = "navigation"
	AuditActionHighlight      AuditAction = "highlight"
	AuditActionDrag           AuditAction = "drag"
	AuditActionDrop           AuditAction = "drop"
)

// AuditEntry is one append-only interaction event. The core only ever reads
// a session's entries back in temporal order.
type AuditEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    AuditAction    `json:"action"`
	Target    string         `json:"target"`
	ItemID    string         `json:"itemId,omitempty"`
	SessionID string         `json:"sessionId"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// StressState is the behavioral classification derived from a trailing
// window of audit entries. Only the current value is kept, never a history.
type StressState string

const (
	StressFocused   StressState = "focused"
	StressHesitant  StressState = "hesitant"
	StressPanic     StressState = "panic"
	StressParalysis StressState = "paralysis"
)

// RecordEventRequest is the payload for appending an interaction event.
type RecordEventRequest struct {
	Action   AuditAction    `json:"action" binding:"required,oneof=click tabChange answerSelect answerDeselect submit navigation highlight drag drop"`
	Target   string         `json:"target" binding:"required,max=255"`
	ItemID   string         `json:"item_id" binding:"omitempty,max=64"`
	Metadata map[string]any `json:"metadata" binding:"omitempty"`
}
