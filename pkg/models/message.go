package models

import (
	"fmt"
	"time"
)

// MessageEnvelope is the unit carried on the stream topics. Payload is what
// stream filters are evaluated against.
type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	TraceID        string          `json:"trace_id,omitempty"`
	FiltersApplied *FiltersApplied `json:"filters_applied,omitempty"`
	DLQ            *DLQInfo        `json:"dlq,omitempty"`
}

type FiltersApplied struct {
	PassedAt  time.Time `json:"passed_at"`
	FilterIDs []string  `json:"filter_ids"`
	// Fallback is set when the envelope passed because a filter failed and the
	// allow fallback applied.
	Fallback bool `json:"fallback,omitempty"`
}

// DLQInfo records why an envelope ended up on the dead letter topic.
type DLQInfo struct {
	Reason      string    `json:"reason"`
	ErrorCode   string    `json:"error_code,omitempty"`
	SourceTopic string    `json:"source_topic"`
	Attempts    int       `json:"attempts"`
	FailedAt    time.Time `json:"failed_at"`
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateMessageEnvelope(msg *MessageEnvelope) error {
	switch {
	case msg == nil:
		return &ValidationError{Field: "envelope", Message: "message envelope cannot be nil"}
	case msg.ID == "":
		return &ValidationError{Field: "id", Message: "message ID is required"}
	case msg.Source == "":
		return &ValidationError{Field: "source", Message: "message source is required"}
	case msg.Payload == nil:
		return &ValidationError{Field: "payload", Message: "message payload cannot be nil"}
	}
	return nil
}
