package models

import "time"

// ConfigUpdateEvent announces a change to saved filters so that every running
// instance reloads its stream filters.
type ConfigUpdateEvent struct {
	EventType string                 `json:"event_type"`
	FilterID  string                 `json:"filter_id,omitempty"`
	Action    string                 `json:"action"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

const EventTypeFilterUpdated = "filter_updated"

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionReload = "reload"
)
