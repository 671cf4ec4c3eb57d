package models

import (
	"time"

	"github.com/google/uuid"
)

// SystemLog is an append-only audit row written after every mutation
type SystemLog struct {
	ID         uuid.UUID  `json:"id"`
	Action     string     `json:"action"`
	EntityType string     `json:"entity_type"`
	EntityID   *string    `json:"entity_id,omitempty"`
	Details    LogDetails `json:"details"`
	Timestamp  time.Time  `json:"timestamp"`
}

// LogDetails is the free-form payload of a SystemLog
type LogDetails struct {
	Changes  map[string]interface{} `json:"changes,omitempty"`
	Source   string                 `json:"source,omitempty"`
	BatchID  string                 `json:"batch_id,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
