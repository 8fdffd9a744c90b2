package models

import "time"

// Event types the sync engine knows how to apply. Anything the ledger
// emits outside this set is skipped and counted, not fatal.
const (
	EventPropertyCreated      = "property_created"
	EventPropertyUpdated      = "property_updated"
	EventBookingCreated       = "booking_created"
	EventBookingStatusChanged = "booking_status_changed"
)

// SyncEvent is an immutable fact reported by the ledger. The engine only
// consumes these; it never produces or mutates them.
type SyncEvent struct {
	// EventID uniquely identifies the event across replays (tx hash plus
	// event index on the real ledger). Idempotent apply is keyed on it.
	EventID string `json:"event_id"`

	ContractAddress string         `json:"contract_address"`
	EventType       string         `json:"event_type"`
	Payload         map[string]any `json:"payload,omitempty"`

	// Sequence is the ledger sequence the event was emitted at. Events
	// from one QueryEvents call arrive in ascending sequence order.
	Sequence  uint64    `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncCursor marks the last fully applied event sequence for a tracked
// contract. It only ever advances.
type SyncCursor struct {
	ContractAddress string    `json:"contract_address"`
	LastSequence    uint64    `json:"last_sequence"`
	UpdatedAt       time.Time `json:"updated_at"`
}
