package models

import "time"

// APIResponse is the envelope every HTTP endpoint answers with. Errors
// are always structured, never raw stack traces.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// VerifyResponse reports an on-read integrity check.
type VerifyResponse struct {
	PropertyID   string `json:"property_id"`
	StoredHash   string `json:"stored_hash"`
	ComputedHash string `json:"computed_hash"`
	Verified     bool   `json:"verified"`
}

// AvailabilityResponse answers a candidate date-range query.
type AvailabilityResponse struct {
	PropertyID string    `json:"property_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Available  bool      `json:"available"`
}

// ContractSyncStatus is the per-contract view exposed on /sync/status.
type ContractSyncStatus struct {
	ContractAddress string    `json:"contract_address"`
	State           string    `json:"state"`
	Cursor          uint64    `json:"cursor"`
	LastPollAt      time.Time `json:"last_poll_at,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
}
