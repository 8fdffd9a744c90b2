package models

import "time"

// Property is the off-chain representation of a rental listing.
// IntegrityHash is the SHA-256 digest of the canonicalized record and is
// recomputed on every field change, never edited in place.
type Property struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Price       float64  `json:"price"`
	Address     string   `json:"address"`
	City        string   `json:"city"`
	Country     string   `json:"country"`
	Amenities   []string `json:"amenities"`
	Bedrooms    int      `json:"bedrooms"`
	Bathrooms   int      `json:"bathrooms"`
	MaxGuests   int      `json:"max_guests"`

	// Sync context
	ContractAddress string `json:"contract_address,omitempty"`
	Status          string `json:"status,omitempty"`

	IntegrityHash string    `json:"integrity_hash,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}
