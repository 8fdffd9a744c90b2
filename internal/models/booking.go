package models

import "time"

// BookingStatus enumerates the lifecycle states a booking can be in.
// Transitions are driven exclusively by ledger event mappings, never by
// direct application writes.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is one of the known booking statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// Booking is the off-chain representation of a reservation.
type Booking struct {
	ID         string        `json:"id"`
	PropertyID string        `json:"property_id"`
	GuestID    string        `json:"guest_id,omitempty"`
	StartDate  time.Time     `json:"start_date"`
	EndDate    time.Time     `json:"end_date"`
	TotalPrice float64       `json:"total_price"`
	Status     BookingStatus `json:"status"`

	IntegrityHash string    `json:"integrity_hash,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// BookingInterval is the minimal view of a booking used for overlap
// computation. Start is inclusive, End exclusive.
type BookingInterval struct {
	PropertyID string    `json:"property_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}
