package storage

import (
	"context"
	"errors"

	"staysync/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the interface for all off-chain persistence operations.
type Store interface {
	// Properties
	UpsertProperty(ctx context.Context, p *models.Property) error
	GetProperty(ctx context.Context, id string) (*models.Property, error)

	// Bookings
	UpsertBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) error
	FindBookingsByProperty(ctx context.Context, propertyID string) ([]models.BookingInterval, error)

	// Sync cursor
	GetCursor(ctx context.Context, contractAddress string) (uint64, error)
	SetCursor(ctx context.Context, contractAddress string, sequence uint64) error

	// Applied-event ledger for idempotent replay
	EventApplied(ctx context.Context, eventID string) (bool, error)
	MarkEventApplied(ctx context.Context, eventID, contractAddress string, sequence uint64) error

	// Health & Maintenance
	Ping(ctx context.Context) error
	Close() error
}
