package storage

import (
	"context"
	"sort"
	"sync"

	"staysync/internal/models"
)

// MemoryStore is an in-memory Store used by tests and the mock
// environment. It implements the exact production contract so test doubles
// stay type-checked against it.
type MemoryStore struct {
	mu         sync.Mutex
	properties map[string]models.Property
	bookings   map[string]models.Booking
	cursors    map[string]uint64
	applied    map[string]bool

	// Error injection for failure-path tests. When set, the matching
	// operation fails once with the given error and the field resets.
	FailNextUpsertBooking error
	FailNextUpdateStatus  error
	FailNextSetCursor     error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		properties: make(map[string]models.Property),
		bookings:   make(map[string]models.Booking),
		cursors:    make(map[string]uint64),
		applied:    make(map[string]bool),
	}
}

func (m *MemoryStore) UpsertProperty(ctx context.Context, p *models.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.properties[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (m *MemoryStore) UpsertBooking(ctx context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailNextUpsertBooking; err != nil {
		m.FailNextUpsertBooking = nil
		return err
	}
	m.bookings[b.ID] = *b
	return nil
}

func (m *MemoryStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := b
	return &cp, nil
}

func (m *MemoryStore) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailNextUpdateStatus; err != nil {
		m.FailNextUpdateStatus = nil
		return err
	}
	b, ok := m.bookings[id]
	if !ok {
		return ErrNotFound
	}
	b.Status = status
	m.bookings[id] = b
	return nil
}

func (m *MemoryStore) FindBookingsByProperty(ctx context.Context, propertyID string) ([]models.BookingInterval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.BookingInterval
	for _, b := range m.bookings {
		if b.PropertyID != propertyID || b.Status == models.BookingCancelled {
			continue
		}
		out = append(out, models.BookingInterval{
			PropertyID: b.PropertyID,
			Start:      b.StartDate,
			End:        b.EndDate,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *MemoryStore) GetCursor(ctx context.Context, contractAddress string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[contractAddress], nil
}

func (m *MemoryStore) SetCursor(ctx context.Context, contractAddress string, sequence uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailNextSetCursor; err != nil {
		m.FailNextSetCursor = nil
		return err
	}
	m.cursors[contractAddress] = sequence
	return nil
}

func (m *MemoryStore) EventApplied(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applied[eventID], nil
}

func (m *MemoryStore) MarkEventApplied(ctx context.Context, eventID, contractAddress string, sequence uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied[eventID] = true
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// BookingCount reports how many bookings are stored, for test assertions.
func (m *MemoryStore) BookingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}
