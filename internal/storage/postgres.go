package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staysync/internal/models"
)

// PostgresStore implements the Store interface using PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS properties (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	price           DOUBLE PRECISION NOT NULL,
	address         TEXT NOT NULL,
	city            TEXT NOT NULL,
	country         TEXT NOT NULL,
	amenities       JSONB NOT NULL DEFAULT '[]',
	bedrooms        INT NOT NULL DEFAULT 0,
	bathrooms       INT NOT NULL DEFAULT 0,
	max_guests      INT NOT NULL DEFAULT 0,
	contract_address TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT '',
	integrity_hash  TEXT NOT NULL DEFAULT '',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bookings (
	id              TEXT PRIMARY KEY,
	property_id     TEXT NOT NULL,
	guest_id        TEXT NOT NULL DEFAULT '',
	start_date      TIMESTAMPTZ NOT NULL,
	end_date        TIMESTAMPTZ NOT NULL,
	total_price     DOUBLE PRECISION NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	integrity_hash  TEXT NOT NULL DEFAULT '',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_bookings_property ON bookings (property_id);

CREATE TABLE IF NOT EXISTS sync_cursors (
	contract_address TEXT PRIMARY KEY,
	last_sequence    BIGINT NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS applied_events (
	event_id         TEXT PRIMARY KEY,
	contract_address TEXT NOT NULL,
	ledger_seq       BIGINT NOT NULL,
	applied_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the tables if they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// UpsertProperty inserts or replaces a property record. Replaying the same
// record is a no-op state-wise, which keeps event application idempotent.
func (s *PostgresStore) UpsertProperty(ctx context.Context, p *models.Property) error {
	amenitiesJSON, err := json.Marshal(p.Amenities)
	if err != nil {
		return fmt.Errorf("failed to marshal amenities: %w", err)
	}

	query := `
		INSERT INTO properties (
			id, title, description, price, address, city, country,
			amenities, bedrooms, bathrooms, max_guests,
			contract_address, status, integrity_hash, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			country = EXCLUDED.country,
			amenities = EXCLUDED.amenities,
			bedrooms = EXCLUDED.bedrooms,
			bathrooms = EXCLUDED.bathrooms,
			max_guests = EXCLUDED.max_guests,
			contract_address = EXCLUDED.contract_address,
			status = EXCLUDED.status,
			integrity_hash = EXCLUDED.integrity_hash,
			updated_at = EXCLUDED.updated_at
	`

	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx, query,
		p.ID, p.Title, p.Description, p.Price, p.Address, p.City, p.Country,
		amenitiesJSON, p.Bedrooms, p.Bathrooms, p.MaxGuests,
		p.ContractAddress, p.Status, p.IntegrityHash, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert property: %w", err)
	}
	return nil
}

// GetProperty retrieves a property by id.
func (s *PostgresStore) GetProperty(ctx context.Context, id string) (*models.Property, error) {
	query := `
		SELECT
			id, title, description, price, address, city, country,
			amenities, bedrooms, bathrooms, max_guests,
			contract_address, status, integrity_hash, updated_at
		FROM properties
		WHERE id = $1
	`

	var p models.Property
	var amenitiesJSON []byte

	err := s.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Title, &p.Description, &p.Price, &p.Address, &p.City, &p.Country,
		&amenitiesJSON, &p.Bedrooms, &p.Bathrooms, &p.MaxGuests,
		&p.ContractAddress, &p.Status, &p.IntegrityHash, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}

	if err := json.Unmarshal(amenitiesJSON, &p.Amenities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal amenities: %w", err)
	}
	return &p, nil
}

// UpsertBooking inserts or replaces a booking record.
func (s *PostgresStore) UpsertBooking(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (
			id, property_id, guest_id, start_date, end_date,
			total_price, status, integrity_hash, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			property_id = EXCLUDED.property_id,
			guest_id = EXCLUDED.guest_id,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			total_price = EXCLUDED.total_price,
			status = EXCLUDED.status,
			integrity_hash = EXCLUDED.integrity_hash,
			updated_at = EXCLUDED.updated_at
	`

	updatedAt := b.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, query,
		b.ID, b.PropertyID, b.GuestID, b.StartDate, b.EndDate,
		b.TotalPrice, b.Status, b.IntegrityHash, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert booking: %w", err)
	}
	return nil
}

// GetBooking retrieves a booking by id.
func (s *PostgresStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `
		SELECT id, property_id, guest_id, start_date, end_date,
			total_price, status, integrity_hash, updated_at
		FROM bookings
		WHERE id = $1
	`

	var b models.Booking
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.PropertyID, &b.GuestID, &b.StartDate, &b.EndDate,
		&b.TotalPrice, &b.Status, &b.IntegrityHash, &b.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// UpdateBookingStatus sets the booking status. "Set to X" is naturally
// idempotent under replay.
func (s *PostgresStore) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) error {
	query := `UPDATE bookings SET status = $2, updated_at = now() WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindBookingsByProperty returns the booking intervals of a property,
// ordered by start date. Cancelled bookings do not block availability.
func (s *PostgresStore) FindBookingsByProperty(ctx context.Context, propertyID string) ([]models.BookingInterval, error) {
	query := `
		SELECT property_id, start_date, end_date
		FROM bookings
		WHERE property_id = $1 AND status != $2
		ORDER BY start_date ASC
	`

	rows, err := s.pool.Query(ctx, query, propertyID, models.BookingCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer rows.Close()

	var intervals []models.BookingInterval
	for rows.Next() {
		var iv models.BookingInterval
		if err := rows.Scan(&iv.PropertyID, &iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("failed to scan booking interval: %w", err)
		}
		intervals = append(intervals, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}
	return intervals, nil
}

// GetCursor returns the last applied sequence for a contract, 0 when the
// contract has never been synced.
func (s *PostgresStore) GetCursor(ctx context.Context, contractAddress string) (uint64, error) {
	query := `SELECT last_sequence FROM sync_cursors WHERE contract_address = $1`

	var sequence uint64
	err := s.pool.QueryRow(ctx, query, contractAddress).Scan(&sequence)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get cursor: %w", err)
	}
	return sequence, nil
}

// SetCursor persists the cursor for a contract.
func (s *PostgresStore) SetCursor(ctx context.Context, contractAddress string, sequence uint64) error {
	query := `
		INSERT INTO sync_cursors (contract_address, last_sequence, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (contract_address) DO UPDATE SET
			last_sequence = EXCLUDED.last_sequence,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := s.pool.Exec(ctx, query, contractAddress, sequence); err != nil {
		return fmt.Errorf("failed to set cursor: %w", err)
	}
	return nil
}

// EventApplied reports whether the event has already been applied.
func (s *PostgresStore) EventApplied(ctx context.Context, eventID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM applied_events WHERE event_id = $1)`

	var applied bool
	if err := s.pool.QueryRow(ctx, query, eventID).Scan(&applied); err != nil {
		return false, fmt.Errorf("failed to check applied event: %w", err)
	}
	return applied, nil
}

// MarkEventApplied records the event id. Safe under replay.
func (s *PostgresStore) MarkEventApplied(ctx context.Context, eventID, contractAddress string, sequence uint64) error {
	query := `
		INSERT INTO applied_events (event_id, contract_address, ledger_seq)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`

	if _, err := s.pool.Exec(ctx, query, eventID, contractAddress, sequence); err != nil {
		return fmt.Errorf("failed to mark event applied: %w", err)
	}
	return nil
}

// Ping checks if the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
