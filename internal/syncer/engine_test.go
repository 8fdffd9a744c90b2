package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mockledger "staysync/internal/ledger/mock"
	"staysync/internal/ledger/retry"
	"staysync/internal/models"
	"staysync/internal/storage"
)

const testContract = "CCTESTCONTRACT"

func newTestEngine(t *testing.T, client *mockledger.Adapter, store *storage.MemoryStore) *Engine {
	t.Helper()

	mapper, err := NewStatusMapper(defaultStatusTable())
	if err != nil {
		t.Fatalf("NewStatusMapper failed: %v", err)
	}

	return New(Config{
		Contracts:    []string{testContract},
		PollInterval: time.Second,
		QueryTimeout: time.Second,
		ApplyTimeout: time.Second,
	}, client, store, mapper, retry.NewNoRetryStrategy(), nil)
}

func propertyEvent(seq uint64, id string) models.SyncEvent {
	return models.SyncEvent{
		EventID:         "ev-prop-" + id,
		ContractAddress: testContract,
		EventType:       models.EventPropertyCreated,
		Sequence:        seq,
		Timestamp:       time.Now().UTC(),
		Payload: map[string]any{
			"id":         id,
			"title":      "Seaside Flat",
			"price":      120.5,
			"address":    "1 Ocean Dr",
			"city":       "Porto",
			"country":    "Portugal",
			"amenities":  []any{"wifi", "pool"},
			"bedrooms":   2,
			"bathrooms":  1,
			"max_guests": 4,
		},
	}
}

func bookingEvent(seq uint64, id string) models.SyncEvent {
	return models.SyncEvent{
		EventID:         "ev-book-" + id,
		ContractAddress: testContract,
		EventType:       models.EventBookingCreated,
		Sequence:        seq,
		Timestamp:       time.Now().UTC(),
		Payload: map[string]any{
			"id":          id,
			"property_id": "prop-1",
			"guest_id":    "guest-1",
			"start_date":  "2024-06-01",
			"end_date":    "2024-06-08",
			"total_price": 840.0,
			"status":      "initialized",
		},
	}
}

func statusEvent(seq uint64, bookingID, raw string) models.SyncEvent {
	return models.SyncEvent{
		EventID:         "ev-status-" + bookingID + "-" + raw,
		ContractAddress: testContract,
		EventType:       models.EventBookingStatusChanged,
		Sequence:        seq,
		Timestamp:       time.Now().UTC(),
		Payload: map[string]any{
			"id":     bookingID,
			"status": raw,
		},
	}
}

func TestPollOnce_AppliesBatchInOrder(t *testing.T) {
	client := mockledger.New()
	store := storage.NewMemoryStore()
	engine := newTestEngine(t, client, store)

	client.SeedEvent(propertyEvent(1, "prop-1"))
	client.SeedEvent(bookingEvent(2, "bk-1"))
	client.SeedEvent(statusEvent(3, "bk-1", "funded"))

	if err := engine.PollOnce(context.Background(), testContract); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	p, err := store.GetProperty(context.Background(), "prop-1")
	if err != nil {
		t.Fatalf("Property not synced: %v", err)
	}
	if p.IntegrityHash == "" {
		t.Error("Expected integrity hash to be computed on apply")
	}

	b, err := store.GetBooking(context.Background(), "bk-1")
	if err != nil {
		t.Fatalf("Booking not synced: %v", err)
	}
	if b.Status != models.BookingConfirmed {
		t.Errorf("Expected booking status %q, got %q", models.BookingConfirmed, b.Status)
	}

	if got := engine.Cursor(testContract); got != 3 {
		t.Errorf("Expected cursor 3, got %d", got)
	}

	persisted, err := store.GetCursor(context.Background(), testContract)
	if err != nil {
		t.Fatalf("GetCursor failed: %v", err)
	}
	if persisted != 3 {
		t.Errorf("Expected persisted cursor 3, got %d", persisted)
	}
}

func TestPollOnce_ReplayIsIdempotent(t *testing.T) {
	client := mockledger.New()
	store := storage.NewMemoryStore()
	engine := newTestEngine(t, client, store)

	client.SeedEvent(bookingEvent(1, "bk-1"))
	if err := engine.PollOnce(context.Background(), testContract); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	// The ledger redelivers the same event at a later sequence. The store
	// must not change a second time.
	replay := bookingEvent(5, "bk-1")
	replay.Payload["total_price"] = 9999.0
	client.SeedEvent(replay)

	if err := engine.PollOnce(context.Background(), testContract); err != nil {
		t.Fatalf("PollOnce failed on replay: %v", err)
	}

	b, err := store.GetBooking(context.Background(), "bk-1")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if b.TotalPrice != 840.0 {
		t.Errorf("Replayed event mutated the booking: total_price %v", b.TotalPrice)
	}
	if store.BookingCount() != 1 {
		t.Errorf("Expected 1 booking after replay, got %d", store.BookingCount())
	}

	// The cursor still advances past the redelivered event
	if got := engine.Cursor(testContract); got != 5 {
		t.Errorf("Expected cursor 5, got %d", got)
	}
}

func TestPollOnce_UnknownEventTypeIsSkipped(t *testing.T) {
	client := mockledger.New()
	store := storage.NewMemoryStore()
	engine := newTestEngine(t, client, store)

	client.SeedEvent(propertyEvent(1, "prop-1"))
	client.SeedEvent(models.SyncEvent{
		EventID:         "ev-unknown",
		ContractAddress: testContract,
		EventType:       "listing_promoted",
		Sequence:        2,
	})
	client.SeedEvent(bookingEvent(3, "bk-1"))

	if err := engine.PollOnce(context.Background(), testContract); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	if _, err := store.GetProperty(context.Background(), "prop-1"); err != nil {
		t.Errorf("Property event not applied: %v", err)
	}
	if _, err := store.GetBooking(context.Background(), "bk-1"); err != nil {
		t.Errorf("Booking event after the unknown one not applied: %v", err)
	}
	if got := engine.Cursor(testContract); got != 3 {
		t.Errorf("Expected cursor 3 past all events, got %d", got)
	}
}

func TestPollOnce_UnknownStatusIsSkipped(t *testing.T) {
	client := mockledger.New()
	store := storage.NewMemoryStore()
	engine := newTestEngine(t, client, store)

	client.SeedEvent(bookingEvent(1, "bk-1"))
	client.SeedEvent(statusEvent(2, "bk-1", "disputed"))
	client.SeedEvent(statusEvent(3, "bk-1", "funded"))

	if err := engine.PollOnce(context.Background(), testContract); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	b, err := store.GetBooking(context.Background(), "bk-1")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if b.Status != models.BookingConfirmed {
		t.Errorf("Expected status %q after skipping unknown status, got %q", models.BookingConfirmed, b.Status)
	}
	if got := engine.Cursor(testContract); got != 3 {
		t.Errorf("Expected cursor 3, got %d", got)
	}
}

func TestPollOnce_StoreFailureHaltsCursor(t *testing.T) {
	client := mockledger.New()
	store := storage.NewMemoryStore()
	engine := newTestEngine(t, client, store)

	client.SeedEvent(bookingEvent(1, "bk-1"))
	client.SeedEvent(statusEvent(2, "bk-1", "funded"))
	client.SeedEvent(statusEvent(3, "bk-1", "released"))

	store.FailNextUpdateStatus = errors.New("connection refused")

	err := engine.PollOnce(context.Background(), testContract)
	if err == nil {
		t.Fatal("Expected PollOnce to report the apply failure")
	}

	// Cursor stops at the last fully applied event
	if got := engine.Cursor(testContract); got != 1 {
		t.Errorf("Expected cursor 1 after failure at sequence 2, got %d", got)
	}

	// The failed event and everything after it are redelivered next tick
	if err := engine.PollOnce(context.Background(), testContract); err != nil {
		t.Fatalf("PollOnce retry failed: %v", err)
	}

	b, err := store.GetBooking(context.Background(), "bk-1")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if b.Status != models.BookingCompleted {
		t.Errorf("Expected status %q after recovery, got %q", models.BookingCompleted, b.Status)
	}
	if got := engine.Cursor(testContract); got != 3 {
		t.Errorf("Expected cursor 3 after recovery, got %d", got)
	}
}

func TestPollOnce_DropsTickWhileInFlight(t *testing.T) {
	client := mockledger.New()
	store := storage.NewMemoryStore()
	engine := newTestEngine(t, client, store)

	client.SeedEvent(propertyEvent(1, "prop-1"))

	tr := engine.trackers[testContract]
	tr.inFlight.Store(true)

	if err := engine.PollOnce(context.Background(), testContract); err != nil {
		t.Fatalf("Dropped tick should not error: %v", err)
	}
	if got := engine.Cursor(testContract); got != 0 {
		t.Errorf("Dropped tick must not advance the cursor, got %d", got)
	}

	tr.inFlight.Store(false)
	if err := engine.PollOnce(context.Background(), testContract); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}
	if got := engine.Cursor(testContract); got != 1 {
		t.Errorf("Expected cursor 1 after the in-flight flag cleared, got %d", got)
	}
}

// cancellingStore triggers a context cancellation on the first property
// write and fails the write if that cancellation reached it.
type cancellingStore struct {
	*storage.MemoryStore
	cancel context.CancelFunc
	once   sync.Once
}

func (s *cancellingStore) UpsertProperty(ctx context.Context, p *models.Property) error {
	s.once.Do(s.cancel)
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.UpsertProperty(ctx, p)
}

func TestPollOnce_ShutdownDoesNotAbortApplyingBatch(t *testing.T) {
	client := mockledger.New()
	mem := storage.NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &cancellingStore{MemoryStore: mem, cancel: cancel}

	mapper, err := NewStatusMapper(defaultStatusTable())
	if err != nil {
		t.Fatalf("NewStatusMapper failed: %v", err)
	}

	engine := New(Config{
		Contracts:    []string{testContract},
		PollInterval: time.Second,
		QueryTimeout: time.Second,
		ApplyTimeout: time.Second,
	}, client, store, mapper, retry.NewNoRetryStrategy(), nil)

	client.SeedEvent(propertyEvent(1, "prop-1"))
	client.SeedEvent(propertyEvent(2, "prop-2"))

	// The run context is cancelled while the first event is being
	// written. The batch must still finish and persist its cursor.
	if err := engine.PollOnce(ctx, testContract); err != nil {
		t.Fatalf("PollOnce aborted an in-flight batch on shutdown: %v", err)
	}

	bg := context.Background()
	if _, err := mem.GetProperty(bg, "prop-1"); err != nil {
		t.Errorf("First event lost on shutdown: %v", err)
	}
	if _, err := mem.GetProperty(bg, "prop-2"); err != nil {
		t.Errorf("Second event lost on shutdown: %v", err)
	}

	cursor, err := mem.GetCursor(bg, testContract)
	if err != nil {
		t.Fatalf("GetCursor failed: %v", err)
	}
	if cursor != 2 {
		t.Errorf("Expected persisted cursor 2 after shutdown mid-batch, got %d", cursor)
	}
}

func TestPollOnce_TransientQueryFailureIsRetried(t *testing.T) {
	client := mockledger.New()
	store := storage.NewMemoryStore()

	mapper, err := NewStatusMapper(defaultStatusTable())
	if err != nil {
		t.Fatalf("NewStatusMapper failed: %v", err)
	}
	strategy := retry.NewExponentialBackoffStrategy(3, time.Millisecond, 10*time.Millisecond)

	engine := New(Config{
		Contracts:    []string{testContract},
		PollInterval: time.Second,
		QueryTimeout: time.Second,
		ApplyTimeout: time.Second,
	}, client, store, mapper, strategy, nil)

	client.SeedEvent(propertyEvent(1, "prop-1"))
	client.FailNextQueries(2)

	if err := engine.PollOnce(context.Background(), testContract); err != nil {
		t.Fatalf("Expected retries to absorb the transient failures: %v", err)
	}
	if got := engine.Cursor(testContract); got != 1 {
		t.Errorf("Expected cursor 1, got %d", got)
	}
}

func TestPollOnce_UntrackedContract(t *testing.T) {
	engine := newTestEngine(t, mockledger.New(), storage.NewMemoryStore())

	if err := engine.PollOnce(context.Background(), "CCOTHER"); err == nil {
		t.Error("Expected error for an untracked contract")
	}
}

func TestEngine_Status(t *testing.T) {
	client := mockledger.New()
	store := storage.NewMemoryStore()
	engine := newTestEngine(t, client, store)

	client.SeedEvent(propertyEvent(1, "prop-1"))
	if err := engine.PollOnce(context.Background(), testContract); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	statuses := engine.Status()
	if len(statuses) != 1 {
		t.Fatalf("Expected 1 contract status, got %d", len(statuses))
	}

	st := statuses[0]
	if st.ContractAddress != testContract {
		t.Errorf("Expected contract %q, got %q", testContract, st.ContractAddress)
	}
	if st.State != string(StateIdle) {
		t.Errorf("Expected state %q, got %q", StateIdle, st.State)
	}
	if st.Cursor != 1 {
		t.Errorf("Expected cursor 1, got %d", st.Cursor)
	}
	if st.LastPollAt.IsZero() {
		t.Error("Expected last poll timestamp to be set")
	}
	if st.LastError != "" {
		t.Errorf("Expected empty last error, got %q", st.LastError)
	}
}

func TestEngine_AnchorRecordHash(t *testing.T) {
	client := mockledger.New()
	engine := newTestEngine(t, client, storage.NewMemoryStore())

	txHash, err := engine.AnchorRecordHash(context.Background(), "prop-1", "abc123")
	if err != nil {
		t.Fatalf("AnchorRecordHash failed: %v", err)
	}
	if txHash == "" {
		t.Error("Expected a transaction hash")
	}

	calls := client.SubmittedCalls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 submitted call, got %d", len(calls))
	}
	if calls[0].Method != "anchor_hash" {
		t.Errorf("Expected method anchor_hash, got %q", calls[0].Method)
	}
	if calls[0].Args["record_id"] != "prop-1" || calls[0].Args["hash"] != "abc123" {
		t.Errorf("Unexpected call args: %+v", calls[0].Args)
	}
}

func TestPropertyUpdated_MergesAndRehashes(t *testing.T) {
	client := mockledger.New()
	store := storage.NewMemoryStore()
	engine := newTestEngine(t, client, store)

	client.SeedEvent(propertyEvent(1, "prop-1"))
	if err := engine.PollOnce(context.Background(), testContract); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	before, err := store.GetProperty(context.Background(), "prop-1")
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}

	client.SeedEvent(models.SyncEvent{
		EventID:         "ev-update-1",
		ContractAddress: testContract,
		EventType:       models.EventPropertyUpdated,
		Sequence:        2,
		Timestamp:       time.Now().UTC(),
		Payload: map[string]any{
			"id":    "prop-1",
			"price": 200.0,
		},
	})
	if err := engine.PollOnce(context.Background(), testContract); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	after, err := store.GetProperty(context.Background(), "prop-1")
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}

	if after.Price != 200.0 {
		t.Errorf("Expected price 200, got %v", after.Price)
	}
	if after.Title != before.Title {
		t.Errorf("Unrelated field changed on partial update: %q -> %q", before.Title, after.Title)
	}
	if after.IntegrityHash == before.IntegrityHash {
		t.Error("Expected integrity hash to change after the price update")
	}
}
