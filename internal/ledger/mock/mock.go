// Package mockledger is a deterministic in-memory stand-in for the real
// ledger client, used by tests and non-production environments. It honors
// the same Client contract and the same booking-overlap semantics as the
// availability checker.
package mockledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"staysync/internal/availability"
	"staysync/internal/ledger"
	"staysync/internal/models"
)

// Adapter implements ledger.Client against in-memory state seeded by the
// caller. Safe for concurrent use.
type Adapter struct {
	mu       sync.Mutex
	events   map[string][]models.SyncEvent // keyed by contract address
	bookings []models.BookingInterval
	latest   uint64
	calls    []SubmittedCall

	// failQueries makes the next N QueryEvents/LatestSequence calls fail
	// with a TransientError, for exercising retry paths.
	failQueries int
}

// SubmittedCall records a SubmitContractCall invocation for assertions.
type SubmittedCall struct {
	Method string
	Args   map[string]any
	TxHash string
}

// New creates an empty Adapter.
func New() *Adapter {
	return &Adapter{events: make(map[string][]models.SyncEvent)}
}

// QueryEvents returns seeded events for the contract at fromSequence and
// later, ascending by sequence.
func (a *Adapter) QueryEvents(ctx context.Context, contractAddress string, fromSequence uint64) ([]models.SyncEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failQueries > 0 {
		a.failQueries--
		return nil, &ledger.TransientError{Op: "query_events", Err: fmt.Errorf("injected failure")}
	}

	var out []models.SyncEvent
	for _, ev := range a.events[contractAddress] {
		if ev.Sequence >= fromSequence {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// SubmitContractCall records the call and returns a generated tx hash.
func (a *Adapter) SubmitContractCall(ctx context.Context, method string, args map[string]any) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	txHash := uuid.NewString()
	a.calls = append(a.calls, SubmittedCall{Method: method, Args: args, TxHash: txHash})
	return txHash, nil
}

// LatestSequence returns the highest seeded event sequence.
func (a *Adapter) LatestSequence(ctx context.Context) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failQueries > 0 {
		a.failQueries--
		return 0, &ledger.TransientError{Op: "latest_sequence", Err: fmt.Errorf("injected failure")}
	}
	return a.latest, nil
}

// CheckAvailability mirrors the availability checker's half-open overlap
// semantics against the seeded bookings.
func (a *Adapter) CheckAvailability(propertyID string, start, end time.Time) (bool, error) {
	a.mu.Lock()
	existing := make([]models.BookingInterval, len(a.bookings))
	copy(existing, a.bookings)
	a.mu.Unlock()

	return availability.IsAvailable(propertyID, start, end, existing)
}

// Close is a no-op.
func (a *Adapter) Close() error { return nil }

// SeedEvent injects an event. The latest sequence advances to cover it.
func (a *Adapter) SeedEvent(ev models.SyncEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	a.events[ev.ContractAddress] = append(a.events[ev.ContractAddress], ev)
	if ev.Sequence > a.latest {
		a.latest = ev.Sequence
	}
}

// SeedBooking injects a booking interval for availability checks.
func (a *Adapter) SeedBooking(iv models.BookingInterval) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bookings = append(a.bookings, iv)
}

// FailNextQueries makes the next n query calls fail transiently.
func (a *Adapter) FailNextQueries(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failQueries = n
}

// SubmittedCalls returns a copy of all recorded contract calls.
func (a *Adapter) SubmittedCalls() []SubmittedCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]SubmittedCall, len(a.calls))
	copy(out, a.calls)
	return out
}

// Reset clears all seeded state.
func (a *Adapter) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = make(map[string][]models.SyncEvent)
	a.bookings = nil
	a.calls = nil
	a.latest = 0
	a.failQueries = 0
}
