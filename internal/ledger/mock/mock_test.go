package mockledger

import (
	"context"
	"testing"
	"time"

	"staysync/internal/ledger"
	"staysync/internal/models"
)

func TestQueryEvents_FiltersAndSorts(t *testing.T) {
	a := New()
	ctx := context.Background()

	a.SeedEvent(models.SyncEvent{EventID: "e3", ContractAddress: "C1", Sequence: 3})
	a.SeedEvent(models.SyncEvent{EventID: "e1", ContractAddress: "C1", Sequence: 1})
	a.SeedEvent(models.SyncEvent{EventID: "e2", ContractAddress: "C1", Sequence: 2})
	a.SeedEvent(models.SyncEvent{EventID: "other", ContractAddress: "C2", Sequence: 1})

	events, err := a.QueryEvents(ctx, "C1", 2)
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("Expected 2 events at sequence >= 2, got %d", len(events))
	}
	if events[0].EventID != "e2" || events[1].EventID != "e3" {
		t.Errorf("Events out of sequence order: %s, %s", events[0].EventID, events[1].EventID)
	}
}

func TestLatestSequence_TracksSeededEvents(t *testing.T) {
	a := New()
	ctx := context.Background()

	latest, err := a.LatestSequence(ctx)
	if err != nil {
		t.Fatalf("LatestSequence failed: %v", err)
	}
	if latest != 0 {
		t.Errorf("Expected latest 0 on empty adapter, got %d", latest)
	}

	a.SeedEvent(models.SyncEvent{ContractAddress: "C1", Sequence: 7})
	a.SeedEvent(models.SyncEvent{ContractAddress: "C1", Sequence: 4})

	latest, err = a.LatestSequence(ctx)
	if err != nil {
		t.Fatalf("LatestSequence failed: %v", err)
	}
	if latest != 7 {
		t.Errorf("Expected latest 7, got %d", latest)
	}
}

func TestFailNextQueries_InjectsTransientErrors(t *testing.T) {
	a := New()
	ctx := context.Background()

	a.FailNextQueries(2)

	_, err := a.QueryEvents(ctx, "C1", 1)
	if !ledger.IsTransient(err) {
		t.Errorf("Expected a transient error, got %v", err)
	}

	_, err = a.LatestSequence(ctx)
	if !ledger.IsTransient(err) {
		t.Errorf("Expected a transient error, got %v", err)
	}

	// Budget exhausted, calls succeed again
	if _, err := a.QueryEvents(ctx, "C1", 1); err != nil {
		t.Errorf("Expected success after injected failures, got %v", err)
	}
}

func TestSubmitContractCall_RecordsCalls(t *testing.T) {
	a := New()

	txHash, err := a.SubmitContractCall(context.Background(), "anchor_hash", map[string]any{"hash": "abc"})
	if err != nil {
		t.Fatalf("SubmitContractCall failed: %v", err)
	}
	if txHash == "" {
		t.Error("Expected a generated tx hash")
	}

	calls := a.SubmittedCalls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 recorded call, got %d", len(calls))
	}
	if calls[0].Method != "anchor_hash" || calls[0].TxHash != txHash {
		t.Errorf("Recorded call mismatch: %+v", calls[0])
	}
}

func TestCheckAvailability_MatchesHalfOpenSemantics(t *testing.T) {
	a := New()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	a.SeedBooking(models.BookingInterval{PropertyID: "prop-1", Start: start, End: end})

	// Starting on the checkout day does not conflict
	ok, err := a.CheckAvailability("prop-1", end, end.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if !ok {
		t.Error("Expected checkout day to be bookable")
	}

	ok, err = a.CheckAvailability("prop-1", start.AddDate(0, 0, 5), end.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("CheckAvailability failed: %v", err)
	}
	if ok {
		t.Error("Expected overlapping range to conflict")
	}
}

func TestReset(t *testing.T) {
	a := New()
	ctx := context.Background()

	a.SeedEvent(models.SyncEvent{ContractAddress: "C1", Sequence: 5})
	a.Reset()

	events, err := a.QueryEvents(ctx, "C1", 1)
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no events after reset, got %d", len(events))
	}

	latest, _ := a.LatestSequence(ctx)
	if latest != 0 {
		t.Errorf("Expected latest 0 after reset, got %d", latest)
	}
}
