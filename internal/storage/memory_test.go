package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"staysync/internal/models"
)

func TestMemoryStore_PropertyRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	p := models.Property{ID: "prop-1", Title: "Seaside Flat"}
	if err := store.UpsertProperty(ctx, &p); err != nil {
		t.Fatalf("UpsertProperty failed: %v", err)
	}

	got, err := store.GetProperty(ctx, "prop-1")
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}
	if got.Title != "Seaside Flat" {
		t.Errorf("Expected title to round-trip, got %q", got.Title)
	}

	// Returned value is a copy, not a live reference
	got.Title = "mutated"
	again, _ := store.GetProperty(ctx, "prop-1")
	if again.Title != "Seaside Flat" {
		t.Error("Stored property was mutated through a returned pointer")
	}

	if _, err := store.GetProperty(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_FindBookingsExcludesCancelled(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

	bookings := []models.Booking{
		{ID: "bk-1", PropertyID: "prop-1", StartDate: day(10), EndDate: day(15), Status: models.BookingConfirmed},
		{ID: "bk-2", PropertyID: "prop-1", StartDate: day(1), EndDate: day(5), Status: models.BookingPending},
		{ID: "bk-3", PropertyID: "prop-1", StartDate: day(20), EndDate: day(25), Status: models.BookingCancelled},
		{ID: "bk-4", PropertyID: "prop-2", StartDate: day(1), EndDate: day(30), Status: models.BookingConfirmed},
	}
	for i := range bookings {
		if err := store.UpsertBooking(ctx, &bookings[i]); err != nil {
			t.Fatalf("UpsertBooking failed: %v", err)
		}
	}

	intervals, err := store.FindBookingsByProperty(ctx, "prop-1")
	if err != nil {
		t.Fatalf("FindBookingsByProperty failed: %v", err)
	}

	if len(intervals) != 2 {
		t.Fatalf("Expected 2 active intervals, got %d", len(intervals))
	}
	// Ordered by start date
	if !intervals[0].Start.Equal(day(1)) || !intervals[1].Start.Equal(day(10)) {
		t.Errorf("Intervals not ordered by start: %+v", intervals)
	}
}

func TestMemoryStore_UpdateBookingStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	b := models.Booking{ID: "bk-1", PropertyID: "prop-1", Status: models.BookingPending}
	if err := store.UpsertBooking(ctx, &b); err != nil {
		t.Fatalf("UpsertBooking failed: %v", err)
	}

	if err := store.UpdateBookingStatus(ctx, "bk-1", models.BookingConfirmed); err != nil {
		t.Fatalf("UpdateBookingStatus failed: %v", err)
	}
	got, _ := store.GetBooking(ctx, "bk-1")
	if got.Status != models.BookingConfirmed {
		t.Errorf("Expected status confirmed, got %q", got.Status)
	}

	if err := store.UpdateBookingStatus(ctx, "absent", models.BookingConfirmed); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing booking, got %v", err)
	}
}

func TestMemoryStore_CursorAndAppliedEvents(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	cursor, err := store.GetCursor(ctx, "C1")
	if err != nil {
		t.Fatalf("GetCursor failed: %v", err)
	}
	if cursor != 0 {
		t.Errorf("Expected cursor 0 for unseen contract, got %d", cursor)
	}

	if err := store.SetCursor(ctx, "C1", 17); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}
	cursor, _ = store.GetCursor(ctx, "C1")
	if cursor != 17 {
		t.Errorf("Expected cursor 17, got %d", cursor)
	}

	applied, err := store.EventApplied(ctx, "ev-1")
	if err != nil {
		t.Fatalf("EventApplied failed: %v", err)
	}
	if applied {
		t.Error("Expected ev-1 not applied yet")
	}

	if err := store.MarkEventApplied(ctx, "ev-1", "C1", 17); err != nil {
		t.Fatalf("MarkEventApplied failed: %v", err)
	}
	applied, _ = store.EventApplied(ctx, "ev-1")
	if !applied {
		t.Error("Expected ev-1 to be marked applied")
	}
}
