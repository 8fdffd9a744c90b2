package syncer

import (
	"errors"
	"testing"

	"staysync/internal/models"
)

func defaultStatusTable() map[string]string {
	return map[string]string{
		"initialized": "pending",
		"funded":      "confirmed",
		"released":    "completed",
		"cancelled":   "cancelled",
		"refunded":    "cancelled",
	}
}

func TestStatusMapper_Map(t *testing.T) {
	mapper, err := NewStatusMapper(defaultStatusTable())
	if err != nil {
		t.Fatalf("NewStatusMapper failed: %v", err)
	}

	cases := []struct {
		raw  string
		want models.BookingStatus
	}{
		{"initialized", models.BookingPending},
		{"funded", models.BookingConfirmed},
		{"released", models.BookingCompleted},
		{"cancelled", models.BookingCancelled},
		{"refunded", models.BookingCancelled},
	}

	for _, tc := range cases {
		got, err := mapper.Map(tc.raw)
		if err != nil {
			t.Errorf("Map(%q) failed: %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Map(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestStatusMapper_UnknownStatus(t *testing.T) {
	mapper, err := NewStatusMapper(defaultStatusTable())
	if err != nil {
		t.Fatalf("NewStatusMapper failed: %v", err)
	}

	_, err = mapper.Map("disputed")

	var unknown *UnknownStatusError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected UnknownStatusError, got %v", err)
	}
	if unknown.Raw != "disputed" {
		t.Errorf("Expected raw status %q, got %q", "disputed", unknown.Raw)
	}
}

func TestNewStatusMapper_InvalidTarget(t *testing.T) {
	_, err := NewStatusMapper(map[string]string{"funded": "approved"})
	if err == nil {
		t.Error("Expected error for mapping to an unknown booking status")
	}
}
