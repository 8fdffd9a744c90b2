package syncer

import (
	"fmt"

	"staysync/internal/models"
)

// UnknownStatusError reports a raw ledger status outside the configured
// mapping. The offending event is skipped; the poll loop keeps running.
type UnknownStatusError struct {
	Raw string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown ledger status: %q", e.Raw)
}

// StatusMapper translates raw ledger status strings into booking
// statuses. The raw set is enumerated in configuration, never inferred.
type StatusMapper struct {
	table map[string]models.BookingStatus
}

// NewStatusMapper builds a mapper from a raw-to-status table. Every target
// must be a known BookingStatus.
func NewStatusMapper(table map[string]string) (*StatusMapper, error) {
	m := &StatusMapper{table: make(map[string]models.BookingStatus, len(table))}
	for raw, target := range table {
		status := models.BookingStatus(target)
		if !status.Valid() {
			return nil, fmt.Errorf("status mapping %q -> %q: not a valid booking status", raw, target)
		}
		m.table[raw] = status
	}
	return m, nil
}

// Map returns the booking status for a raw ledger status. Total over the
// configured domain; anything else is an UnknownStatusError.
func (m *StatusMapper) Map(raw string) (models.BookingStatus, error) {
	status, ok := m.table[raw]
	if !ok {
		return "", &UnknownStatusError{Raw: raw}
	}
	return status, nil
}
