package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"staysync/internal/integrity"
	"staysync/internal/metrics"
	"staysync/internal/models"
)

// operation pairs an event type with the store update it maps to. The
// table is the single dispatch point: adding an event type means adding a
// row here, not another conditional.
type operation struct {
	name  string
	apply func(ctx context.Context, e *Engine, ev models.SyncEvent) error
}

var operations = map[string]operation{
	models.EventPropertyCreated:      {name: "insert_property", apply: applyPropertyCreated},
	models.EventPropertyUpdated:      {name: "update_property_fields", apply: applyPropertyUpdated},
	models.EventBookingCreated:       {name: "insert_booking", apply: applyBookingCreated},
	models.EventBookingStatusChanged: {name: "update_booking_status", apply: applyBookingStatusChanged},
}

func applyPropertyCreated(ctx context.Context, e *Engine, ev models.SyncEvent) error {
	p, err := propertyFromPayload(ev)
	if err != nil {
		return err
	}

	hash, err := integrity.HashProperty(*p)
	if err != nil {
		return err
	}
	p.IntegrityHash = hash

	e.checkExpectedHash(ev, p.ID, hash)

	if err := e.store.UpsertProperty(ctx, p); err != nil {
		return err
	}
	return e.invalidateProperty(ctx, p.ID)
}

func applyPropertyUpdated(ctx context.Context, e *Engine, ev models.SyncEvent) error {
	id, err := payloadString(ev.Payload, "id")
	if err != nil {
		return err
	}

	p, err := e.store.GetProperty(ctx, id)
	if err != nil {
		return err
	}

	mergePropertyFields(p, ev.Payload)
	p.UpdatedAt = ev.Timestamp

	hash, err := integrity.HashProperty(*p)
	if err != nil {
		return err
	}
	p.IntegrityHash = hash

	e.checkExpectedHash(ev, p.ID, hash)

	if err := e.store.UpsertProperty(ctx, p); err != nil {
		return err
	}
	return e.invalidateProperty(ctx, p.ID)
}

func applyBookingCreated(ctx context.Context, e *Engine, ev models.SyncEvent) error {
	b, err := bookingFromPayload(e, ev)
	if err != nil {
		return err
	}

	hash, err := integrity.HashBooking(*b)
	if err != nil {
		return err
	}
	b.IntegrityHash = hash

	return e.store.UpsertBooking(ctx, b)
}

func applyBookingStatusChanged(ctx context.Context, e *Engine, ev models.SyncEvent) error {
	id, err := payloadString(ev.Payload, "id")
	if err != nil {
		return err
	}
	raw, err := payloadString(ev.Payload, "status")
	if err != nil {
		return err
	}

	status, err := e.mapper.Map(raw)
	if err != nil {
		return err
	}

	// "Set status to X" keeps replays idempotent
	return e.store.UpdateBookingStatus(ctx, id, status)
}

// checkExpectedHash verifies an integrity hash the event itself carries.
// A mismatch is a signal, not a failure: it is logged and counted, and
// the ledger value stays authoritative.
func (e *Engine) checkExpectedHash(ev models.SyncEvent, recordID, computed string) {
	expected, ok := ev.Payload["integrity_hash"].(string)
	if !ok || expected == "" {
		return
	}
	if expected == computed {
		metrics.IntegrityChecks.WithLabelValues("match").Inc()
		return
	}
	metrics.IntegrityChecks.WithLabelValues("mismatch").Inc()
	slog.Warn("Integrity hash mismatch after applying event",
		"event_id", ev.EventID,
		"record_id", recordID,
		"expected", expected,
		"computed", computed,
	)
}

func (e *Engine) invalidateProperty(ctx context.Context, id string) error {
	// Cache invalidation failures must not poison the batch
	if err := e.cache.Del(ctx, "property:"+id); err != nil {
		slog.Warn("Failed to invalidate property cache", "property_id", id, "error", err)
	}
	return nil
}

// ---- payload decoding ----

func propertyFromPayload(ev models.SyncEvent) (*models.Property, error) {
	id, err := payloadString(ev.Payload, "id")
	if err != nil {
		return nil, err
	}

	p := &models.Property{
		ID:              id,
		Title:           stringField(ev.Payload, "title"),
		Description:     stringField(ev.Payload, "description"),
		Address:         stringField(ev.Payload, "address"),
		City:            stringField(ev.Payload, "city"),
		Country:         stringField(ev.Payload, "country"),
		Amenities:       stringSliceField(ev.Payload, "amenities"),
		ContractAddress: ev.ContractAddress,
		Status:          stringField(ev.Payload, "status"),
		UpdatedAt:       ev.Timestamp,
	}
	p.Price, _ = floatField(ev.Payload, "price")
	p.Bedrooms, _ = intField(ev.Payload, "bedrooms")
	p.Bathrooms, _ = intField(ev.Payload, "bathrooms")
	p.MaxGuests, _ = intField(ev.Payload, "max_guests")
	return p, nil
}

func bookingFromPayload(e *Engine, ev models.SyncEvent) (*models.Booking, error) {
	id, err := payloadString(ev.Payload, "id")
	if err != nil {
		return nil, err
	}
	propertyID, err := payloadString(ev.Payload, "property_id")
	if err != nil {
		return nil, err
	}
	start, err := payloadTime(ev.Payload, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := payloadTime(ev.Payload, "end_date")
	if err != nil {
		return nil, err
	}

	status := models.BookingPending
	if raw := stringField(ev.Payload, "status"); raw != "" {
		status, err = e.mapper.Map(raw)
		if err != nil {
			return nil, err
		}
	}

	b := &models.Booking{
		ID:         id,
		PropertyID: propertyID,
		GuestID:    stringField(ev.Payload, "guest_id"),
		StartDate:  start,
		EndDate:    end,
		Status:     status,
		UpdatedAt:  ev.Timestamp,
	}
	b.TotalPrice, _ = floatField(ev.Payload, "total_price")
	return b, nil
}

// mergePropertyFields overlays the payload's known fields onto an
// existing property. Absent fields keep their stored values.
func mergePropertyFields(p *models.Property, payload map[string]any) {
	if v, ok := payload["title"].(string); ok {
		p.Title = v
	}
	if v, ok := payload["description"].(string); ok {
		p.Description = v
	}
	if v, ok := payload["address"].(string); ok {
		p.Address = v
	}
	if v, ok := payload["city"].(string); ok {
		p.City = v
	}
	if v, ok := payload["country"].(string); ok {
		p.Country = v
	}
	if v, ok := payload["status"].(string); ok {
		p.Status = v
	}
	if _, ok := payload["amenities"]; ok {
		p.Amenities = stringSliceField(payload, "amenities")
	}
	if v, ok := floatField(payload, "price"); ok {
		p.Price = v
	}
	if v, ok := intField(payload, "bedrooms"); ok {
		p.Bedrooms = v
	}
	if v, ok := intField(payload, "bathrooms"); ok {
		p.Bathrooms = v
	}
	if v, ok := intField(payload, "max_guests"); ok {
		p.MaxGuests = v
	}
}

// payloadString fetches a required string field; absence is a
// ValidationError so the engine skips rather than aborts the batch.
func payloadString(payload map[string]any, key string) (string, error) {
	v, ok := payload[key].(string)
	if !ok || v == "" {
		return "", &integrity.ValidationError{Field: key}
	}
	return v, nil
}

func payloadTime(payload map[string]any, key string) (time.Time, error) {
	v, err := payloadString(payload, key)
	if err != nil {
		return time.Time{}, err
	}
	// Events carry dates either as full RFC 3339 timestamps or bare days
	t, perr := time.Parse(time.RFC3339, v)
	if perr != nil {
		t, perr = time.Parse("2006-01-02", v)
	}
	if perr != nil {
		return time.Time{}, &integrity.ValidationError{Field: key}
	}
	return t, nil
}

func stringField(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func stringSliceField(payload map[string]any, key string) []string {
	switch v := payload[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// floatField tolerates the numeric shapes JSON decoding and ScVal
// conversion produce.
func floatField(payload map[string]any, key string) (float64, bool) {
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func intField(payload map[string]any, key string) (int, bool) {
	f, ok := floatField(payload, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}
