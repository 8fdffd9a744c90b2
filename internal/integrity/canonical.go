package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"staysync/internal/models"
)

// ValidationError reports a record that is missing a field required for
// canonicalization. It is surfaced to the caller immediately and never
// retried.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// Field lists are fixed; canonical output order never depends on input
// ordering. Changing these lists changes every hash, so treat them as
// part of the wire format.
var propertyFields = []string{
	"title", "price", "address", "city", "country",
	"amenities", "bedrooms", "bathrooms", "max_guests",
}

var bookingFields = []string{
	"property_id", "guest_id", "start_date", "end_date", "total_price",
}

// CanonicalRecord is an ordered field/value mapping used only as hashing
// input. Values are already normalized.
type CanonicalRecord struct {
	fields []string
	values []string
}

// String renders the record as a single deterministic string: fields in
// declared order, "field=value" pairs joined by newlines. Values are
// quoted, so a newline or separator inside one value can never shift
// content into an adjacent field; two records serialize identically only
// when every field matches.
func (c CanonicalRecord) String() string {
	var b strings.Builder
	for i, f := range c.fields {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(c.values[i]))
	}
	return b.String()
}

// Equal reports whether two canonical records are identical field for
// field.
func (c CanonicalRecord) Equal(other CanonicalRecord) bool {
	return c.String() == other.String()
}

// CanonicalizeProperty normalizes a property into its canonical form:
// strings trimmed (case preserved), amenities sorted ascending with
// duplicates kept and serialized as a JSON array so element boundaries
// stay unambiguous, numerics passed through, field order fixed.
func CanonicalizeProperty(p models.Property) (CanonicalRecord, error) {
	required := map[string]string{
		"title":   p.Title,
		"address": p.Address,
		"city":    p.City,
		"country": p.Country,
	}
	for _, f := range []string{"title", "address", "city", "country"} {
		if strings.TrimSpace(required[f]) == "" {
			return CanonicalRecord{}, &ValidationError{Field: f}
		}
	}

	amenities := make([]string, len(p.Amenities))
	for i, a := range p.Amenities {
		amenities[i] = strings.TrimSpace(a)
	}
	sort.Strings(amenities)
	// Marshal of a string slice cannot fail
	amenitiesJSON, _ := json.Marshal(amenities)

	values := map[string]string{
		"title":      strings.TrimSpace(p.Title),
		"price":      formatFloat(p.Price),
		"address":    strings.TrimSpace(p.Address),
		"city":       strings.TrimSpace(p.City),
		"country":    strings.TrimSpace(p.Country),
		"amenities":  string(amenitiesJSON),
		"bedrooms":   strconv.Itoa(p.Bedrooms),
		"bathrooms":  strconv.Itoa(p.Bathrooms),
		"max_guests": strconv.Itoa(p.MaxGuests),
	}

	return build(propertyFields, values), nil
}

// CanonicalizeBooking normalizes a booking. Dates are rendered in RFC 3339
// UTC so the same instant always canonicalizes identically.
func CanonicalizeBooking(b models.Booking) (CanonicalRecord, error) {
	if strings.TrimSpace(b.PropertyID) == "" {
		return CanonicalRecord{}, &ValidationError{Field: "property_id"}
	}
	if b.StartDate.IsZero() {
		return CanonicalRecord{}, &ValidationError{Field: "start_date"}
	}
	if b.EndDate.IsZero() {
		return CanonicalRecord{}, &ValidationError{Field: "end_date"}
	}

	values := map[string]string{
		"property_id": strings.TrimSpace(b.PropertyID),
		"guest_id":    strings.TrimSpace(b.GuestID),
		"start_date":  b.StartDate.UTC().Format("2006-01-02T15:04:05Z07:00"),
		"end_date":    b.EndDate.UTC().Format("2006-01-02T15:04:05Z07:00"),
		"total_price": formatFloat(b.TotalPrice),
	}

	return build(bookingFields, values), nil
}

// HashProperty computes the integrity hash of a property: lowercase-hex
// SHA-256 over the canonical string.
func HashProperty(p models.Property) (string, error) {
	c, err := CanonicalizeProperty(p)
	if err != nil {
		return "", err
	}
	return digest(c), nil
}

// HashBooking computes the integrity hash of a booking.
func HashBooking(b models.Booking) (string, error) {
	c, err := CanonicalizeBooking(b)
	if err != nil {
		return "", err
	}
	return digest(c), nil
}

func build(fields []string, values map[string]string) CanonicalRecord {
	c := CanonicalRecord{
		fields: fields,
		values: make([]string, len(fields)),
	}
	for i, f := range fields {
		c.values[i] = values[f]
	}
	return c
}

func digest(c CanonicalRecord) string {
	sum := sha256.Sum256([]byte(c.String()))
	return hex.EncodeToString(sum[:])
}

// formatFloat renders numerics without rounding and without exponent
// notation variance for typical price values.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
