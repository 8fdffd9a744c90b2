package integrity

import "staysync/internal/models"

// VerifyProperty recomputes the property's hash and compares it byte for
// byte against the stored hash. Any mismatch returns false; there is no
// partial credit. A false result is a signal, not an error; callers
// decide policy.
func VerifyProperty(p models.Property, storedHash string) (bool, error) {
	computed, err := HashProperty(p)
	if err != nil {
		return false, err
	}
	return computed == storedHash, nil
}

// VerifyBooking is the booking counterpart of VerifyProperty.
func VerifyBooking(b models.Booking, storedHash string) (bool, error) {
	computed, err := HashBooking(b)
	if err != nil {
		return false, err
	}
	return computed == storedHash, nil
}
