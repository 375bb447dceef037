package enums

import "fmt"

// ValidationStatus tracks a passenger's post-ride verdict on their
// participation. Payout to the driver happens on the pending -> confirmed
// transition only.
type ValidationStatus string

const (
	ValidationStatusPending   ValidationStatus = "pending"
	ValidationStatusConfirmed ValidationStatus = "confirmed"
	ValidationStatusDisputed  ValidationStatus = "disputed"
)

var validValidationStatuses = []ValidationStatus{
	ValidationStatusPending,
	ValidationStatusConfirmed,
	ValidationStatusDisputed,
}

// String implements fmt.Stringer.
func (s ValidationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ValidationStatus.
func (s ValidationStatus) IsValid() bool {
	for _, candidate := range validValidationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseValidationStatus converts raw input into a ValidationStatus.
func ParseValidationStatus(value string) (ValidationStatus, error) {
	for _, candidate := range validValidationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid validation status %q", value)
}
