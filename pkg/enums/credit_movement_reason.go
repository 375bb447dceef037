package enums

import "fmt"

// CreditMovementReason labels an entry in the credit ledger trail.
type CreditMovementReason string

const (
	CreditReasonSignupGrant  CreditMovementReason = "signup_grant"
	CreditReasonRideDebit    CreditMovementReason = "ride_debit"
	CreditReasonRideRefund   CreditMovementReason = "ride_refund"
	CreditReasonDriverPayout CreditMovementReason = "driver_payout"
	CreditReasonAdminAdjust  CreditMovementReason = "admin_adjustment"
)

var validCreditMovementReasons = []CreditMovementReason{
	CreditReasonSignupGrant,
	CreditReasonRideDebit,
	CreditReasonRideRefund,
	CreditReasonDriverPayout,
	CreditReasonAdminAdjust,
}

// String implements fmt.Stringer.
func (r CreditMovementReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known CreditMovementReason.
func (r CreditMovementReason) IsValid() bool {
	for _, candidate := range validCreditMovementReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseCreditMovementReason converts raw input into a CreditMovementReason.
func ParseCreditMovementReason(value string) (CreditMovementReason, error) {
	for _, candidate := range validCreditMovementReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid credit movement reason %q", value)
}
