package enums

import "fmt"

// LoyaltyEventType maps to the loyalty_event_type enum in Postgres.
type LoyaltyEventType string

const (
	LoyaltyEventEarn   LoyaltyEventType = "earn"
	LoyaltyEventRedeem LoyaltyEventType = "redeem"
)

var validLoyaltyEventTypes = []LoyaltyEventType{
	LoyaltyEventEarn,
	LoyaltyEventRedeem,
}

// IsValid reports whether the value matches the canonical loyalty event enum.
func (t LoyaltyEventType) IsValid() bool {
	for _, candidate := range validLoyaltyEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLoyaltyEventType converts raw input into a LoyaltyEventType.
func ParseLoyaltyEventType(value string) (LoyaltyEventType, error) {
	for _, candidate := range validLoyaltyEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid loyalty event type %q", value)
}
