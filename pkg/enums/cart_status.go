package enums

import "fmt"

// CartStatus tracks whether a cart is still editable or holds reserved stock.
// Reserving and releasing mark a cart claimed by an in-flight reservation
// or release; no other flow touches it meanwhile.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusReserving CartStatus = "reserving"
	CartStatusReserved  CartStatus = "reserved"
	CartStatusReleasing CartStatus = "releasing"
)

var validCartStatuses = []CartStatus{
	CartStatusActive,
	CartStatusReserving,
	CartStatusReserved,
	CartStatusReleasing,
}

// String implements fmt.Stringer.
func (c CartStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartStatus.
func (c CartStatus) IsValid() bool {
	for _, candidate := range validCartStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartStatus converts raw input into a CartStatus.
func ParseCartStatus(value string) (CartStatus, error) {
	for _, candidate := range validCartStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart status %q", value)
}
