package types

import (
	"fmt"
	"strings"
)

// Address is the delivery destination captured at checkout. It is stored as
// JSON alongside the order document.
type Address struct {
	Line1      string   `json:"line1" validate:"required"`
	Line2      *string  `json:"line2,omitempty"`
	Landmark   *string  `json:"landmark,omitempty"`
	City       string   `json:"city" validate:"required"`
	State      string   `json:"state"`
	PostalCode string   `json:"postal_code" validate:"required"`
	Country    string   `json:"country"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// IsEmpty reports whether no usable destination was supplied.
func (a Address) IsEmpty() bool {
	return strings.TrimSpace(a.Line1) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.PostalCode) == ""
}

// Validate checks the minimum fields a rider needs.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Line1) == "" {
		return fmt.Errorf("address: missing line1")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return fmt.Errorf("address: missing postal_code")
	}
	return nil
}

// Normalized trims whitespace and fills the default country.
func (a Address) Normalized() Address {
	out := a
	out.Line1 = strings.TrimSpace(a.Line1)
	out.City = strings.TrimSpace(a.City)
	out.State = strings.TrimSpace(a.State)
	out.PostalCode = strings.TrimSpace(a.PostalCode)
	out.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	if out.Country == "" {
		out.Country = "IN"
	}
	return out
}
