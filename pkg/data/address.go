package data

import "strings"

// Address identifies one property. Street, City, State and PostalCode are required.
//
// Token is an opaque caller value echoed back on the matching result. Use it to
// correlate results with inputs when results are consumed in completion order.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Unit       string `json:"unit,omitempty"`
	Token      string `json:"token,omitempty"`
}

// Validate reports the first missing required field.
func (a Address) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"postal_code", a.PostalCode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &AddressError{Token: a.Token, Field: f.name}
		}
	}
	return nil
}

func validateAddresses(addresses []Address) error {
	for _, a := range addresses {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	return nil
}
