package model

import "strings"

// Inquiry is a sanitized contact-form submission. It lives for one request.
type Inquiry struct {
	Name             string   `json:"name"`
	Company          string   `json:"company"`
	Email            string   `json:"email"`
	Role             string   `json:"role,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	FreightModes     []string `json:"freightModes"`
	ApproximateSpend string   `json:"approximateSpend,omitempty"`
	Message          string   `json:"message,omitempty"`
	TurnstileToken   string   `json:"-"`
}

// FreightModesCSV joins freight modes for display and storage.
func (i Inquiry) FreightModesCSV() string {
	return strings.Join(i.FreightModes, ", ")
}
