package model

import (
	"time"
	"unicode/utf8"
)

type EmailStatus string

const (
	EmailSent   EmailStatus = "sent"
	EmailFailed EmailStatus = "failed"
)

func (s EmailStatus) String() string { return string(s) }

func (s EmailStatus) Valid() bool {
	return s == EmailSent || s == EmailFailed
}

// Lead is an accepted inquiry persisted in the leads table.
type Lead struct {
	ID               string      `db:"id" json:"id"`
	Name             string      `db:"name" json:"name"`
	Company          string      `db:"company" json:"company"`
	Email            string      `db:"email" json:"email"`
	Role             string      `db:"role" json:"role,omitempty"`
	Phone            string      `db:"phone" json:"phone,omitempty"`
	FreightModes     string      `db:"freight_modes" json:"freight_modes"` // comma separated
	ApproximateSpend string      `db:"approximate_spend" json:"approximate_spend,omitempty"`
	Message          string      `db:"message" json:"message,omitempty"`
	ClientIP         string      `db:"client_ip" json:"client_ip"`
	EmailStatus      EmailStatus `db:"email_status" json:"email_status"`
	MessageID        string      `db:"message_id" json:"message_id,omitempty"` // provider operation id
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
}

// Column widths of the leads table, in characters.
const (
	MaxNameLen         = 255
	MaxEmailLen        = 320
	MaxPhoneLen        = 64
	MaxFreightModesLen = 512
	MaxClientIPLen     = 64
	MaxMessageIDLen    = 128
)

// NewLead builds the archive row for an accepted inquiry with every field
// clipped to its column width.
func NewLead(id string, in Inquiry, ip string, status EmailStatus, messageID string, at time.Time) Lead {
	return Lead{
		ID:               id,
		Name:             clip(in.Name, MaxNameLen),
		Company:          clip(in.Company, MaxNameLen),
		Email:            clip(in.Email, MaxEmailLen),
		Role:             clip(in.Role, MaxNameLen),
		Phone:            clip(in.Phone, MaxPhoneLen),
		FreightModes:     clip(in.FreightModesCSV(), MaxFreightModesLen),
		ApproximateSpend: clip(in.ApproximateSpend, MaxNameLen),
		Message:          in.Message,
		ClientIP:         clip(ip, MaxClientIPLen),
		EmailStatus:      status,
		MessageID:        clip(messageID, MaxMessageIDLen),
		CreatedAt:        at.UTC(),
	}
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
