package model

import "time"

// LeadEvent is the payload published to Kafka (via Debezium outbox SMT).
type LeadEvent struct {
	ID          string      `json:"id"` // lead ULID
	Company     string      `json:"company"`
	Email       string      `json:"email"`
	Modes       []string    `json:"freight_modes"`
	Spend       string      `json:"approximate_spend,omitempty"`
	EmailStatus EmailStatus `json:"email_status"`
	CreatedAt   time.Time   `json:"created_at"`
}

// EventFromLead derives the outbox payload; free text and contact details
// other than the email address stay in MySQL.
func EventFromLead(l Lead, modes []string) LeadEvent {
	return LeadEvent{
		ID:          l.ID,
		Company:     l.Company,
		Email:       l.Email,
		Modes:       modes,
		Spend:       l.ApproximateSpend,
		EmailStatus: l.EmailStatus,
		CreatedAt:   l.CreatedAt,
	}
}
