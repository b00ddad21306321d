package model

// EmailMessage is the notification composed for an accepted inquiry.
type EmailMessage struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}
