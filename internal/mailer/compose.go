package mailer

import (
	"fmt"
	"strings"

	pongo2 "github.com/flosch/pongo2/v6"
	"github.com/jmehdipour/lead-intake/internal/model"
)

const noMessage = "(none)"

var textTemplate = pongo2.Must(pongo2.FromString(`{% autoescape off %}New inquiry from the website

Name: {{ name }}
Company: {{ company }}
{% if role %}Role: {{ role }}
{% endif %}Email: {{ email }}
{% if phone %}Phone: {{ phone }}
{% endif %}Freight modes: {{ modes }}
{% if spend %}Approximate spend: {{ spend }}
{% endif %}
Message:
{{ message }}

--
IP: {{ ip }}
{% endautoescape %}`))

var htmlTemplate = pongo2.Must(pongo2.FromString(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;font-size:14px;color:#111">
<h2 style="margin:0 0 12px">New inquiry from the website</h2>
<table cellpadding="4" cellspacing="0">
<tr><td><strong>Name</strong></td><td>{{ name }}</td></tr>
<tr><td><strong>Company</strong></td><td>{{ company }}</td></tr>
{% if role %}<tr><td><strong>Role</strong></td><td>{{ role }}</td></tr>
{% endif %}<tr><td><strong>Email</strong></td><td>{{ email }}</td></tr>
{% if phone %}<tr><td><strong>Phone</strong></td><td>{{ phone }}</td></tr>
{% endif %}<tr><td><strong>Freight modes</strong></td><td>{{ modes }}</td></tr>
{% if spend %}<tr><td><strong>Approximate spend</strong></td><td>{{ spend }}</td></tr>
{% endif %}</table>
<h3 style="margin:16px 0 6px">Message</h3>
<p style="white-space:pre-wrap">{{ message }}</p>
<hr>
<p style="color:#666;font-size:12px">IP: {{ ip }}</p>
</body></html>
`))

// Compose renders the notification for an accepted inquiry. All values are
// autoescaped in the HTML body.
func Compose(in model.Inquiry, ip, subjectPrefix, from, to string) (model.EmailMessage, error) {
	message := in.Message
	if message == "" {
		message = noMessage
	}

	ctx := pongo2.Context{
		"name":    in.Name,
		"company": in.Company,
		"role":    in.Role,
		"email":   in.Email,
		"phone":   in.Phone,
		"modes":   in.FreightModesCSV(),
		"spend":   in.ApproximateSpend,
		"message": message,
		"ip":      ip,
	}

	text, err := textTemplate.Execute(ctx)
	if err != nil {
		return model.EmailMessage{}, fmt.Errorf("render text body: %w", err)
	}
	html, err := htmlTemplate.Execute(ctx)
	if err != nil {
		return model.EmailMessage{}, fmt.Errorf("render html body: %w", err)
	}

	return model.EmailMessage{
		From:    from,
		To:      to,
		ReplyTo: in.Email,
		Subject: Subject(subjectPrefix, in.Name, in.Company),
		Text:    text,
		HTML:    html,
	}, nil
}

// Subject builds "<prefix> <name> (<company>)".
func Subject(prefix, name, company string) string {
	s := strings.TrimSpace(prefix + " " + name)
	if company != "" {
		s += " (" + company + ")"
	}
	return s
}
