package mailer

import (
	"strings"
	"testing"

	"github.com/jmehdipour/lead-intake/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeEscapesHTML(t *testing.T) {
	in := model.Inquiry{
		Name:         "<script>alert(1)</script>",
		Company:      `Acme & "Sons"`,
		Email:        "jane@example.com",
		FreightModes: []string{"LTL", "FTL"},
		Message:      "Ship <b>bold</b> 'freight'",
	}

	msg, err := Compose(in, "203.0.113.5", "[Orca Lead]", "noreply@example.com", "sales@example.com")
	require.NoError(t, err)

	assert.Contains(t, msg.HTML, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "Acme &amp; &quot;Sons&quot;")
	assert.Contains(t, msg.HTML, "&lt;b&gt;bold&lt;/b&gt;")
	assert.NotContains(t, msg.HTML, "'freight'")

	// plain text is not escaped
	assert.Contains(t, msg.Text, "Name: <script>alert(1)</script>")
	assert.Contains(t, msg.Text, `Company: Acme & "Sons"`)
}

func TestComposeFields(t *testing.T) {
	in := model.Inquiry{
		Name:             "Jane Doe",
		Company:          "Acme",
		Role:             "Logistics Manager",
		Email:            "jane@example.com",
		Phone:            "+1 555 0100",
		FreightModes:     []string{"LTL", "Parcel"},
		ApproximateSpend: "$1M-$5M",
	}

	msg, err := Compose(in, "198.51.100.4", "[Orca Lead]", "noreply@example.com", "sales@example.com")
	require.NoError(t, err)

	assert.Equal(t, "[Orca Lead] Jane Doe (Acme)", msg.Subject)
	assert.Equal(t, "noreply@example.com", msg.From)
	assert.Equal(t, "sales@example.com", msg.To)
	assert.Equal(t, "jane@example.com", msg.ReplyTo)

	for _, want := range []string{
		"Name: Jane Doe",
		"Company: Acme",
		"Role: Logistics Manager",
		"Email: jane@example.com",
		"Phone: +1 555 0100",
		"Freight modes: LTL, Parcel",
		"Approximate spend: $1M-$5M",
		"(none)",
		"IP: 198.51.100.4",
	} {
		assert.Contains(t, msg.Text, want)
	}
	for _, want := range []string{"Jane Doe", "Logistics Manager", "LTL, Parcel", "(none)", "IP: 198.51.100.4"} {
		assert.Contains(t, msg.HTML, want)
	}
}

func TestComposeOmitsEmptyOptionalFields(t *testing.T) {
	in := model.Inquiry{Name: "A", Company: "B", Email: "a@b.c", FreightModes: []string{"FTL"}, Message: "hello"}

	msg, err := Compose(in, "unknown", "[Orca Lead]", "f@x.io", "t@x.io")
	require.NoError(t, err)

	assert.NotContains(t, msg.Text, "Role:")
	assert.NotContains(t, msg.Text, "Phone:")
	assert.NotContains(t, msg.Text, "Approximate spend:")
	assert.NotContains(t, msg.HTML, "Role")
	assert.True(t, strings.Contains(msg.Text, "Message:\nhello"))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "[P] N (C)", Subject("[P]", "N", "C"))
	assert.Equal(t, "N (C)", Subject("", "N", "C"))
}
