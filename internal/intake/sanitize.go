package intake

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jmehdipour/lead-intake/internal/model"
)

const (
	MaxMessageLength = 5000
	MaxMessageLinks  = 3
)

// Field codes reported under "fields" on validation failure.
const (
	FieldName           = "name"
	FieldCompany        = "company"
	FieldEmail          = "email"
	FieldFreightModes   = "freightModes"
	FieldMessageTooLong = "message_too_long"
	FieldTooManyLinks   = "too_many_links"
)

var (
	emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)
	linkPattern  = regexp.MustCompile(`(?i)https?://`)
)

// Sanitize removes U+0000..U+001F and U+007F and trims surrounding whitespace.
func Sanitize(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s))
}

// text converts a decoded JSON scalar to a string; objects and arrays become "".
func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func field(raw map[string]any, key string) string {
	return Sanitize(text(raw[key]))
}

// NormalizeFreightModes accepts a JSON array or a comma separated string.
func NormalizeFreightModes(v any) []string {
	var items []string
	switch t := v.(type) {
	case []any:
		for _, it := range t {
			items = append(items, text(it))
		}
	case string:
		items = strings.Split(t, ",")
	default:
		return nil
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := Sanitize(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Honeypot reports whether a hidden field was filled in.
func Honeypot(raw map[string]any) bool {
	return field(raw, "website") != "" || field(raw, "hp") != ""
}

// Validate sanitizes the payload and collects every failing field.
func Validate(raw map[string]any) (model.Inquiry, []string) {
	in := model.Inquiry{
		Name:             field(raw, "name"),
		Company:          field(raw, "company"),
		Email:            field(raw, "email"),
		Role:             field(raw, "role"),
		Phone:            field(raw, "phone"),
		FreightModes:     NormalizeFreightModes(raw["freightModes"]),
		ApproximateSpend: field(raw, "approximateSpend"),
		Message:          field(raw, "message"),
		TurnstileToken:   field(raw, "turnstileToken"),
	}

	var fields []string
	if in.Name == "" {
		fields = append(fields, FieldName)
	}
	if in.Company == "" {
		fields = append(fields, FieldCompany)
	}
	if in.Email == "" || !emailPattern.MatchString(in.Email) {
		fields = append(fields, FieldEmail)
	}
	if len(in.FreightModes) == 0 {
		fields = append(fields, FieldFreightModes)
	}
	if utf8.RuneCountInString(in.Message) > MaxMessageLength {
		fields = append(fields, FieldMessageTooLong)
	}
	if len(linkPattern.FindAllStringIndex(in.Message, MaxMessageLinks+1)) > MaxMessageLinks {
		fields = append(fields, FieldTooManyLinks)
	}

	return in, fields
}
