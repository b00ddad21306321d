package intake

import (
	"net/http"
	"strconv"
	"time"
)

// Error codes returned under "error".
const (
	CodeMethodNotAllowed = "method_not_allowed"
	CodeRateLimited      = "rate_limited"
	CodeInvalidJSON      = "invalid_json"
	CodeValidationFailed = "validation_failed"
	CodeMissingEnv       = "missing_env"
	CodeInternal         = "internal_error"
)

// Request is the host-independent view of an incoming call.
type Request struct {
	Method     string
	Header     http.Header
	Body       []byte
	RemoteAddr string
}

// Response is written back by the host adapter. A nil Body means no body.
type Response struct {
	Status int
	Header http.Header
	Body   any
}

func baseHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("Access-Control-Allow-Origin", "*")
	return h
}

func jsonResponse(status int, body map[string]any) Response {
	return Response{Status: status, Header: baseHeader(), Body: body}
}

func okResponse(status int) Response {
	return jsonResponse(status, map[string]any{"ok": true})
}

func failure(status int, code string, extra ...any) Response {
	body := map[string]any{"ok": false, "error": code}
	for i := 0; i+1 < len(extra); i += 2 {
		if k, isKey := extra[i].(string); isKey {
			body[k] = extra[i+1]
		}
	}
	return jsonResponse(status, body)
}

func preflight() Response {
	h := http.Header{}
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "content-type")
	h.Set("Access-Control-Max-Age", "86400")
	return Response{Status: http.StatusNoContent, Header: h}
}

func methodNotAllowed() Response {
	r := failure(http.StatusMethodNotAllowed, CodeMethodNotAllowed)
	r.Header.Set("Allow", "POST, OPTIONS")
	return r
}

func rateLimited(resetAt, now time.Time) Response {
	r := failure(http.StatusTooManyRequests, CodeRateLimited, "resetAt", resetAt.UTC().Format(time.RFC3339))
	secs := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	r.Header.Set("Retry-After", strconv.Itoa(secs))
	return r
}
