package mailer

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmehdipour/lead-intake/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("super-secret-key")

func connString(endpoint string) string {
	return "endpoint=" + endpoint + "/;accesskey=" + base64.StdEncoding.EncodeToString(testKey)
}

func checkSignature(t *testing.T, r *http.Request, body []byte) {
	t.Helper()

	sum := sha256.Sum256(body)
	hash := base64.StdEncoding.EncodeToString(sum[:])
	assert.Equal(t, hash, r.Header.Get("x-ms-content-sha256"))

	toSign := r.Method + "\n" + r.URL.RequestURI() + "\n" + r.Header.Get("x-ms-date") + ";" + r.Host + ";" + hash
	mac := hmac.New(sha256.New, testKey)
	mac.Write([]byte(toSign))
	want := "HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature=" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, r.Header.Get("Authorization"))
}

func TestParseConnectionString(t *testing.T) {
	u, key, err := ParseConnectionString("endpoint=https://orca.communication.azure.com/;accesskey=" + base64.StdEncoding.EncodeToString(testKey))
	require.NoError(t, err)
	assert.Equal(t, "orca.communication.azure.com", u.Host)
	assert.Equal(t, "", u.Path)
	assert.Equal(t, testKey, key)

	for _, bad := range []string{"", "endpoint=https://x", "accesskey=abc", "endpoint=https://x;accesskey=!!!"} {
		_, _, err := ParseConnectionString(bad)
		assert.ErrorIs(t, err, ErrBadConnectionString, bad)
	}
}

func TestACSSendPollsUntilSucceeded(t *testing.T) {
	var polls atomic.Int32
	var srvURL string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		checkSignature(t, r, body)

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/emails:send":
			assert.Equal(t, "2023-03-31", r.URL.Query().Get("api-version"))

			var req acsSendRequest
			assert.NoError(t, json.Unmarshal(body, &req))
			assert.Equal(t, "noreply@example.com", req.SenderAddress)
			assert.Equal(t, "sales@example.com", req.Recipients.To[0].Address)
			assert.Equal(t, "Subject", req.Content.Subject)
			assert.Equal(t, "jane@example.com", req.ReplyTo[0].Address)

			w.Header().Set("Operation-Location", srvURL+"/emails/operations/op-1?api-version=2023-03-31")
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"id":"op-1","status":"Running"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/emails/operations/op-1":
			if polls.Add(1) < 2 {
				_, _ = w.Write([]byte(`{"id":"op-1","status":"Running"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"op-1","status":"Succeeded"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	c, err := NewACSClient(connString(srv.URL), ACSOptions{Timeout: 2 * time.Second, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	op, err := c.Send(context.Background(), model.EmailMessage{
		From: "noreply@example.com", To: "sales@example.com", ReplyTo: "jane@example.com",
		Subject: "Subject", Text: "t", HTML: "<p>h</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, Operation{ID: "op-1", Status: StatusSucceeded}, op)
	assert.Equal(t, int32(2), polls.Load())
}

func TestACSSendTerminalFailure(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Operation-Location", srvURL+"/emails/operations/op-9")
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"id":"op-9","status":"NotStarted"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"op-9","status":"Failed","error":{"code":"InvalidRecipient","message":"bad address"}}`))
	}))
	defer srv.Close()
	srvURL = srv.URL

	c, err := NewACSClient(connString(srv.URL), ACSOptions{PollInterval: 5 * time.Millisecond})
	require.NoError(t, err)

	op, err := c.Send(context.Background(), model.EmailMessage{To: "x@y.z"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, op.Status)
	assert.Equal(t, "InvalidRecipient: bad address", op.Error)
}

func TestACSSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"Denied"}}`))
	}))
	defer srv.Close()

	c, err := NewACSClient(connString(srv.URL), ACSOptions{})
	require.NoError(t, err)

	_, err = c.Send(context.Background(), model.EmailMessage{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=401")
}

func TestACSSendTimesOutWhilePolling(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Operation-Location", srvURL+"/emails/operations/slow")
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"id":"slow","status":"Running"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"slow","status":"Running"}`))
	}))
	defer srv.Close()
	srvURL = srv.URL

	c, err := NewACSClient(connString(srv.URL), ACSOptions{Timeout: 80 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	op, err := c.Send(context.Background(), model.EmailMessage{})
	require.Error(t, err)
	assert.Equal(t, "slow", op.ID)
}

func TestNewProviderWithBadConnectionString(t *testing.T) {
	p := NewProvider("nonsense", ACSOptions{})

	_, err := p.Send(context.Background(), model.EmailMessage{})
	assert.ErrorIs(t, err, ErrBadConnectionString)
}
