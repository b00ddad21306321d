package mailer

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmehdipour/lead-intake/internal/model"
)

// Terminal operation statuses reported by the email service.
const (
	StatusSucceeded = "Succeeded"
	StatusFailed    = "Failed"
	StatusCanceled  = "Canceled"
)

var ErrBadConnectionString = errors.New("acs: malformed connection string")

// Operation is the final state of one send.
type Operation struct {
	ID     string
	Status string
	Error  string
}

// Provider delivers one composed message and waits for a terminal status.
type Provider interface {
	Send(ctx context.Context, msg model.EmailMessage) (Operation, error)
}

type ACSOptions struct {
	APIVersion   string
	Timeout      time.Duration // whole send including polling
	PollInterval time.Duration
}

// ACSClient talks to the Azure Communication Services email REST API.
type ACSClient struct {
	endpoint   *url.URL
	key        []byte
	apiVersion string
	timeout    time.Duration
	poll       time.Duration
	client     *http.Client
	now        func() time.Time
}

// ParseConnectionString splits "endpoint=https://...;accesskey=<base64>".
func ParseConnectionString(conn string) (*url.URL, []byte, error) {
	var endpoint, key string
	for _, part := range strings.Split(conn, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.ToLower(k) {
		case "endpoint":
			endpoint = v
		case "accesskey":
			key = v
		}
	}
	if endpoint == "" || key == "" {
		return nil, nil, ErrBadConnectionString
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return nil, nil, fmt.Errorf("%w: endpoint %q", ErrBadConnectionString, endpoint)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: access key: %v", ErrBadConnectionString, err)
	}
	return u, raw, nil
}

func NewACSClient(conn string, opts ACSOptions) (*ACSClient, error) {
	endpoint, key, err := ParseConnectionString(conn)
	if err != nil {
		return nil, err
	}
	if opts.APIVersion == "" {
		opts.APIVersion = "2023-03-31"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}

	return &ACSClient{
		endpoint:   endpoint,
		key:        key,
		apiVersion: opts.APIVersion,
		timeout:    opts.Timeout,
		poll:       opts.PollInterval,
		client:     &http.Client{Timeout: opts.Timeout},
		now:        time.Now,
	}, nil
}

type acsAddress struct {
	Address string `json:"address"`
}

type acsSendRequest struct {
	SenderAddress string `json:"senderAddress"`
	Content       struct {
		Subject   string `json:"subject"`
		PlainText string `json:"plainText"`
		HTML      string `json:"html"`
	} `json:"content"`
	Recipients struct {
		To []acsAddress `json:"to"`
	} `json:"recipients"`
	ReplyTo []acsAddress `json:"replyTo,omitempty"`
}

type acsOperation struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (o acsOperation) operation() Operation {
	op := Operation{ID: o.ID, Status: o.Status}
	if o.Error != nil {
		op.Error = strings.TrimSpace(o.Error.Code + ": " + o.Error.Message)
	}
	return op
}

func terminal(status string) bool {
	return status == StatusSucceeded || status == StatusFailed || status == StatusCanceled
}

// Send posts the message and polls the operation until it is terminal or the timeout expires.
func (c *ACSClient) Send(ctx context.Context, msg model.EmailMessage) (Operation, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body acsSendRequest
	body.SenderAddress = msg.From
	body.Content.Subject = msg.Subject
	body.Content.PlainText = msg.Text
	body.Content.HTML = msg.HTML
	body.Recipients.To = []acsAddress{{Address: msg.To}}
	if msg.ReplyTo != "" {
		body.ReplyTo = []acsAddress{{Address: msg.ReplyTo}}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Operation{}, fmt.Errorf("marshal send request: %w", err)
	}

	sendURL := *c.endpoint
	sendURL.Path += "/emails:send"
	sendURL.RawQuery = url.Values{"api-version": {c.apiVersion}}.Encode()

	res, err := c.do(ctx, http.MethodPost, &sendURL, payload)
	if err != nil {
		return Operation{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusAccepted && res.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Operation{}, fmt.Errorf("acs send status=%d body=%s", res.StatusCode, strings.TrimSpace(string(b)))
	}

	var op acsOperation
	if err := json.NewDecoder(io.LimitReader(res.Body, 64<<10)).Decode(&op); err != nil {
		return Operation{}, fmt.Errorf("decode send response: %w", err)
	}
	if terminal(op.Status) {
		return op.operation(), nil
	}

	loc := res.Header.Get("Operation-Location")
	if loc == "" {
		return Operation{}, fmt.Errorf("acs send: no Operation-Location for operation %q", op.ID)
	}
	pollURL, err := url.Parse(loc)
	if err != nil {
		return Operation{}, fmt.Errorf("acs send: bad Operation-Location: %w", err)
	}

	return c.wait(ctx, pollURL, op, retryAfter(res.Header, c.poll))
}

func (c *ACSClient) wait(ctx context.Context, pollURL *url.URL, last acsOperation, delay time.Duration) (Operation, error) {
	for {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return last.operation(), fmt.Errorf("acs poll operation %q (last status %q): %w", last.ID, last.Status, ctx.Err())
		case <-t.C:
		}

		res, err := c.do(ctx, http.MethodGet, pollURL, nil)
		if err != nil {
			return last.operation(), err
		}

		var op acsOperation
		decErr := json.NewDecoder(io.LimitReader(res.Body, 64<<10)).Decode(&op)
		status := res.StatusCode
		delay = retryAfter(res.Header, c.poll)
		res.Body.Close()

		if status/100 != 2 {
			return last.operation(), fmt.Errorf("acs poll status=%d", status)
		}
		if decErr != nil {
			return last.operation(), fmt.Errorf("decode poll response: %w", decErr)
		}
		if terminal(op.Status) {
			return op.operation(), nil
		}
		last = op
	}
}

func retryAfter(h http.Header, fallback time.Duration) time.Duration {
	if s, err := strconv.Atoi(h.Get("Retry-After")); err == nil && s > 0 {
		return min(time.Duration(s)*time.Second, fallback)
	}
	return fallback
}

func (c *ACSClient) do(ctx context.Context, method string, u *url.URL, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.sign(req, u, body)

	return c.client.Do(req)
}

// sign applies the HMAC-SHA256 scheme used by Communication Services.
func (c *ACSClient) sign(req *http.Request, u *url.URL, body []byte) {
	date := c.now().UTC().Format(http.TimeFormat)
	sum := sha256.Sum256(body)
	contentHash := base64.StdEncoding.EncodeToString(sum[:])

	pathAndQuery := u.EscapedPath()
	if u.RawQuery != "" {
		pathAndQuery += "?" + u.RawQuery
	}
	toSign := req.Method + "\n" + pathAndQuery + "\n" + date + ";" + u.Host + ";" + contentHash

	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(toSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("x-ms-date", date)
	req.Header.Set("x-ms-content-sha256", contentHash)
	req.Header.Set("Authorization", "HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature="+signature)
}

// unavailable stands in when the connection string cannot be parsed, so the
// failure surfaces per request instead of at startup.
type unavailable struct{ err error }

func (u unavailable) Send(context.Context, model.EmailMessage) (Operation, error) {
	return Operation{}, u.err
}

// NewProvider builds an ACS client, or a provider that always fails with the parse error.
func NewProvider(conn string, opts ACSOptions) Provider {
	c, err := NewACSClient(conn, opts)
	if err != nil {
		return unavailable{err: err}
	}
	return c
}
