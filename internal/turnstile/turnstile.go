package turnstile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

	ErrMissingToken = "missing_turnstile_token"
	ErrFailed       = "turnstile_failed"
	ErrTransport    = "turnstile_error"
)

// Result is the outcome of a verification. Enabled is false when no secret
// is configured, in which case OK is always true.
type Result struct {
	Enabled bool
	OK      bool
	Error   string
}

// siteverifyResponse is the provider reply.
type siteverifyResponse struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
	Action      string   `json:"action"`
}

type Verifier struct {
	secret    string
	verifyURL string
	client    *http.Client
	log       *zap.Logger
}

func NewVerifier(secret, verifyURL string, timeout time.Duration, log *zap.Logger) *Verifier {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{
		secret:    strings.TrimSpace(secret),
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: timeout},
		log:       log,
	}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool { return v.secret != "" }

// Verify checks token against the siteverify endpoint. It never retries.
func (v *Verifier) Verify(ctx context.Context, token, ip string) Result {
	if !v.Enabled() {
		return Result{Enabled: false, OK: true}
	}
	if strings.TrimSpace(token) == "" {
		return Result{Enabled: true, OK: false, Error: ErrMissingToken}
	}

	resp, err := v.post(ctx, token, ip)
	if err != nil {
		v.log.Warn("turnstile verify failed", zap.Error(err))
		return Result{Enabled: true, OK: false, Error: ErrTransport}
	}
	if !resp.Success {
		v.log.Info("turnstile rejected token",
			zap.Strings("error_codes", resp.ErrorCodes),
			zap.String("hostname", resp.Hostname),
		)
		return Result{Enabled: true, OK: false, Error: ErrFailed}
	}

	return Result{Enabled: true, OK: true}
}

func (v *Verifier) post(ctx context.Context, token, ip string) (siteverifyResponse, error) {
	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if ip != "" && ip != "unknown" {
		form.Set("remoteip", ip)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return siteverifyResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := v.client.Do(req)
	if err != nil {
		return siteverifyResponse{}, err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return siteverifyResponse{}, fmt.Errorf("siteverify status=%d", res.StatusCode)
	}

	var out siteverifyResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 64<<10)).Decode(&out); err != nil {
		return siteverifyResponse{}, fmt.Errorf("decode siteverify: %w", err)
	}
	return out, nil
}
