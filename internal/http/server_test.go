package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jmehdipour/lead-intake/internal/config"
	"github.com/jmehdipour/lead-intake/internal/intake"
	"github.com/jmehdipour/lead-intake/internal/mailer"
	"github.com/jmehdipour/lead-intake/internal/model"
	"github.com/jmehdipour/lead-intake/internal/ratelimit"
	"github.com/jmehdipour/lead-intake/internal/scrape"
	"github.com/jmehdipour/lead-intake/internal/turnstile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okVerifier struct{}

func (okVerifier) Verify(context.Context, string, string) turnstile.Result {
	return turnstile.Result{OK: true}
}

type okSender struct{}

func (okSender) Send(context.Context, model.EmailMessage) mailer.SendResult {
	return mailer.SendResult{OK: true, MessageID: "op"}
}

type fakeLeads struct {
	gotMode          string
	gotLimit, gotOff int
	err              error
}

func (f *fakeLeads) InsertBatch(context.Context, []model.LeadEvent) error { return nil }

func (f *fakeLeads) ListRecent(_ context.Context, mode string, limit, offset int) ([]model.LeadEvent, error) {
	f.gotMode, f.gotLimit, f.gotOff = mode, limit, offset
	if f.err != nil {
		return nil, f.err
	}
	return []model.LeadEvent{{ID: "01A", Company: "Acme", Modes: []string{"LTL"}, EmailStatus: model.EmailSent}}, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config, d Deps) http.Handler {
	t.Helper()
	if d.Intake == nil {
		d.Intake = intake.New(intake.Deps{
			Limiter:  ratelimit.NewMemory(6, 10*time.Minute),
			Verifier: okVerifier{},
			Sender:   okSender{},
			Env: intake.Env{
				ToEmail:          "sales@orca.example",
				Sender:           "noreply@orca.example",
				ConnectionString: "endpoint=https://x.communication.azure.com/;accesskey=a2V5",
			},
		})
	}
	return NewServer(cfg, d).Handler()
}

func do(h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, testConfig(t), Deps{})

	rec := do(h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestContactRoute(t *testing.T) {
	h := newTestServer(t, testConfig(t), Deps{})

	rec := do(h, http.MethodPost, "/api/contact",
		`{"name":"Jane","company":"Acme","email":"jane@acme.com","freightModes":["LTL"]}`,
		map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = do(h, http.MethodOptions, "/api/contact", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	rec = do(h, http.MethodGet, "/api/contact", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"method_not_allowed"}`, rec.Body.String())

	rec = do(h, http.MethodPost, "/api/contact", `{"name":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"validation_failed"`)
}

func TestAdminDisabledWithoutKey(t *testing.T) {
	h := newTestServer(t, testConfig(t), Deps{Leads: &fakeLeads{}})

	rec := do(h, http.MethodGet, "/v1/admin/leads", "", map[string]string{"X-Admin-Key": "anything"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminLeads(t *testing.T) {
	cfg := testConfig(t)
	cfg.Admin.APIKey = "s3cret"
	leads := &fakeLeads{}
	h := newTestServer(t, cfg, Deps{Leads: leads})

	rec := do(h, http.MethodGet, "/v1/admin/leads", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodGet, "/v1/admin/leads", "", map[string]string{"X-Admin-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(h, http.MethodGet, "/v1/admin/leads?limit=5000&offset=-2&mode=LTL", "", map[string]string{"X-Admin-Key": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Limit   int               `json:"limit"`
		Offset  int               `json:"offset"`
		Count   int               `json:"count"`
		Results []model.LeadEvent `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 50, body.Limit)
	assert.Equal(t, 0, body.Offset)
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "Acme", body.Results[0].Company)
	assert.Equal(t, "LTL", leads.gotMode)
	assert.Equal(t, 50, leads.gotLimit)

	leads.err = errors.New("clickhouse down")
	rec = do(h, http.MethodGet, "/v1/admin/leads", "", map[string]string{"X-Admin-Key": "s3cret"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestScrapeRoutes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<meta property="og:image" content="https://cdn.example/a.png">`))
	}))
	defer upstream.Close()

	h := newTestServer(t, testConfig(t), Deps{
		Scraper:       scrape.NewFetcher(time.Second, 0, "", scrape.AllowPrivateNetworks()),
		ScrapeLimiter: ratelimit.NewMemory(2, time.Minute),
	})
	target := "/api/article-image?url=" + upstream.URL

	rec := do(h, http.MethodGet, target, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"imageUrl":"https://cdn.example/a.png"}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/api/article-content?url=nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, target, "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"ok":false,"error":"rate_limited"}`, rec.Body.String())
}
