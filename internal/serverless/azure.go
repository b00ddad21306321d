package serverless

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jmehdipour/lead-intake/internal/intake"
	"go.uber.org/zap"
)

// Binding names from function.json.
const (
	RequestBinding  = "req"
	ResponseBinding = "res"
)

// InvokeRequest is the Azure Functions custom handler payload.
type InvokeRequest struct {
	Data     map[string]json.RawMessage `json:"Data"`
	Metadata map[string]any             `json:"Metadata"`
}

// HTTPTrigger is the "req" binding of an HTTP-triggered function.
type HTTPTrigger struct {
	URL     string              `json:"Url"`
	Method  string              `json:"Method"`
	Query   map[string]string   `json:"Query"`
	Headers map[string][]string `json:"Headers"`
	Params  map[string]string   `json:"Params"`
	Body    json.RawMessage     `json:"Body"`
}

// HTTPOutput is the "res" output binding.
type HTTPOutput struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
}

type InvokeResponse struct {
	Outputs     map[string]any `json:"Outputs"`
	Logs        []string       `json:"Logs"`
	ReturnValue any            `json:"ReturnValue"`
}

// body returns the raw request bytes. The host sends a JSON string for text
// payloads and inlines JSON bodies as-is.
func (t HTTPTrigger) body() []byte {
	raw := []byte(strings.TrimSpace(string(t.Body)))
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return []byte(s)
		}
	}
	return raw
}

func (t HTTPTrigger) request() intake.Request {
	h := http.Header{}
	for k, vs := range t.Headers {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	return intake.Request{Method: t.Method, Header: h, Body: t.body()}
}

func output(resp intake.Response) (HTTPOutput, error) {
	out := HTTPOutput{StatusCode: resp.Status, Headers: map[string]string{}}
	for k := range resp.Header {
		out.Headers[k] = strings.Join(resp.Header.Values(k), ", ")
	}
	b, err := resp.Encode()
	if err != nil {
		return out, err
	}
	out.Body = string(b)
	return out, nil
}

// AzureHandler serves the custom handler invocation for the contact function.
func AzureHandler(svc *intake.Service, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var inv InvokeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&inv); err != nil {
			log.Warn("azure invocation decode", zap.Error(err))
			http.Error(w, "bad invocation", http.StatusBadRequest)
			return
		}

		var trig HTTPTrigger
		if raw, ok := inv.Data[RequestBinding]; ok {
			if err := json.Unmarshal(raw, &trig); err != nil {
				log.Warn("azure http trigger decode", zap.Error(err))
				http.Error(w, "bad http trigger", http.StatusBadRequest)
				return
			}
		}

		out, err := output(svc.Handle(r.Context(), trig.request()))
		if err != nil {
			log.Error("encode contact response", zap.Error(err))
			out = HTTPOutput{StatusCode: http.StatusInternalServerError}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(InvokeResponse{
			Outputs: map[string]any{ResponseBinding: out},
			Logs:    []string{},
		})
	}
}
