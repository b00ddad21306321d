package intake

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// DefaultBodyLimit caps the bytes read from an inquiry body.
const DefaultBodyLimit = 64 << 10

// FromHTTP reads r into a Request. Bodies over limit are cut, which then
// fails JSON parsing as invalid_json.
func FromHTTP(r *http.Request, limit int64) (Request, error) {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	req := Request{Method: r.Method, Header: r.Header, RemoteAddr: r.RemoteAddr}
	if r.Body == nil {
		return req, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit))
	if err != nil {
		return req, fmt.Errorf("read body: %w", err)
	}
	req.Body = body
	return req, nil
}

// Encode renders the response body. Nil bodies encode to nil.
func (r Response) Encode() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	return json.Marshal(r.Body)
}

// WriteHTTP writes resp to w.
func WriteHTTP(w http.ResponseWriter, resp Response) error {
	b, err := resp.Encode()
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.Status)
	if len(b) == 0 {
		return nil
	}
	_, err = w.Write(b)
	return err
}

// Serve adapts the service to a plain net/http handler.
func (s *Service) Serve(limit int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := FromHTTP(r, limit)
		if err != nil {
			s.log.Warn("read contact body", zap.Error(err))
		}
		if err := WriteHTTP(w, s.Handle(r.Context(), req)); err != nil {
			s.log.Warn("write contact response", zap.Error(err))
		}
	}
}
