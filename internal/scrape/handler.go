package scrape

import (
	"encoding/json"
	"errors"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if status == http.StatusOK {
		w.Header().Set("Cache-Control", "public, max-age=300, s-maxage=3600")
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusBadGateway, ErrFetch.Error()
	switch {
	case errors.Is(err, ErrInvalidURL):
		status, code = http.StatusBadRequest, ErrInvalidURL.Error()
	case errors.Is(err, ErrNotFound):
		status, code = http.StatusNotFound, ErrNotFound.Error()
	}
	writeJSON(w, status, map[string]any{"ok": false, "error": code})
}

// ImageHandler serves GET ?url= with {ok, imageUrl}.
func (f *Fetcher) ImageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		img, err := f.Image(r.Context(), r.URL.Query().Get("url"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "imageUrl": img})
	}
}

// ContentHandler serves GET ?url= with {ok, html, title}.
func (f *Fetcher) ContentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := f.Content(r.Context(), r.URL.Query().Get("url"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "html": a.HTML, "title": a.Title})
	}
}
