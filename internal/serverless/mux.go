package serverless

import (
	"net/http"

	"github.com/jmehdipour/lead-intake/internal/intake"
	"github.com/jmehdipour/lead-intake/internal/scrape"
)

// NewMux routes the public endpoints on a plain ServeMux. scraper may be nil.
func NewMux(svc *intake.Service, scraper *scrape.Fetcher, bodyLimit int64) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/contact", svc.Serve(bodyLimit))
	if scraper != nil {
		mux.Handle("GET /api/article-image", scraper.ImageHandler())
		mux.Handle("GET /api/article-content", scraper.ContentHandler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
