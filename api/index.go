package handler

import (
	"net/http"

	"github.com/jmehdipour/lead-intake/internal/serverless"
)

// Handler is the Vercel function entry; vercel.json routes /api/* here.
func Handler(w http.ResponseWriter, r *http.Request) {
	serverless.Handler(w, r)
}
