package handler

import (
	"net/http"
	"time"

	"github.com/murat7074/elisishop/infra/response"
)

var startTime = time.Now()

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, "OK", map[string]any{
		"status": "healthy",
		"uptime": time.Since(startTime).String(),
	})
}
