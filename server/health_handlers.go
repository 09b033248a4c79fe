package server

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// HealthHandler reports liveness and whether the revocation store answers.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := s.store.Ping(ctx); err != nil {
			logRequestError(r, err, "revocation store ping failed")
			writeJSON(w, r, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Store: "unreachable"})
			return
		}
		writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok", Store: "ok"})
	}
}
