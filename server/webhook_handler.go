package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

const (
	webhookSecretHeader   = "X-Webhook-Secret"
	eventAppUninstalled   = "app.uninstalled"
	maxWebhookBodyBytes   = 64 << 10
	uninstallAcknowledged = "Uninstall notification received"
)

type uninstallEvent struct {
	Event          string `json:"event"`
	AppID          string `json:"appId"`
	UserID         string `json:"userId"`
	InstallationID string `json:"installationId"`
}

type webhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// UninstallWebhookHandler marks the user's session revoked when the platform
// uninstalls the app. Repeated deliveries are harmless.
func (s *Server) UninstallWebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := zerolog.Ctx(r.Context())

		if secret := s.config.GetWebhookSecret(); secret != "" {
			got := r.Header.Get(webhookSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				logger.Warn().Msg("webhook rejected: bad shared secret")
				writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
				return
			}
		}

		var ev uninstallEvent
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)).Decode(&ev); err != nil {
			logger.Warn().Err(err).Msg("malformed webhook body")
			writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Invalid request"})
			return
		}
		if ev.Event != eventAppUninstalled || ev.AppID != s.config.GetAppID() || ev.UserID == "" {
			logger.Warn().Str("event", ev.Event).Str("app_id", ev.AppID).Msg("webhook ignored")
			writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "Invalid event"})
			return
		}

		if err := s.store.Revoke(r.Context(), ev.UserID); err != nil {
			logRequestError(r, err, "failed to record revocation")
			writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "Failed to process webhook"})
			return
		}
		s.stopRealtime(ev.UserID)
		s.metrics.Revoked("webhook")
		logger.Info().
			Str("user", ev.UserID).
			Str("installation_id", ev.InstallationID).
			Msg("app uninstalled, session marked revoked")

		writeJSON(w, r, http.StatusOK, webhookResponse{Success: true, Message: uninstallAcknowledged})
	}
}
