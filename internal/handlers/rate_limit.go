package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/BradenHooton/loginguard/internal/i18n"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

// StatusReader reports a key's limiter state
type StatusReader interface {
	CheckBeforeAttempt(ctx context.Context, key models.AttemptKey) models.Verdict
}

// RateLimitHandler exposes the limiter state so login pages can render
// lockout and CAPTCHA UI before the user submits
type RateLimitHandler struct {
	gate      StatusReader
	localizer *i18n.Localizer
	ipConfig  *pkghttp.IPConfig
}

// NewRateLimitHandler creates a new RateLimitHandler
func NewRateLimitHandler(gate StatusReader, localizer *i18n.Localizer, ipConfig *pkghttp.IPConfig) *RateLimitHandler {
	return &RateLimitHandler{gate: gate, localizer: localizer, ipConfig: ipConfig}
}

// lockedStatusResponse is the 429 body of the status check
type lockedStatusResponse struct {
	pkghttp.RateLimitResponse
	Attempts int `json:"attempts"`
}

// Check reports the caller's limiter state. It never mutates it.
func (h *RateLimitHandler) Check(w http.ResponseWriter, r *http.Request) {
	verdict, ok := services.VerdictFromContext(r.Context())
	if !ok {
		key := models.AttemptKey(pkghttp.ExtractClientIP(r, h.ipConfig))
		verdict = h.gate.CheckBeforeAttempt(r.Context(), key)
	}

	if verdict.Locked {
		message := h.localizer.Text(r.Header.Get("Accept-Language"), i18n.RateLimited, verdict.RemainingMinutes())
		w.Header().Set("Retry-After", strconv.Itoa(verdict.RemainingSeconds()))
		pkghttp.WriteJSON(w, http.StatusTooManyRequests, lockedStatusResponse{
			RateLimitResponse: pkghttp.RateLimitResponse{
				Error:            "rate_limit_exceeded",
				Message:          message,
				RemainingSeconds: verdict.RemainingSeconds(),
				Locked:           true,
			},
			Attempts: verdict.Attempts,
		})
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, verdict.Status())
}
