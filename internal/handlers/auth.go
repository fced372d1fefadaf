package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/loginguard/internal/auth"
	"github.com/BradenHooton/loginguard/internal/i18n"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
)

// LoginGate is the rate limit surface the login handler drives
type LoginGate interface {
	CheckBeforeAttempt(ctx context.Context, key models.AttemptKey) models.Verdict
	RecordFailure(ctx context.Context, key models.AttemptKey) models.Verdict
	RecordSuccess(ctx context.Context, key models.AttemptKey)
}

// SessionStarter establishes a session for an authenticated identity
type SessionStarter interface {
	Issue(w http.ResponseWriter, identity *auth.Identity) (*auth.Session, error)
}

// AuthHandlerDeps bundles the collaborators of AuthHandler
type AuthHandlerDeps struct {
	Gate      LoginGate
	Verifier  auth.CredentialVerifier
	Sessions  SessionStarter
	Captcha   CaptchaChecker
	Localizer *i18n.Localizer
	IPConfig  *pkghttp.IPConfig
	Audit     *pkglogger.AuditLogger
	Logger    *slog.Logger
	Delay     *auth.FailureDelay
}

// AuthHandler handles login submissions
type AuthHandler struct {
	deps AuthHandlerDeps
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(deps AuthHandlerDeps) *AuthHandler {
	if deps.Captcha == nil {
		deps.Captcha = PresenceChecker{}
	}
	return &AuthHandler{deps: deps}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,max=1024"`
	CaptchaToken string `json:"captcha_token" validate:"max=4096"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	Success   bool      `json:"success"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginErrorResponse extends the standard error body with limiter hints
type LoginErrorResponse struct {
	Error           string `json:"error"`
	Message         string `json:"message"`
	CaptchaRequired bool   `json:"captcha_required,omitempty"`
	Attempts        int    `json:"attempts,omitempty"`
}

// Login handles a credential submission
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	lang := r.Header.Get("Accept-Language")

	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, h.text(lang, i18n.InvalidRequest))
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "bad_request", h.text(lang, i18n.InvalidRequest), err.Error())
		return
	}

	ctx := r.Context()
	key := h.attemptKey(r)

	verdict, ok := services.VerdictFromContext(ctx)
	if !ok {
		verdict = h.deps.Gate.CheckBeforeAttempt(ctx, key)
	}
	if !verdict.Allowed() {
		pkghttp.WriteRateLimited(w, h.text(lang, i18n.RateLimited, verdict.RemainingMinutes()), verdict.RemainingSeconds())
		return
	}

	start := time.Now()

	if verdict.CaptchaRequired {
		if strings.TrimSpace(req.CaptchaToken) == "" {
			pkghttp.WriteJSON(w, http.StatusBadRequest, LoginErrorResponse{
				Error:           "captcha_required",
				Message:         h.text(lang, i18n.CaptchaRequired),
				CaptchaRequired: true,
				Attempts:        verdict.Attempts,
			})
			return
		}

		passed, err := h.deps.Captcha.Check(ctx, req.CaptchaToken, key)
		if err != nil {
			h.deps.Logger.Error("captcha check failed", slog.Any("error", err))
			pkghttp.WriteServiceUnavailable(w, "verifier_unavailable", h.text(lang, i18n.VerifierUnavailable))
			return
		}
		if !passed {
			h.fail(w, r, key, req.Email, "captcha_invalid", start)
			return
		}
	}

	if req.CaptchaToken != "" {
		ctx = auth.WithCaptchaToken(ctx, req.CaptchaToken)
	}
	identity, err := h.deps.Verifier.Verify(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailNotConfirmed):
			h.fail(w, r, key, req.Email, "email_not_confirmed", start)
		case errors.Is(err, auth.ErrInvalidCredentials):
			h.fail(w, r, key, req.Email, "invalid_credentials", start)
		default:
			// An unreachable verifier says nothing about the credentials, so nothing is counted
			h.deps.Logger.Error("credential verifier unavailable",
				slog.String("attempt_key", string(key)),
				slog.Any("error", err))
			pkghttp.WriteServiceUnavailable(w, "verifier_unavailable", h.text(lang, i18n.VerifierUnavailable))
		}
		return
	}

	h.deps.Gate.RecordSuccess(ctx, key)

	session, err := h.deps.Sessions.Issue(w, identity)
	if err != nil {
		h.deps.Logger.Error("failed to issue session", slog.Any("error", err))
		pkghttp.WriteInternalError(w, h.text(lang, i18n.InternalError))
		return
	}

	h.audit(pkglogger.AuditEvent{
		EventType:  "login",
		AttemptKey: string(key),
		Email:      req.Email,
		UserID:     identity.UserID,
		UserAgent:  r.UserAgent(),
		Success:    true,
	})

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		Success:   true,
		UserID:    identity.UserID,
		ExpiresAt: session.ExpiresAt,
	})
}

// fail counts a failed attempt and renders the outcome. The failure that
// reaches the lock threshold answers with the lockout itself.
func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, key models.AttemptKey, email, reason string, start time.Time) {
	lang := r.Header.Get("Accept-Language")
	verdict := h.deps.Gate.RecordFailure(r.Context(), key)

	h.audit(pkglogger.AuditEvent{
		EventType:     "login",
		AttemptKey:    string(key),
		Email:         email,
		UserAgent:     r.UserAgent(),
		FailureReason: reason,
	})

	h.deps.Delay.Pad(start)

	if verdict.Locked {
		pkghttp.WriteRateLimited(w, h.text(lang, i18n.LockoutStarted, verdict.RemainingMinutes()), verdict.RemainingSeconds())
		return
	}

	status := http.StatusUnauthorized
	messageKey := i18n.InvalidCredentials
	switch reason {
	case "email_not_confirmed":
		messageKey = i18n.EmailNotConfirmed
	case "captcha_invalid":
		status = http.StatusBadRequest
		messageKey = i18n.CaptchaInvalid
	}

	pkghttp.WriteJSON(w, status, LoginErrorResponse{
		Error:           reason,
		Message:         h.text(lang, messageKey),
		CaptchaRequired: verdict.CaptchaRequired,
		Attempts:        verdict.Attempts,
	})
}

func (h *AuthHandler) attemptKey(r *http.Request) models.AttemptKey {
	if key, ok := services.AttemptKeyFromContext(r.Context()); ok {
		return key
	}
	return models.AttemptKey(pkghttp.ExtractClientIP(r, h.deps.IPConfig))
}

func (h *AuthHandler) text(lang, key string, args ...any) string {
	return h.deps.Localizer.Text(lang, key, args...)
}

func (h *AuthHandler) audit(event pkglogger.AuditEvent) {
	if h.deps.Audit != nil {
		h.deps.Audit.LogAuthAttempt(event)
	}
}
