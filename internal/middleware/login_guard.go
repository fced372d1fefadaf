package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/BradenHooton/loginguard/internal/i18n"
	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/services"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

// GuardState is the interceptor's decision for one request
type GuardState int

const (
	GuardPassThrough GuardState = iota // route is not part of the login surface
	GuardCheck                         // route is the login surface, verdict pending
	GuardDeny                          // key is locked, request answered with 429
	GuardAdmit                         // key may attempt, request continues downstream
)

func (s GuardState) String() string {
	switch s {
	case GuardPassThrough:
		return "pass_through"
	case GuardCheck:
		return "check"
	case GuardDeny:
		return "deny"
	case GuardAdmit:
		return "admit"
	default:
		return "unknown"
	}
}

// LoginGate is the part of the rate limit service the guard needs
type LoginGate interface {
	CheckBeforeAttempt(ctx context.Context, key models.AttemptKey) models.Verdict
}

// LoginGuardConfig configures which routes are guarded and how keys are derived
type LoginGuardConfig struct {
	Paths     []string
	IPConfig  *pkghttp.IPConfig
	Localizer *i18n.Localizer
	Logger    *slog.Logger
}

// LoginGuard denies locked attempt keys before any credential check runs
type LoginGuard struct {
	gate   LoginGate
	paths  map[string]struct{}
	config LoginGuardConfig
}

// NewLoginGuard creates a guard for the configured login paths
func NewLoginGuard(gate LoginGate, config LoginGuardConfig) *LoginGuard {
	paths := make(map[string]struct{}, len(config.Paths))
	for _, p := range config.Paths {
		paths[cleanPath(p)] = struct{}{}
	}
	return &LoginGuard{gate: gate, paths: paths, config: config}
}

// Classify reports whether r targets the login surface
func (g *LoginGuard) Classify(r *http.Request) GuardState {
	if _, ok := g.paths[cleanPath(r.URL.Path)]; ok {
		return GuardCheck
	}
	return GuardPassThrough
}

// Decide evaluates a request on the login surface
func (g *LoginGuard) Decide(r *http.Request) (GuardState, models.AttemptKey, models.Verdict) {
	key := models.AttemptKey(pkghttp.ExtractClientIP(r, g.config.IPConfig))
	verdict := g.gate.CheckBeforeAttempt(r.Context(), key)
	if !verdict.Allowed() {
		return GuardDeny, key, verdict
	}
	return GuardAdmit, key, verdict
}

// Handler wraps next with the guard
func (g *LoginGuard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.Classify(r) == GuardPassThrough {
			next.ServeHTTP(w, r)
			return
		}

		state, key, verdict := g.Decide(r)
		if state == GuardDeny {
			g.config.Logger.Warn("login attempt denied",
				slog.String("attempt_key", string(key)),
				slog.String("path", r.URL.Path),
				slog.Int("remaining_seconds", verdict.RemainingSeconds()))

			message := g.config.Localizer.Text(r.Header.Get("Accept-Language"),
				i18n.RateLimited, verdict.RemainingMinutes())
			pkghttp.WriteRateLimited(w, message, verdict.RemainingSeconds())
			return
		}

		ctx := services.WithVerdict(r.Context(), verdict)
		ctx = services.WithAttemptKey(ctx, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
