package middleware

import (
	"net/http"
	"time"

	"github.com/BradenHooton/loginguard/internal/i18n"
	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds request flood limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
	Localizer         *i18n.Localizer
	Paths             []string // empty limits every path
}

// RateLimitByIP caps raw request volume per client address on Paths. Mounted
// ahead of the login guard it counts every request, denied ones included.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	limit := httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			message := "Too many requests"
			if config.Localizer != nil {
				message = config.Localizer.Text(r.Header.Get("Accept-Language"), i18n.RateLimited, 1)
			}
			pkghttp.WriteTooManyRequests(w, message)
		}),
	)

	if len(config.Paths) == 0 {
		return limit
	}

	paths := make(map[string]struct{}, len(config.Paths))
	for _, p := range config.Paths {
		paths[cleanPath(p)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := paths[cleanPath(r.URL.Path)]; ok {
				limited.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
