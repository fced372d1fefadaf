package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"

	pkghttp "github.com/BradenHooton/loginguard/pkg/http"
)

// Recoverer turns handler panics into a 500, a log line and a Sentry event
func Recoverer(logger *slog.Logger, hub *sentry.Hub) func(http.Handler) http.Handler {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				hub.WithScope(func(scope *sentry.Scope) {
					scope.SetTag("path", r.URL.Path)
					scope.SetExtra("stack", string(debug.Stack()))
					hub.CaptureException(fmt.Errorf("panic in request: %v", rec))
				})

				logger.Error("panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec))

				pkghttp.WriteInternalError(w, "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
