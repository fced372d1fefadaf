package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry configures the global hub. An empty DSN leaves Sentry disabled.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// SentryReporter forwards limiter degradations to Sentry
type SentryReporter struct {
	hub       *sentry.Hub
	component string
}

// NewSentryReporter tags every event with component. A nil hub uses the global one.
func NewSentryReporter(hub *sentry.Hub, component string) *SentryReporter {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &SentryReporter{hub: hub, component: component}
}

func (r *SentryReporter) CaptureException(err error) {
	if err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", r.component)
		r.hub.CaptureException(err)
	})
}
