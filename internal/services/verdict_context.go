package services

import (
	"context"

	"github.com/BradenHooton/loginguard/internal/models"
)

type verdictContextKey struct{}

// WithVerdict stores the pre-attempt verdict so handlers downstream of the
// login guard do not consult the store a second time
func WithVerdict(ctx context.Context, v models.Verdict) context.Context {
	return context.WithValue(ctx, verdictContextKey{}, v)
}

// VerdictFromContext returns the verdict placed by WithVerdict, if any
func VerdictFromContext(ctx context.Context) (models.Verdict, bool) {
	v, ok := ctx.Value(verdictContextKey{}).(models.Verdict)
	return v, ok
}

type attemptKeyContextKey struct{}

// WithAttemptKey stores the key the guard derived for this request
func WithAttemptKey(ctx context.Context, key models.AttemptKey) context.Context {
	return context.WithValue(ctx, attemptKeyContextKey{}, key)
}

// AttemptKeyFromContext returns the key placed by WithAttemptKey, if any
func AttemptKeyFromContext(ctx context.Context) (models.AttemptKey, bool) {
	key, ok := ctx.Value(attemptKeyContextKey{}).(models.AttemptKey)
	return key, ok
}
