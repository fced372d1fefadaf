package logger

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	AttemptKey    string
	Email         string // logged masked
	UserID        string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogAuthAttempt logs login attempts as seen by the login surface
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "auth"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.AttemptKey != "" {
		attrs = append(attrs, slog.String("attempt_key", event.AttemptKey))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogLockout logs the transition of a key into the locked state
func (al *AuditLogger) LogLockout(attemptKey string, failedAttempts int, lockedUntil time.Time) {
	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit",
		slog.String("audit_type", "rate_limit"),
		slog.String("event_type", "lockout_started"),
		slog.String("attempt_key", attemptKey),
		slog.String("failed_attempts", strconv.Itoa(failedAttempts)),
		slog.String("locked_until", lockedUntil.UTC().Format(time.RFC3339)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}

// LogLimiterDegraded logs a store failure the limiter absorbed.
// These entries are the explicit trail of any fail-open window.
func (al *AuditLogger) LogLimiterDegraded(operation, attemptKey string, err error) {
	attrs := []slog.Attr{
		slog.String("audit_type", "rate_limit"),
		slog.String("event_type", "limiter_degraded"),
		slog.String("operation", operation),
		slog.String("attempt_key", attemptKey),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	al.logger.LogAttrs(context.Background(), slog.LevelError, "audit", attrs...)
}
