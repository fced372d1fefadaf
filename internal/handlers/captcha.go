package handlers

import (
	"context"
	"strings"

	"github.com/BradenHooton/loginguard/internal/models"
)

// CaptchaChecker validates a CAPTCHA token submitted with a login attempt
type CaptchaChecker interface {
	Check(ctx context.Context, token string, key models.AttemptKey) (bool, error)
}

// PresenceChecker accepts any non-blank token. Vendor-side validation plugs in
// behind CaptchaChecker.
type PresenceChecker struct{}

func (PresenceChecker) Check(ctx context.Context, token string, key models.AttemptKey) (bool, error) {
	return strings.TrimSpace(token) != "", nil
}
