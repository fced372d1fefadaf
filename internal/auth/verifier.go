package auth

import (
	"context"
	"errors"
)

// Verifier outcomes. Anything that is not one of the first two is reported
// wrapped in ErrVerifierUnavailable.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailNotConfirmed   = errors.New("email not confirmed")
	ErrVerifierUnavailable = errors.New("credential verifier unavailable")
)

// Identity is the authenticated principal returned by a verifier
type Identity struct {
	UserID string
	Email  string
}

// CredentialVerifier checks an email/password pair
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*Identity, error)
}

type captchaTokenKey struct{}

// WithCaptchaToken attaches the caller's CAPTCHA token so verifiers backed by
// an identity provider can forward it
func WithCaptchaToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, captchaTokenKey{}, token)
}

// CaptchaTokenFromContext returns the token set by WithCaptchaToken, or ""
func CaptchaTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(captchaTokenKey{}).(string)
	return token
}
