package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GoTrueVerifier checks credentials against a GoTrue-compatible identity
// provider using the password grant
type GoTrueVerifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGoTrueVerifier creates a verifier for the provider at baseURL
func NewGoTrueVerifier(baseURL, apiKey string, timeout time.Duration) *GoTrueVerifier {
	return &GoTrueVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type goTrueMetaSecurity struct {
	CaptchaToken string `json:"captcha_token"`
}

type goTruePasswordGrant struct {
	Email        string              `json:"email"`
	Password     string              `json:"password"`
	MetaSecurity *goTrueMetaSecurity `json:"gotrue_meta_security,omitempty"`
}

type goTrueTokenResponse struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type goTrueErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
}

func (e goTrueErrorResponse) emailNotConfirmed() bool {
	if e.ErrorCode == "email_not_confirmed" {
		return true
	}
	text := strings.ToLower(e.ErrorDescription + " " + e.Msg)
	return strings.Contains(text, "email not confirmed")
}

// Verify runs the password grant. A CAPTCHA token in ctx is forwarded so a
// provider with CAPTCHA protection enabled checks it; its rejection comes back
// as a 400 and counts as a failed attempt.
func (v *GoTrueVerifier) Verify(ctx context.Context, email, password string) (*Identity, error) {
	grant := goTruePasswordGrant{Email: email, Password: password}
	if token := CaptchaTokenFromContext(ctx); token != "" {
		grant.MetaSecurity = &goTrueMetaSecurity{CaptchaToken: token}
	}
	payload, err := json.Marshal(grant)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}

	endpoint := v.baseURL + "/auth/v1/token?grant_type=password"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var token goTrueTokenResponse
		if err := json.Unmarshal(body, &token); err != nil || token.User.ID == "" {
			return nil, fmt.Errorf("%w: malformed token response", ErrVerifierUnavailable)
		}
		return &Identity{UserID: token.User.ID, Email: token.User.Email}, nil

	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		var apiErr goTrueErrorResponse
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.emailNotConfirmed() {
			return nil, ErrEmailNotConfirmed
		}
		return nil, ErrInvalidCredentials

	default:
		return nil, fmt.Errorf("%w: identity provider returned %d", ErrVerifierUnavailable, resp.StatusCode)
	}
}
