package auth

import (
	"net/http"
	"time"
)

const SessionCookieName = "session"

// hostCookiePrefix binds the cookie to the exact origin host; browsers only
// accept it with Secure, Path=/ and no Domain
const hostCookiePrefix = "__Host-"

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain   string // empty = current host only
	Secure   bool
	SameSite string // "strict", "lax" or "none"
}

// Name returns the session cookie name for this configuration
func (c CookieConfig) Name() string {
	if c.Secure && c.Domain == "" {
		return hostCookiePrefix + SessionCookieName
	}
	return SessionCookieName
}

func (c CookieConfig) sameSite() http.SameSite {
	switch c.SameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// SetSessionCookie stores the signed session token in an httpOnly cookie
func SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time, maxAge int, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.Name(),
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  expiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: config.sameSite(),
	})
}
