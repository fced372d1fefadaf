package logger

import (
	"net/url"
	"strings"
)

// SanitizedEmail masks an email address for logging: "user@example.com" becomes "u***@*******.com"
func SanitizedEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "[invalid-email]"
	}

	masked := local[:1] + strings.Repeat("*", len(local)-1)

	labels := strings.Split(domain, ".")
	for i := 0; i < len(labels)-1; i++ {
		labels[i] = strings.Repeat("*", len(labels[i]))
	}

	return masked + "@" + strings.Join(labels, ".")
}

var sensitiveParams = []string{
	"password", "token", "secret", "api_key", "apikey", "email", "auth", "captcha",
}

// SanitizeQueryString reports whether any query parameter name looks
// sensitive. Unparseable queries count as sensitive.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return true
	}
	for name := range values {
		name = strings.ToLower(name)
		for _, param := range sensitiveParams {
			if strings.Contains(name, param) {
				return true
			}
		}
	}
	return false
}

// LoggablePath renders a request target for logs, dropping sensitive queries
func LoggablePath(u *url.URL) string {
	switch {
	case u.RawQuery == "":
		return u.Path
	case SanitizeQueryString(u.RawQuery):
		return u.Path + "?[REDACTED]"
	default:
		return u.Path + "?" + u.RawQuery
	}
}
