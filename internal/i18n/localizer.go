// Package i18n renders user-facing login messages in the caller's language.
// German is the default; English is served when Accept-Language prefers it.
package i18n

import (
	"fmt"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys
const (
	RateLimited         = "rate_limited"
	LockoutStarted      = "lockout_started"
	InvalidCredentials  = "invalid_credentials"
	EmailNotConfirmed   = "email_not_confirmed"
	CaptchaRequired     = "captcha_required"
	CaptchaInvalid      = "captcha_invalid"
	InvalidRequest      = "invalid_request"
	VerifierUnavailable = "verifier_unavailable"
	InternalError       = "internal_error"
)

type entry struct {
	key string
	msg catalog.Message
}

var german = []entry{
	{RateLimited, plural.Selectf(1, "%d",
		"one", "Zu viele fehlgeschlagene Login-Versuche. Bitte versuche es in %d Minute erneut.",
		"other", "Zu viele fehlgeschlagene Login-Versuche. Bitte versuche es in %d Minuten erneut.")},
	{LockoutStarted, plural.Selectf(1, "%d",
		"one", "Zu viele fehlgeschlagene Versuche. Account für %d Minute gesperrt.",
		"other", "Zu viele fehlgeschlagene Versuche. Account für %d Minuten gesperrt.")},
	{InvalidCredentials, catalog.String("Ungültige E-Mail oder Passwort")},
	{EmailNotConfirmed, catalog.String("Bitte bestätigen Sie zuerst Ihre E-Mail-Adresse. Prüfen Sie Ihren Posteingang.")},
	{CaptchaRequired, catalog.String("Bitte bestätigen Sie, dass Sie kein Roboter sind.")},
	{CaptchaInvalid, catalog.String("Die CAPTCHA-Überprüfung ist fehlgeschlagen. Bitte versuche es erneut.")},
	{InvalidRequest, catalog.String("Ungültige Anfrage")},
	{VerifierUnavailable, catalog.String("Die Anmeldung ist derzeit nicht möglich. Bitte versuche es später erneut.")},
	{InternalError, catalog.String("Ein interner Fehler ist aufgetreten")},
}

var english = []entry{
	{RateLimited, plural.Selectf(1, "%d",
		"one", "Too many failed login attempts. Please try again in %d minute.",
		"other", "Too many failed login attempts. Please try again in %d minutes.")},
	{LockoutStarted, plural.Selectf(1, "%d",
		"one", "Too many failed attempts. Account locked for %d minute.",
		"other", "Too many failed attempts. Account locked for %d minutes.")},
	{InvalidCredentials, catalog.String("Invalid email or password")},
	{EmailNotConfirmed, catalog.String("Please confirm your email address first. Check your inbox.")},
	{CaptchaRequired, catalog.String("Please confirm that you are not a robot.")},
	{CaptchaInvalid, catalog.String("CAPTCHA verification failed. Please try again.")},
	{InvalidRequest, catalog.String("Invalid request")},
	{VerifierUnavailable, catalog.String("Sign-in is currently unavailable. Please try again later.")},
	{InternalError, catalog.String("An internal error occurred")},
}

// Localizer picks a printer for an Accept-Language header
type Localizer struct {
	catalog   catalog.Catalog
	supported []language.Tag
	matcher   language.Matcher
}

// NewLocalizer builds the message catalog. defaultLocale must be "de" or "en".
func NewLocalizer(defaultLocale string) (*Localizer, error) {
	fallback, err := language.Parse(defaultLocale)
	if err != nil {
		return nil, fmt.Errorf("invalid default locale %q: %w", defaultLocale, err)
	}

	base, _ := fallback.Base()
	var supported []language.Tag
	switch base.String() {
	case "de":
		supported = []language.Tag{language.German, language.English}
	case "en":
		supported = []language.Tag{language.English, language.German}
	default:
		return nil, fmt.Errorf("unsupported default locale %q", defaultLocale)
	}

	builder := catalog.NewBuilder(catalog.Fallback(supported[0]))
	for _, set := range []struct {
		tag     language.Tag
		entries []entry
	}{
		{language.German, german},
		{language.English, english},
	} {
		for _, e := range set.entries {
			if err := builder.Set(set.tag, e.key, e.msg); err != nil {
				return nil, fmt.Errorf("failed to register message %s/%s: %w", set.tag, e.key, err)
			}
		}
	}

	return &Localizer{
		catalog:   builder,
		supported: supported,
		matcher:   language.NewMatcher(supported),
	}, nil
}

// Tag returns the supported language best matching an Accept-Language header
func (l *Localizer) Tag(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return l.supported[0]
	}
	_, index, _ := l.matcher.Match(tags...)
	return l.supported[index]
}

// Printer returns a printer bound to the catalog for the given header
func (l *Localizer) Printer(acceptLanguage string) *message.Printer {
	return message.NewPrinter(l.Tag(acceptLanguage), message.Catalog(l.catalog))
}

// Text renders key for the given Accept-Language header
func (l *Localizer) Text(acceptLanguage, key string, args ...any) string {
	return l.Printer(acceptLanguage).Sprintf(key, args...)
}
