package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNewLocalizer_RejectsUnsupportedDefault(t *testing.T) {
	_, err := NewLocalizer("fr")
	assert.Error(t, err)

	_, err = NewLocalizer("not a locale!")
	assert.Error(t, err)
}

func TestLocalizer_Tag(t *testing.T) {
	l, err := NewLocalizer("de")
	require.NoError(t, err)

	tests := []struct {
		header string
		want   language.Tag
	}{
		{"", language.German},
		{"en-US,en;q=0.9", language.English},
		{"de-AT", language.German},
		{"fr-FR", language.German},
		{"fr-FR, en;q=0.5", language.English},
		{";;;garbage", language.German},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Tag(tt.header))
		})
	}
}

func TestLocalizer_Text(t *testing.T) {
	l, err := NewLocalizer("de")
	require.NoError(t, err)

	assert.Equal(t,
		"Zu viele fehlgeschlagene Login-Versuche. Bitte versuche es in 30 Minuten erneut.",
		l.Text("", RateLimited, 30))
	assert.Equal(t,
		"Zu viele fehlgeschlagene Login-Versuche. Bitte versuche es in 1 Minute erneut.",
		l.Text("de", RateLimited, 1))
	assert.Equal(t,
		"Too many failed login attempts. Please try again in 5 minutes.",
		l.Text("en", RateLimited, 5))
	assert.Equal(t,
		"Zu viele fehlgeschlagene Versuche. Account für 30 Minuten gesperrt.",
		l.Text("de", LockoutStarted, 30))
	assert.Equal(t, "Ungültige E-Mail oder Passwort", l.Text("de", InvalidCredentials))
	assert.Equal(t, "Invalid email or password", l.Text("en-GB", InvalidCredentials))
}

func TestLocalizer_EnglishDefault(t *testing.T) {
	l, err := NewLocalizer("en")
	require.NoError(t, err)

	assert.Equal(t, language.English, l.Tag(""))
	assert.Equal(t, "Invalid request", l.Text("", InvalidRequest))
	assert.Equal(t, "Ungültige Anfrage", l.Text("de-DE", InvalidRequest))
}
