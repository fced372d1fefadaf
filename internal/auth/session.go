package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BradenHooton/loginguard/internal/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidSession = errors.New("invalid session token")

// SessionClaims is the payload of a session token
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Session describes an issued session
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// SessionIssuer signs session tokens and sets the session cookie
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	cookie CookieConfig
	clock  clock.Clock
}

// NewSessionIssuer creates a new SessionIssuer
func NewSessionIssuer(secret string, ttl time.Duration, cookie CookieConfig, clk clock.Clock) *SessionIssuer {
	if clk == nil {
		clk = clock.System{}
	}
	return &SessionIssuer{secret: []byte(secret), ttl: ttl, cookie: cookie, clock: clk}
}

// Issue signs a session for identity and attaches it to the response as a cookie
func (s *SessionIssuer) Issue(w http.ResponseWriter, identity *Identity) (*Session, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)

	claims := &SessionClaims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	SetSessionCookie(w, token, expiresAt, int(s.ttl.Seconds()), s.cookie)

	return &Session{
		ID:        claims.ID,
		UserID:    identity.UserID,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Parse validates a session token and returns its claims
func (s *SessionIssuer) Parse(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return claims, nil
}
