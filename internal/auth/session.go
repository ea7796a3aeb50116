package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the session cookie set on the gateway's root domain.
const CookieName = "gatehouse_session"

// sessionSecretBytes is the size of a generated session secret.
const sessionSecretBytes = 32

// SessionClaims is the payload of a session token: the username plus
// the standard integrity and expiry metadata.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// Sessions encodes and decodes authenticated identities into signed,
// domain-scoped client-side cookies. Tokens are HS256 JWTs; nothing is
// stored server-side, so a token is valid until it expires or the
// signing secret changes.
type Sessions struct {
	secret []byte
	domain string
	maxAge time.Duration
	secure bool
}

// NewSessions creates a session codec scoped to the given domain.
// Secure controls the cookie's Secure flag and should reflect the
// deployment's HTTPS posture.
func NewSessions(secret, domain string, maxAge time.Duration, secure bool) *Sessions {
	return &Sessions{
		secret: []byte(secret),
		domain: domain,
		maxAge: maxAge,
		secure: secure,
	}
}

// Issue signs a session token for the username and sets it as a cookie
// on the response.
func (s *Sessions) Issue(w http.ResponseWriter, username string) error {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("signing session token: %w", err)
	}

	http.SetCookie(w, s.cookie(signed, int(s.maxAge.Seconds())))
	return nil
}

// Username returns the identity carried by the request's session cookie,
// or "" when the cookie is absent, malformed, tampered with, or expired.
// Decode failures are anonymous, never errors.
func (s *Sessions) Username(r *http.Request) string {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	return s.decode(c.Value)
}

// Decode returns the username embedded in a raw token, or "" if the
// token is invalid in any way.
func (s *Sessions) Decode(token string) string {
	return s.decode(token)
}

func (s *Sessions) decode(raw string) string {
	parsed, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return ""
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return ""
	}
	return claims.Subject
}

// Clear sets an expired cookie, instructing the client to erase the
// session. Used for logout.
func (s *Sessions) Clear(w http.ResponseWriter) {
	c := s.cookie("", -1)
	c.Expires = time.Unix(0, 0)
	http.SetCookie(w, c)
}

func (s *Sessions) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Domain:   s.domain,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// RandomSecret generates a hex-encoded random session secret for
// deployments that do not configure one.
func RandomSecret() (string, error) {
	b := make([]byte, sessionSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
