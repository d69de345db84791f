// Package auth provides the login machinery of the bookmarks site: signed
// JWT session cookies, bcrypt password hashing, GitHub OAuth, and the
// middleware that resolves the current user from a request.
//
// A logged-in browser carries an HttpOnly "token" cookie holding an HS256
// JWT whose subject is the internal user ID. No session state is kept on
// the server; the signature is checked on every request.
//
// TOKEN ANATOMY:
//
//	header.payload.signature   (each part base64url-encoded)
//	{"alg":"HS256","typ":"JWT"}
//	{"sub":"<user id>","iss":"bookmarks","iat":...,"exp":...}
//	HMAC-SHA256(header + "." + payload, secret)
//
// The payload is readable by anyone holding the cookie, so it carries
// only the user ID. Anything else (username, avatar) is loaded from the
// database when a handler needs it.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "bookmarks"

	// TokenLifetime is how long a login lasts before the user has to sign in again.
	TokenLifetime = 24 * time.Hour
)

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
//
// The secret should be at least 32 bytes of random data in production.
// Anyone who knows it can mint a token for any user ID, and rotating it
// logs every user out. config.Validate refuses the development default
// when APP_ENV is production.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the token payload. RegisteredClaims already covers everything
// the site needs (sub, iss, iat, exp); a named type keeps ParseWithClaims
// free to grow custom fields later.
type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for userID valid for TokenLifetime.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, TokenLifetime)
}

// GenerateWithDuration signs a token with a custom lifetime. A negative
// duration yields an already expired token, which tests rely on.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a JWT string and returns the user ID in its
// "sub" claim. Only HS256 tokens from this issuer with an expiry are accepted.
//
// ALGORITHM PINNING:
// The header's "alg" is attacker-controlled. Without WithValidMethods a
// token claiming "none", or an RS256 token "signed" with the HMAC secret
// used as a public key, could slip through. The keyfunc repeats the check
// so a misconfigured parser option cannot reopen the hole.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		// Expiry is the common case (a browser left open overnight) and
		// gets its own message in the logs.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
