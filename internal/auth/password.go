// Password hashing for local accounts.
//
// WHY BCRYPT?
// bcrypt is deliberately slow. A login pays its cost once; an attacker
// holding a stolen users table pays it for every guess. It also:
//   - generates a random salt per hash, so equal passwords hash differently
//   - embeds the salt and cost in its output, so one TEXT column stores all of it
//   - lets the work factor grow with hardware through the cost parameter
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (12 rounds → 2^12 iterations)
//	 version

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor used for account passwords.
//
// COST TUNING:
// Cost 12 takes roughly 250ms on a current server core. Each step up
// doubles it. Pick the highest cost that keeps login under ~300ms on the
// production machine; registration and login are the only callers.
const defaultCost = 12

// MaxPasswordBytes is bcrypt's input limit.
//
// bcrypt silently ignores everything past byte 72, so "a"*72+"x" and
// "a"*72+"y" would be the same password. Hash rejects longer input instead,
// and the registration form checks the same limit up front so the user
// sees a field error rather than a 500. The limit is in bytes: 25 CJK
// characters (75 bytes) are already too long.
const MaxPasswordBytes = 72

// ErrInvalidPassword is returned by Verify when the password does not match.
var ErrInvalidPassword = errors.New("auth: invalid password")

// PasswordService provides bcrypt hashing and verification for local
// (username + password) accounts.
//
// It is a struct rather than two free functions so the cost can be
// injected: tests use cost 4, the bcrypt minimum, and run in microseconds
// instead of a quarter second per hash.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

func newPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// NewPasswordServiceForTest creates a PasswordService with a low bcrypt
// cost so tests in other packages stay fast. Never use it in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt hash of plaintext, salt and cost included:
//
//	$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy
//
// Store the string as-is; Verify decodes salt and cost from it.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify checks plaintext against a stored hash.
//
// A mismatch yields ErrInvalidPassword; a malformed hash yields another
// error, so callers can tell "wrong password" from "corrupt row".
//
// TIMING SAFETY:
// bcrypt.CompareHashAndPassword compares in constant time, so response
// timing does not reveal how much of a guess was right.
//
// Usage:
//
//	if err := ps.Verify(user.PasswordHash, form.Password); errors.Is(err, auth.ErrInvalidPassword) {
//	    // wrong password
//	}
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
