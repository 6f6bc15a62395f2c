package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// IsBcryptHash reports whether v looks like a bcrypt hash ($2a$, $2b$, $2y$).
func IsBcryptHash(v string) bool {
	return len(v) == 60 && (strings.HasPrefix(v, "$2a$") || strings.HasPrefix(v, "$2b$") || strings.HasPrefix(v, "$2y$"))
}

// CheckPassword compares supplied against the configured admin password,
// which may be stored either in plain text or as a bcrypt hash.
func CheckPassword(configured, supplied string) bool {
	if configured == "" || supplied == "" {
		return false
	}
	if IsBcryptHash(configured) {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(supplied)) == nil
	}
	return SecretsEqual(configured, supplied)
}

// SecretsEqual compares two secrets in constant time. Empty secrets never
// match.
func SecretsEqual(expected, supplied string) bool {
	if expected == "" || supplied == "" {
		return false
	}
	// hashing first keeps the comparison independent of the length
	a := sha256.Sum256([]byte(expected))
	b := sha256.Sum256([]byte(supplied))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
