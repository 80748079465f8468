package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

// verifyPassword checks input against stored material. legacy is true when
// the stored value is the old base64 encoding and must be re-hashed.
func verifyPassword(stored string, input string) (ok bool, legacy bool) {
	if stored == "" || input == "" {
		return false, false
	}
	if isPasswordHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return false, false
	}
	if subtle.ConstantTimeCompare(decoded, []byte(input)) != 1 {
		return false, false
	}
	return true, true
}
