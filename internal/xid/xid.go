package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// New mints an entity ID of the form "<prefix>-<uuid>".
func New(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// Token returns an opaque random session identifier.
func Token() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms; uuid v4 is the fallback.
		return hex.EncodeToString([]byte(uuid.NewString()))
	}
	return hex.EncodeToString(buf)
}
