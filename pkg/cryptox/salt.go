package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// SaltSize is the size of a key-derivation salt in bytes (256 bits).
const SaltSize = 32

// IssueSalt returns a fresh random key-derivation salt, standard base64
// encoded. The salt is handed to clients so they can derive their local
// vault key; it plays no part in credential hashing.
func IssueSalt() (string, error) {
	buf := make([]byte, SaltSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: issue salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
