package random

import (
	"crypto/rand"
	"encoding/hex"
)

// Key returns n random bytes, for signing and encryption keys.
func Key(n int) []byte {
	key := make([]byte, n)

	// crypto/rand.Read never returns an error since Go 1.24.
	_, _ = rand.Read(key)

	return key
}

// Hex returns n random bytes as a hex string of length 2n.
func Hex(n int) string {
	return hex.EncodeToString(Key(n))
}

// KeyOrRandom decodes key as hex. An empty or malformed key is replaced by n
// random bytes, which do not survive a restart.
func KeyOrRandom(key string, n int) ([]byte, bool) {
	if key == "" {
		return Key(n), false
	}

	decoded, err := hex.DecodeString(key)
	if err != nil || len(decoded) < n {
		return Key(n), false
	}

	return decoded, true
}
