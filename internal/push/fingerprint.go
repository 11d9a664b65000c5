package push

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives a stable identifier for a signing key or endpoint.
func Fingerprint(key string) string {
	if key == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}
