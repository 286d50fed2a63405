package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func HashString(s string) string {
	hasher := sha256.New()
	hasher.Write([]byte(s))
	return hex.EncodeToString(hasher.Sum(nil))
}

// Fingerprint identifies a secret in logs without revealing it.
func Fingerprint(secret string) string {
	if secret == "" {
		return "none"
	}
	return HashString(secret)[:12]
}

// MaskSecret keeps the last four characters of a secret visible.
func MaskSecret(secret string) string {
	r := []rune(secret)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", 4) + string(r[len(r)-4:])
}
