package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
)

// KeyedDigest returns HMAC-SHA256(key, parts...) with the parts written back to back.
func KeyedDigest(key []byte, parts ...[]byte) []byte {
	mac := hmac.New(sha256.New, key)
	for _, p := range parts {
		mac.Write(p)
	}
	return mac.Sum(nil)
}

// ConstantTimeEqual compares two secrets without leaking timing information.
// Slices of different length are never equal.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
