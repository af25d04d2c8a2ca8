package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateShareFragment mints an opaque key fragment for the §6
// POST /rooms response, adapted from the teacher's OAuth state-nonce
// generator: same crypto/rand-plus-base64url technique, with the
// JSON-metadata half dropped since there is no provider round-trip to
// carry it through. The core never interprets this value — §1 non-goals:
// "an encryption-key fragment may ride in a share URL but the core never
// sees it" — it exists only so a client with no key material of its own
// can still hand guests a complete share link.
func GenerateShareFragment() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate share fragment: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(randomBytes), nil
}
