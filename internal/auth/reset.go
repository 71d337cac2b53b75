package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// resetTokenTTL bounds how long an outstanding reset token stays valid.
const resetTokenTTL = 10 * time.Minute

// newResetToken returns a fresh reset secret and its storage hash. The
// plaintext carries 32 bytes of entropy and is handed to the user out of band;
// only the sha256 hash is ever persisted. A fast hash is enough here: it is a
// lookup and integrity key, not a defense against brute forcing 32 random
// bytes.
func newResetToken() (plaintext, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plaintext = hex.EncodeToString(buf)
	return plaintext, hashResetToken(plaintext), nil
}

// hashResetToken derives the storage hash for a reset secret.
func hashResetToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
