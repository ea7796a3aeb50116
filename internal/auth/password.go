package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters. Fixed and unversioned: stored hashes carry no
// parameter metadata, so changing any of these requires migrating every
// existing users file.
const (
	pbkdf2Iterations = 1000
	pbkdf2KeyLen     = 64 // bytes, hex-encoded to 128 chars
	saltLen          = 16 // bytes, hex-encoded to 32 chars
)

// HashPassword derives an Encrypted credential from a plaintext password
// using a freshly generated random salt.
func HashPassword(password string) (Encrypted, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return Encrypted{}, fmt.Errorf("generating salt: %w", err)
	}

	hexSalt := hex.EncodeToString(salt)
	return Encrypted{
		Salt: hexSalt,
		Key:  deriveKey(password, hexSalt),
	}, nil
}

// deriveKey runs PBKDF2-SHA512 over the password and the hex-encoded
// salt. The salt enters the KDF in its hex form, matching how stored
// keys were originally produced.
func deriveKey(password, hexSalt string) string {
	key := pbkdf2.Key([]byte(password), []byte(hexSalt), pbkdf2Iterations, pbkdf2KeyLen, sha512.New)
	return hex.EncodeToString(key)
}

// constantTimeEqual compares two strings without leaking the position of
// the first mismatch. Both sides are digested first so inputs of
// different lengths are still compared in constant time.
func constantTimeEqual(a, b string) bool {
	da := sha512.Sum512([]byte(a))
	db := sha512.Sum512([]byte(b))
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}
