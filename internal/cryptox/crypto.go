// Package cryptox hashes account secrets for storage on the server.
package cryptox

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/quickchat/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	SaltSize = 16
	keySize  = 32
)

// NewSalt returns a fresh random salt for HashSecret.
func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

// HashSecret derives a 32-byte argon2id hash of secret.
func HashSecret(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, 1, 64*1024, 4, keySize)
}

// VerifySecret reports whether secret hashes to want under salt.
// The comparison runs in constant time.
func VerifySecret(secret, salt, want []byte) bool {
	got := HashSecret(secret, salt)
	defer common.WipeByteArray(got)
	return subtle.ConstantTimeCompare(got, want) == 1
}
