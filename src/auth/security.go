package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters used for new password hashes.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// PasswordHash stores a derived key together with the parameters that
// produced it, so verification survives parameter changes.
type PasswordHash struct {
	Hash    []byte
	Salt    []byte
	Method  string // "argon2id"
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
}

// hashPassword derives an argon2id hash from a password with a fresh salt.
func hashPassword(password string) (PasswordHash, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return PasswordHash{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return PasswordHash{
		Hash:    hash,
		Salt:    salt,
		Method:  "argon2id",
		Time:    argonTime,
		Memory:  argonMemory,
		Threads: argonThreads,
		KeyLen:  argonKeyLen,
	}, nil
}

// verifyPassword re-derives the key with the stored parameters and compares
// in constant time.
func verifyPassword(password string, stored PasswordHash) bool {
	if stored.Method != "argon2id" {
		return false
	}
	derived := argon2.IDKey([]byte(password), stored.Salt, stored.Time, stored.Memory, stored.Threads, stored.KeyLen)
	return subtle.ConstantTimeCompare(derived, stored.Hash) == 1
}
