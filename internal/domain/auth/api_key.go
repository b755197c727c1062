// Package auth provides admin API key hashing and verification.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrUnknownHashType is returned when a stored hash has an unrecognized format.
var ErrUnknownHashType = errors.New("unknown hash type")

// argon2idParams defines OWASP minimum parameters for Argon2id.
// Memory: 46 MiB, Iterations: 1, Parallelism: 1
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024, // 47 MiB (OWASP minimum: 46 MiB)
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashKeyArgon2id returns an Argon2id hash of the raw key in PHC format.
// The hash includes a random salt and uses OWASP minimum parameters.
// Format: $argon2id$v=19$m=48128,t=1,p=1$<salt>$<hash>
func HashKeyArgon2id(rawKey string) (string, error) {
	return argon2id.CreateHash(rawKey, argon2idParams)
}

// IsArgon2idHash reports whether storedHash is in Argon2id PHC format.
func IsArgon2idHash(storedHash string) bool {
	return strings.HasPrefix(storedHash, "$argon2id$")
}

// VerifyKey verifies a raw key against a stored Argon2id hash.
// Returns (true, nil) if match, (false, nil) if no match,
// (false, ErrUnknownHashType) for hashes in any other format.
func VerifyKey(rawKey, storedHash string) (bool, error) {
	if !IsArgon2idHash(storedHash) {
		return false, ErrUnknownHashType
	}
	return safeArgon2idCompare(rawKey, storedHash)
}

// safeArgon2idCompare wraps argon2id.ComparePasswordAndHash with panic recovery.
// The underlying argon2 library panics on malformed Argon2id hashes with invalid
// parameters (e.g., t=0 rounds, p=0 parallelism).
func safeArgon2idCompare(rawKey, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(rawKey, storedHash)
}
