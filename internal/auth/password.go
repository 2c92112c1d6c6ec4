package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the upstream default. Raising it invalidates no stored
// hashes; bcrypt encodes the cost in the hash itself.
const bcryptCost = bcrypt.DefaultCost

// hashPassword produces a bcrypt hash of the plaintext password.
func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// verifyPassword reports whether the plaintext matches the stored hash.
func verifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
