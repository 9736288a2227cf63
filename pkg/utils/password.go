package utils

import "golang.org/x/crypto/bcrypt"

const bcryptCost = 10

// HashPassword returns the bcrypt hash of a plaintext password. bcrypt
// salts every call, so hashing the same password twice yields different
// hashes.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the
// stored bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
