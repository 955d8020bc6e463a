package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// AdminPasswordCost is the bcrypt cost used for the admin hash.
const AdminPasswordCost = 12

var ErrEmptyPassword = errors.New("password must not be empty")

// HashPassword returns the bcrypt hash to store as AdminPasswordHash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), AdminPasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash. An empty hash never matches.
func CheckPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
