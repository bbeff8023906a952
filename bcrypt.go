package accounts

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

// dummyPasswordHash is compared against when the identifier resolves to no
// account, keeping the failure path uniform with a wrong-password failure.
var dummyPasswordHash = func() string {
	h, err := bcrypt.GenerateFromPassword([]byte("accounts.dummy.compare"), bcrypt.MinCost)
	if err != nil {
		return "$2a$04$TwuylOV8eemUnhLXHd4qGeXimvWoBVnmmrI0hBCoXVHC8nqAYqoH6"
	}
	return string(h)
}()
