// Package credential hashes and verifies user passwords with bcrypt.
package credential

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Cost is the bcrypt work factor used by Hash. Tests lower it to bcrypt.MinCost.
var Cost = bcrypt.DefaultCost

// Hash returns a modular-crypt bcrypt string carrying cost, salt and digest.
func Hash(password string) (string, error) {
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", err
	}

	return string(hashbytes), nil
}

// Verify reports whether plain matches hash. A malformed hash never matches.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
