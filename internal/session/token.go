package session

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

// Claims is the payload of the session cookie: the username as subject and
// the server-side session id as token id.
type Claims struct {
	UserID uint `json:"uid"`
	jwt.RegisteredClaims
}

type Signer struct {
	Secret []byte
}

func (s Signer) Sign(sess *Session) (string, error) {
	claims := Claims{
		UserID: sess.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   sess.Username,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return token, nil
}

func (s Signer) Parse(raw string) (*Claims, error) {
	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return s.Secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
