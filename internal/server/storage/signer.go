package storage

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidBlobToken is returned for blob tokens that are malformed,
// expired, forged or used with the wrong method.
var ErrInvalidBlobToken = errors.New("invalid blob token")

// blobClaims authorise one HTTP method on one object.
type blobClaims struct {
	jwt.RegisteredClaims
	Path   string `json:"path"`
	Method string `json:"method"`
}

type urlSigner struct {
	key []byte
	now func() time.Time
}

func (s urlSigner) sign(path, method string, validity time.Duration) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, blobClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		Path:   path,
		Method: method,
	})
	return token.SignedString(s.key)
}

// verify returns the object path the token grants method on.
func (s urlSigner) verify(tokenString, method string) (string, error) {
	claims := &blobClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidBlobToken
	}
	if claims.Method != method || claims.Path == "" {
		return "", ErrInvalidBlobToken
	}
	return claims.Path, nil
}
