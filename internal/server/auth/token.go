// Package auth mints and verifies opaque bearer tokens.
//
// A token is base64url(selector || verifier). The selector indexes the
// token store; only an HMAC of the verifier is stored, so a leaked store
// cannot be replayed and lookups never compare secrets.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/foxhound/internal/common"
	"github.com/dmitrijs2005/foxhound/internal/server/tokenstore"
)

const (
	SelectorLength = 32
	VerifierLength = 32

	keyPrefix    = "foxhound.auth-token."
	domainSuffix = "\x00auth_token"

	DefaultValidity = time.Hour
)

// ErrWeakAppKey is returned by NewTokenService for keys too short or too
// repetitive to serve as an HMAC secret.
var ErrWeakAppKey = errors.New("app key is too weak")

// Store is the TTL key-value store tokens live in.
type Store interface {
	SetEx(ctx context.Context, key string, ttl time.Duration, value []byte) error
	// GetEx returns the value and resets its TTL in one step.
	GetEx(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
}

var readRandom = rand.Read

type TokenService struct {
	store    Store
	key      []byte
	validity time.Duration
}

// NewTokenService validates appKey and binds it to store.
func NewTokenService(store Store, appKey string, validity time.Duration) (*TokenService, error) {
	if err := ValidateAppKey(appKey); err != nil {
		return nil, err
	}
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &TokenService{
		store:    store,
		key:      []byte(appKey + domainSuffix),
		validity: validity,
	}, nil
}

// ValidateAppKey requires at least 16 bytes with at least 8 distinct values.
func ValidateAppKey(appKey string) error {
	if appKey == "" {
		return fmt.Errorf("%w: not set", ErrWeakAppKey)
	}
	if len(appKey) < 16 {
		return fmt.Errorf("%w: shorter than 16 bytes", ErrWeakAppKey)
	}
	var seen [256]bool
	distinct := 0
	for i := 0; i < len(appKey); i++ {
		if !seen[appKey[i]] {
			seen[appKey[i]] = true
			distinct++
		}
	}
	if distinct < 8 {
		return fmt.Errorf("%w: fewer than 8 distinct bytes", ErrWeakAppKey)
	}
	return nil
}

func (s *TokenService) digest(verifier []byte) []byte {
	m := hmac.New(sha512.New512_256, s.key)
	m.Write(verifier)
	return m.Sum(nil)
}

// Mint issues a new token valid for the service's validity window.
func (s *TokenService) Mint(ctx context.Context) (string, error) {
	raw := make([]byte, SelectorLength+VerifierLength)
	if _, err := readRandom(raw); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	selector, verifier := raw[:SelectorLength], raw[SelectorLength:]

	if err := s.store.SetEx(ctx, keyPrefix+string(selector), s.validity, s.digest(verifier)); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Verify checks token and, when it is valid, extends its lifetime to a full
// validity window. Malformed, unknown and forged tokens all yield
// common.ErrorUnauthorized; store failures are returned wrapped.
func (s *TokenService) Verify(ctx context.Context, token string) error {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != SelectorLength+VerifierLength {
		return common.ErrorUnauthorized
	}
	selector, verifier := raw[:SelectorLength], raw[SelectorLength:]

	stored, err := s.store.GetEx(ctx, keyPrefix+string(selector), s.validity)
	if err != nil {
		if errors.Is(err, tokenstore.ErrKeyNotFound) {
			return common.ErrorUnauthorized
		}
		return fmt.Errorf("load token: %w", err)
	}
	if subtle.ConstantTimeCompare(stored, s.digest(verifier)) != 1 {
		return common.ErrorUnauthorized
	}
	return nil
}

// CheckSecret compares a presented shared secret with the configured one
// in constant time.
func CheckSecret(presented, configured string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}
