// Package tokens signs the handles that tie a proposed action to its later commit.
package tokens

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/domain"
)

const (
	KindCheckout = "checkout"
	KindRedeem   = "redeem"
)

type PendingClaims struct {
	Kind        string `json:"kind"`
	Fingerprint string `json:"fp,omitempty"`
	Amount      int64  `json:"amt,omitempty"`
	Points      int64  `json:"pts,omitempty"`
	RewardID    int    `json:"rid,omitempty"`
	jwt.RegisteredClaims
}

type Signer struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

func NewSigner(secret []byte, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Signer{Secret: secret, TTL: ttl, Now: time.Now, revoked: make(map[string]time.Time)}
}

// Sign stamps claims with a fresh id and expiry and returns the signed handle.
func (s *Signer) Sign(claims PendingClaims) (string, *PendingClaims, error) {
	now := s.Now()
	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.TTL))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign handle: %w", err)
	}
	return signed, &claims, nil
}

// Parse verifies the handle and returns its claims. Expired, tampered or revoked handles
// all yield domain.ErrInvalidHandle.
func (s *Signer) Parse(handle string) (*PendingClaims, error) {
	var claims PendingClaims
	tkn, err := jwt.ParseWithClaims(handle, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return s.Secret, nil
	}, jwt.WithTimeFunc(s.Now), jwt.WithExpirationRequired())
	if err != nil || !tkn.Valid {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidHandle, err)
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, fmt.Errorf("%w: already used or cancelled", domain.ErrInvalidHandle)
	}
	return &claims, nil
}

// Consume parses the handle and revokes it so it cannot be used again.
func (s *Signer) Consume(handle, kind string) (*PendingClaims, error) {
	claims, err := s.Parse(handle)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: handle is for %q", domain.ErrInvalidHandle, claims.Kind)
	}
	s.revoke(claims)
	return claims, nil
}

// Revoke cancels a handle. Cancelling an invalid handle is an error.
func (s *Signer) Revoke(handle string) error {
	claims, err := s.Parse(handle)
	if err != nil {
		return err
	}
	s.revoke(claims)
	return nil
}

func (s *Signer) revoke(claims *PendingClaims) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	exp := now.Add(s.TTL)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	s.revoked[claims.ID] = exp
}
