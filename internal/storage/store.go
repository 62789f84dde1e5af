// Package storage is the persistence boundary of the storefront. Everything above it sees
// plain booleans: a failed read is the same as an absent key and a failed write is reported,
// never raised.
package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Skotchmaster/storefront/internal/logging"
)

const (
	KeyCurrentUser     = "currentUser"
	KeyCartItems       = "cartItems"
	KeyRedeemedRewards = "redeemedRewards"

	userKeyPrefix = "user_"
)

func UserKey(email string) string {
	return userKeyPrefix + email
}

type Store struct {
	Backend Backend
}

func New(b Backend) *Store {
	return &Store{Backend: b}
}

// Get decodes the value under key into out. It reports false when the key is absent,
// unreadable or not valid JSON for out.
func (s *Store) Get(ctx context.Context, key string, out any) bool {
	l := logging.FromContext(ctx).With("svc", "storage.get", "key", key)

	data, err := s.Backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			l.Error("storage_get_error", "error", err)
		}
		return false
	}
	if len(data) == 0 || string(data) == "null" {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		l.Error("storage_get_error", "reason", "corrupted value", "error", err)
		return false
	}
	return true
}

func (s *Store) Set(ctx context.Context, key string, value any) bool {
	l := logging.FromContext(ctx).With("svc", "storage.set", "key", key)

	data, err := json.Marshal(value)
	if err != nil {
		l.Error("storage_set_error", "reason", "marshal", "error", err)
		return false
	}
	if err := s.Backend.Set(ctx, key, data); err != nil {
		l.Error("storage_set_error", "error", err)
		return false
	}
	return true
}

func (s *Store) Remove(ctx context.Context, key string) bool {
	if err := s.Backend.Remove(ctx, key); err != nil {
		logging.FromContext(ctx).Error("storage_remove_error", "svc", "storage.remove", "key", key, "error", err)
		return false
	}
	return true
}
