// Package session is the explicit per-client context the engine runs against: who is logged
// in and which cart is open.
package session

import (
	"context"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/loyalty"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/storage"
)

type Session struct {
	user   *models.User
	ledger *cart.Ledger
}

// Open restores the current user and the cart from the store.
func Open(ctx context.Context, store *storage.Store, accounts *loyalty.Accounts) *Session {
	s := &Session{ledger: cart.Load(ctx, store)}
	if u, ok := accounts.Current(ctx); ok {
		s.user = u
	}
	logging.FromContext(ctx).Info("session_opened", "logged_in", s.LoggedIn(), "cart_rows", s.ledger.Len())
	return s
}

// User is nil when nobody is logged in.
func (s *Session) User() *models.User {
	return s.user
}

func (s *Session) SetUser(u *models.User) {
	s.user = u
}

func (s *Session) Ledger() *cart.Ledger {
	return s.ledger
}

func (s *Session) LoggedIn() bool {
	return s.user != nil
}
