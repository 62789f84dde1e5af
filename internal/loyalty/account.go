package loyalty

import (
	"context"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/storage"
)

// PointsPerUnit is how much has to be spent for one loyalty point.
const PointsPerUnit int64 = 100

// PointsForAmount truncates: the remainder below PointsPerUnit earns nothing.
func PointsForAmount(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return amount / PointsPerUnit
}

type Accounts struct {
	Store *storage.Store
}

// Credit adds points to the user's balance and saves the account. On false the balance is
// unchanged.
func (a *Accounts) Credit(ctx context.Context, user *models.User, points int64) bool {
	l := logging.FromContext(ctx).With("svc", "loyalty.credit")
	if user == nil || points < 0 {
		return false
	}

	user.LoyaltyPoints += points
	if !a.Save(ctx, user) {
		user.LoyaltyPoints -= points
		a.Save(ctx, user)
		l.Warn("credit_persist_failed", "user", user.Email, "points", points)
		return false
	}
	l.Info("points_credited", "user", user.Email, "points", points, "balance", user.LoyaltyPoints)
	return true
}

// Debit removes points when the balance covers them. On false the balance is unchanged.
func (a *Accounts) Debit(ctx context.Context, user *models.User, points int64) bool {
	l := logging.FromContext(ctx).With("svc", "loyalty.debit")
	if user == nil || points < 0 || user.LoyaltyPoints < points {
		return false
	}

	user.LoyaltyPoints -= points
	if !a.Save(ctx, user) {
		user.LoyaltyPoints += points
		a.Save(ctx, user)
		l.Warn("debit_persist_failed", "user", user.Email, "points", points)
		return false
	}
	l.Info("points_debited", "user", user.Email, "points", points, "balance", user.LoyaltyPoints)
	return true
}

// Save writes the user to the current-user slot and to its archival key.
func (a *Accounts) Save(ctx context.Context, user *models.User) bool {
	if user == nil {
		return false
	}
	current := a.Store.Set(ctx, storage.KeyCurrentUser, user)
	archived := a.Store.Set(ctx, storage.UserKey(user.Email), user)
	return current && archived
}

func (a *Accounts) Lookup(ctx context.Context, email string) (*models.User, bool) {
	var u models.User
	if !a.Store.Get(ctx, storage.UserKey(email), &u) {
		return nil, false
	}
	return &u, true
}

func (a *Accounts) Current(ctx context.Context) (*models.User, bool) {
	var u models.User
	if !a.Store.Get(ctx, storage.KeyCurrentUser, &u) || u.Email == "" {
		return nil, false
	}
	return &u, true
}

func (a *Accounts) ClearCurrent(ctx context.Context) bool {
	return a.Store.Remove(ctx, storage.KeyCurrentUser)
}
