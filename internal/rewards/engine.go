package rewards

import (
	"context"
	"fmt"
	"time"

	"github.com/Skotchmaster/storefront/internal/domain"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/loyalty"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/storage"
	"github.com/Skotchmaster/storefront/internal/util"
)

type Availability struct {
	Reward    models.Reward `json:"reward"`
	CanRedeem bool          `json:"can_redeem"`
}

type Engine struct {
	Catalog  *Catalog
	Accounts *loyalty.Accounts
	Store    *storage.Store
	Now      func() time.Time
}

func NewEngine(c *Catalog, accounts *loyalty.Accounts, store *storage.Store) *Engine {
	return &Engine{Catalog: c, Accounts: accounts, Store: store, Now: time.Now}
}

// ListAvailable flags every catalog entry with whether user can afford it right now.
func (e *Engine) ListAvailable(user *models.User) []Availability {
	var balance int64
	if user != nil {
		balance = user.LoyaltyPoints
	}
	all := e.Catalog.All()
	out := make([]Availability, 0, len(all))
	for _, r := range all {
		out = append(out, Availability{Reward: r, CanRedeem: user != nil && balance >= r.Points})
	}
	return out
}

// Redeem debits the reward cost and appends a redemption record. Either both happen or
// neither does.
func (e *Engine) Redeem(ctx context.Context, user *models.User, rewardID int) (*models.Redemption, error) {
	l := logging.FromContext(ctx).With("svc", "rewards.redeem", "reward_id", rewardID)

	if user == nil {
		return nil, domain.ErrNotLoggedIn
	}
	reward, ok := e.Catalog.Find(rewardID)
	if !ok {
		return nil, fmt.Errorf("reward %d: %w", rewardID, domain.ErrRewardNotFound)
	}
	if user.LoyaltyPoints < reward.Points {
		return nil, fmt.Errorf("need %d points, have %d: %w", reward.Points, user.LoyaltyPoints, domain.ErrInsufficientPoints)
	}

	if !e.Accounts.Debit(ctx, user, reward.Points) {
		l.Error("redeem_debit_failed", "user", user.Email)
		return nil, fmt.Errorf("debit %d points: %w", reward.Points, domain.ErrStorageUnavailable)
	}

	record := models.Redemption{
		Reward:     reward,
		RedeemedAt: e.Now().UTC(),
		UserID:     user.Email,
	}
	records := append(e.records(ctx), record)
	if !e.Store.Set(ctx, storage.KeyRedeemedRewards, records) {
		if !e.Accounts.Credit(ctx, user, reward.Points) {
			// the stored balance may still be debited; memory must not be
			user.LoyaltyPoints += reward.Points
			l.Error("redeem_refund_failed", "user", user.Email, "points", reward.Points)
		}
		l.Error("redeem_log_failed", "user", user.Email)
		return nil, fmt.Errorf("append redemption: %w", domain.ErrStorageUnavailable)
	}

	l.Info("reward_redeemed", "user", user.Email, "points", reward.Points, "balance", user.LoyaltyPoints)
	return &record, nil
}

// History returns the user's redemptions, newest first, and the total count.
func (e *Engine) History(ctx context.Context, email string, page, size int) ([]models.Redemption, int) {
	all := e.records(ctx)
	mine := make([]models.Redemption, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].UserID == email {
			mine = append(mine, all[i])
		}
	}
	lo, hi := util.Window(len(mine), page, size)
	return mine[lo:hi], len(mine)
}

func (e *Engine) records(ctx context.Context) []models.Redemption {
	var records []models.Redemption
	if !e.Store.Get(ctx, storage.KeyRedeemedRewards, &records) {
		return nil
	}
	return records
}
