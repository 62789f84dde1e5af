// Package checkout turns a cart into an order: totals, loyalty accrual, then an empty cart.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/domain"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/loyalty"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

var ErrDeclined = errors.New("checkout declined")

type Proposal struct {
	Totals       cart.Totals `json:"totals"`
	PointsEarned int64       `json:"points_earned"`
	Handle       string      `json:"handle"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

type Receipt struct {
	OrderID      string      `json:"order_id"`
	PointsEarned int64       `json:"points_earned"`
	Balance      int64       `json:"balance"`
	Totals       cart.Totals `json:"totals"`
}

type Orchestrator struct {
	Accounts *loyalty.Accounts
	Signer   *tokens.Signer
	IDs      *OrderIDs
}

func New(accounts *loyalty.Accounts, signer *tokens.Signer) *Orchestrator {
	return &Orchestrator{Accounts: accounts, Signer: signer, IDs: NewOrderIDs()}
}

// Propose previews the order. Nothing is written; the returned handle is what Commit needs.
func (o *Orchestrator) Propose(ctx context.Context, user *models.User, ledger *cart.Ledger) (*Proposal, error) {
	if user == nil {
		return nil, domain.ErrNotLoggedIn
	}
	if ledger.Len() == 0 {
		return nil, domain.ErrEmptyCart
	}

	totals := ledger.Totals()
	points := loyalty.PointsForAmount(totals.Total)

	handle, claims, err := o.Signer.Sign(tokens.PendingClaims{
		Kind:             tokens.KindCheckout,
		Fingerprint:      ledger.Fingerprint(),
		Amount:           totals.Total,
		Points:           points,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.Email},
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Info("checkout_proposed", "svc", "checkout.propose", "user", user.Email, "total", totals.Total, "points", points)
	return &Proposal{
		Totals:       totals,
		PointsEarned: points,
		Handle:       handle,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

// Commit credits the points and clears the cart. The cart is only cleared once the credit
// has been saved.
func (o *Orchestrator) Commit(ctx context.Context, user *models.User, ledger *cart.Ledger, handle string) (*Receipt, error) {
	l := logging.FromContext(ctx).With("svc", "checkout.commit")

	if user == nil {
		return nil, domain.ErrNotLoggedIn
	}
	claims, err := o.Signer.Consume(handle, tokens.KindCheckout)
	if err != nil {
		return nil, err
	}
	if claims.Subject != user.Email {
		return nil, fmt.Errorf("%w: handle belongs to another user", domain.ErrInvalidHandle)
	}
	if claims.Fingerprint != ledger.Fingerprint() {
		return nil, domain.ErrStaleProposal
	}

	totals := ledger.Totals()
	points := loyalty.PointsForAmount(totals.Total)
	if !o.Accounts.Credit(ctx, user, points) {
		l.Error("checkout_credit_failed", "user", user.Email, "points", points)
		return nil, fmt.Errorf("credit %d points: %w", points, domain.ErrStorageUnavailable)
	}

	orderID := o.IDs.Next()
	if !ledger.Clear(ctx) {
		l.Warn("checkout_cart_clear_not_persisted", "order_id", orderID)
	}

	l.Info("order_placed", "user", user.Email, "order_id", orderID, "total", totals.Total, "points", points, "balance", user.LoyaltyPoints)
	return &Receipt{
		OrderID:      orderID,
		PointsEarned: points,
		Balance:      user.LoyaltyPoints,
		Totals:       totals,
	}, nil
}

func (o *Orchestrator) Cancel(handle string) error {
	return o.Signer.Revoke(handle)
}

// Checkout runs propose and commit back to back, asking confirm in between. A false from
// confirm cancels the proposal and returns ErrDeclined with the cart untouched.
func (o *Orchestrator) Checkout(ctx context.Context, user *models.User, ledger *cart.Ledger, confirm func(Proposal) bool) (*Receipt, error) {
	p, err := o.Propose(ctx, user, ledger)
	if err != nil {
		return nil, err
	}
	if !confirm(*p) {
		if err := o.Cancel(p.Handle); err != nil {
			return nil, err
		}
		return nil, ErrDeclined
	}
	return o.Commit(ctx, user, ledger, p.Handle)
}
