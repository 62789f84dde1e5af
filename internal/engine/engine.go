// Package engine is the command surface of the storefront. Every user action is one method;
// each runs under a single lock, so a redeem or a checkout commit is never observed half done.
// Outcomes meant for the user leave through the notification bus.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/domain"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/loyalty"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/notify"
	"github.com/Skotchmaster/storefront/internal/rewards"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/storage"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

type Options struct {
	Store    *storage.Store
	Signer   *tokens.Signer
	Catalog  *rewards.Catalog
	Index    rewards.Index
	Bus      *notify.Bus
	Recorder *notify.Recorder
}

type Engine struct {
	mu sync.Mutex

	session  *session.Session
	accounts *loyalty.Accounts
	auth     *auth.AuthService
	checkout *checkout.Orchestrator
	rewards  *rewards.Engine
	signer   *tokens.Signer
	index    rewards.Index
	fallback *rewards.MemoryIndex
	bus      *notify.Bus
	recorder *notify.Recorder
}

// State is the read model handed to the view after every command.
type State struct {
	User          *models.User      `json:"user"`
	Items         []models.CartItem `json:"items"`
	Totals        cart.Totals       `json:"totals"`
	CartCount     int64             `json:"cart_count"`
	PointsPreview int64             `json:"points_preview"`
}

type RedeemProposal struct {
	Reward    models.Reward `json:"reward"`
	Balance   int64         `json:"balance"`
	CanRedeem bool          `json:"can_redeem"`
	Handle    string        `json:"handle,omitempty"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
}

type RedemptionPage struct {
	Items []models.Redemption `json:"items"`
	Total int                 `json:"total"`
	Page  int                 `json:"page"`
	Size  int                 `json:"size"`
}

func New(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if opts.Signer == nil {
		return nil, errors.New("engine: signer is required")
	}
	if opts.Catalog == nil {
		c, err := rewards.DefaultCatalog()
		if err != nil {
			return nil, err
		}
		opts.Catalog = c
	}
	if opts.Bus == nil {
		opts.Bus = notify.NewBus()
	}
	if opts.Recorder == nil {
		opts.Recorder = notify.NewRecorder(0)
	}
	opts.Bus.Subscribe(opts.Recorder)

	accounts := &loyalty.Accounts{Store: opts.Store}
	e := &Engine{
		session:  session.Open(ctx, opts.Store, accounts),
		accounts: accounts,
		auth:     &auth.AuthService{Accounts: accounts},
		checkout: checkout.New(accounts, opts.Signer),
		rewards:  rewards.NewEngine(opts.Catalog, accounts, opts.Store),
		signer:   opts.Signer,
		index:    opts.Index,
		fallback: &rewards.MemoryIndex{},
		bus:      opts.Bus,
		recorder: opts.Recorder,
	}

	catalog := opts.Catalog.All()
	if err := e.fallback.Sync(ctx, catalog); err != nil {
		return nil, fmt.Errorf("engine: index catalog: %w", err)
	}
	if e.index != nil {
		if err := e.index.Sync(ctx, catalog); err != nil {
			logging.FromContext(ctx).Warn("reward_index_sync_failed", "error", err)
			e.index = nil
		}
	}
	return e, nil
}

func (e *Engine) State(ctx context.Context) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state()
}

func (e *Engine) Signup(ctx context.Context, name, email, password string) (*models.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, err := e.auth.Signup(ctx, name, email, password)
	if err != nil {
		e.fail(ctx, err)
		return nil, err
	}
	e.session.SetUser(u)
	e.bus.Success(ctx, notify.KindSignedUp, u.Email,
		fmt.Sprintf("Account created! Welcome, %s! Start shopping to earn loyalty points!", u.Name))
	return snapshot(u), nil
}

func (e *Engine) Login(ctx context.Context, email, password string) (*models.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, err := e.auth.Login(ctx, email, password)
	if err != nil {
		e.fail(ctx, err)
		return nil, err
	}
	e.session.SetUser(u)
	msg := fmt.Sprintf("Welcome back, %s!", u.Name)
	if u.LoyaltyPoints > 0 {
		msg += fmt.Sprintf(" You have %d loyalty points.", u.LoyaltyPoints)
	}
	e.bus.Success(ctx, notify.KindLoggedIn, u.Email, msg)
	return snapshot(u), nil
}

// Logout forgets the current user. The cart stays, as it belongs to the device.
func (e *Engine) Logout(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var email string
	if u := e.session.User(); u != nil {
		email = u.Email
	}
	if !e.auth.Logout(ctx) {
		logging.FromContext(ctx).Warn("logout_not_persisted", "user", email)
	}
	e.session.SetUser(nil)
	e.bus.Success(ctx, notify.KindLoggedOut, email, "Logged out successfully!")
}

func (e *Engine) AddItem(ctx context.Context, name string, price int64, image string) models.CartItem {
	e.mu.Lock()
	defer e.mu.Unlock()

	item := e.session.Ledger().Add(ctx, name, price, image)
	e.bus.Success(ctx, notify.KindItemAdded, e.userID(), fmt.Sprintf("%s added to cart!", name))
	return item
}

func (e *Engine) ChangeQuantity(ctx context.Context, index int, delta int64) (models.CartItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	item, err := e.session.Ledger().ChangeQuantity(ctx, index, delta)
	return e.quantityChanged(ctx, item, err)
}

func (e *Engine) ChangeQuantityByID(ctx context.Context, id uuid.UUID, delta int64) (models.CartItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	item, err := e.session.Ledger().ChangeQuantityByID(ctx, id, delta)
	return e.quantityChanged(ctx, item, err)
}

func (e *Engine) RemoveItem(ctx context.Context, index int) (models.CartItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	item, err := e.session.Ledger().Remove(ctx, index)
	return e.removed(ctx, item, err)
}

func (e *Engine) RemoveItemByID(ctx context.Context, id uuid.UUID) (models.CartItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	item, err := e.session.Ledger().RemoveByID(ctx, id)
	return e.removed(ctx, item, err)
}

func (e *Engine) Totals(ctx context.Context) cart.Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Ledger().Totals()
}

func (e *Engine) ProposeCheckout(ctx context.Context) (*checkout.Proposal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.checkout.Propose(ctx, e.session.User(), e.session.Ledger())
	if err != nil {
		if errors.Is(err, domain.ErrNotLoggedIn) {
			e.bus.Error(ctx, notify.KindNotLoggedIn, "", "Please login to checkout")
			return nil, err
		}
		e.fail(ctx, err)
		return nil, err
	}
	return p, nil
}

func (e *Engine) CommitCheckout(ctx context.Context, handle string) (*checkout.Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user := e.session.User()
	r, err := e.checkout.Commit(ctx, user, e.session.Ledger(), handle)
	if err != nil {
		if errors.Is(err, domain.ErrNotLoggedIn) {
			e.bus.Error(ctx, notify.KindNotLoggedIn, "", "Please login to checkout")
			return nil, err
		}
		e.fail(ctx, err)
		return nil, err
	}
	e.bus.Success(ctx, notify.KindOrderPlaced, user.Email,
		fmt.Sprintf("Order placed successfully! Order ID: %s", r.OrderID))
	e.bus.Info(ctx, notify.KindPointsEarned, user.Email,
		fmt.Sprintf("You earned %d loyalty points! Total: %d points", r.PointsEarned, r.Balance))
	return r, nil
}

func (e *Engine) CancelCheckout(ctx context.Context, handle string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkout.Cancel(handle); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("checkout_cancelled", "user", e.userID())
	return nil
}

func (e *Engine) Rewards(ctx context.Context) []rewards.Availability {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rewards.ListAvailable(e.session.User())
}

// ProposeRedeem previews a redemption. An unaffordable reward comes back with CanRedeem false
// and no handle.
func (e *Engine) ProposeRedeem(ctx context.Context, rewardID int) (*RedeemProposal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user := e.session.User()
	if user == nil {
		e.bus.Error(ctx, notify.KindNotLoggedIn, "", "Please login to access Rewards Store")
		return nil, domain.ErrNotLoggedIn
	}
	reward, ok := e.rewards.Catalog.Find(rewardID)
	if !ok {
		return nil, fmt.Errorf("reward %d: %w", rewardID, domain.ErrRewardNotFound)
	}

	p := &RedeemProposal{Reward: reward, Balance: user.LoyaltyPoints, CanRedeem: user.LoyaltyPoints >= reward.Points}
	if !p.CanRedeem {
		e.bus.Error(ctx, notify.KindInsufficientPoints, user.Email, "Not enough points!")
		return p, nil
	}

	handle, claims, err := e.signer.Sign(tokens.PendingClaims{
		Kind:             tokens.KindRedeem,
		RewardID:         reward.ID,
		Points:           reward.Points,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.Email},
	})
	if err != nil {
		return nil, err
	}
	exp := claims.ExpiresAt.Time
	p.Handle = handle
	p.ExpiresAt = &exp
	return p, nil
}

func (e *Engine) CommitRedeem(ctx context.Context, handle string) (*models.Redemption, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user := e.session.User()
	if user == nil {
		e.bus.Error(ctx, notify.KindNotLoggedIn, "", "Please login to access Rewards Store")
		return nil, domain.ErrNotLoggedIn
	}
	claims, err := e.signer.Consume(handle, tokens.KindRedeem)
	if err != nil {
		return nil, err
	}
	if claims.Subject != user.Email {
		return nil, fmt.Errorf("%w: handle belongs to another user", domain.ErrInvalidHandle)
	}

	rec, err := e.rewards.Redeem(ctx, user, claims.RewardID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientPoints):
			e.bus.Error(ctx, notify.KindInsufficientPoints, user.Email, "Not enough points!")
		case errors.Is(err, domain.ErrStorageUnavailable):
			e.bus.Error(ctx, notify.KindStorageUnavailable, user.Email, "Redemption failed. Please try again.")
		}
		return nil, err
	}
	e.bus.Success(ctx, notify.KindRewardRedeemed, user.Email, fmt.Sprintf("%s redeemed successfully!", rec.Name))
	return rec, nil
}

func (e *Engine) CancelRedeem(ctx context.Context, handle string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.signer.Revoke(handle); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("redeem_cancelled", "user", e.userID())
	return nil
}

func (e *Engine) Redemptions(ctx context.Context, page, size int) (*RedemptionPage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	user := e.session.User()
	if user == nil {
		return nil, domain.ErrNotLoggedIn
	}
	items, total := e.rewards.History(ctx, user.Email, page, size)
	if page < 1 {
		page = 1
	}
	return &RedemptionPage{Items: items, Total: total, Page: page, Size: len(items)}, nil
}

// SearchRewards queries the configured index and falls back to in-process matching when the
// index is missing or failing.
func (e *Engine) SearchRewards(ctx context.Context, query string, limit int) []rewards.Availability {
	e.mu.Lock()
	defer e.mu.Unlock()

	user := e.session.User()
	if e.index != nil {
		res, err := e.rewards.Search(ctx, e.index, user, query, limit)
		if err == nil {
			return res
		}
		logging.FromContext(ctx).Warn("reward_search_failed", "query", query, "error", err)
	}
	res, _ := e.rewards.Search(ctx, e.fallback, user, query, limit)
	return res
}

func (e *Engine) Notifications() []notify.Notification {
	return e.recorder.Drain()
}

func (e *Engine) state() State {
	ledger := e.session.Ledger()
	totals := ledger.Totals()
	return State{
		User:          snapshot(e.session.User()),
		Items:         ledger.Items(),
		Totals:        totals,
		CartCount:     ledger.Count(),
		PointsPreview: loyalty.PointsForAmount(totals.Total),
	}
}

func (e *Engine) quantityChanged(ctx context.Context, item models.CartItem, err error) (models.CartItem, error) {
	if err != nil {
		return models.CartItem{}, err
	}
	e.bus.Info(ctx, notify.KindQuantityChanged, e.userID(), fmt.Sprintf("%s quantity is now %d", item.Name, item.Quantity))
	return item, nil
}

func (e *Engine) removed(ctx context.Context, item models.CartItem, err error) (models.CartItem, error) {
	if err != nil {
		return models.CartItem{}, err
	}
	e.bus.Success(ctx, notify.KindItemRemoved, e.userID(), fmt.Sprintf("%s removed from cart", item.Name))
	return item, nil
}

// fail turns an expected failure into a notification for the user.
func (e *Engine) fail(ctx context.Context, err error) {
	uid := e.userID()
	switch {
	case errors.Is(err, auth.ErrValidation),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUserAlreadyExist):
		e.bus.Error(ctx, notify.KindValidationFailed, uid, validationMessage(err))
	case errors.Is(err, domain.ErrNotLoggedIn):
		e.bus.Error(ctx, notify.KindNotLoggedIn, uid, "Please login first")
	case errors.Is(err, domain.ErrEmptyCart):
		e.bus.Info(ctx, notify.KindValidationFailed, uid, "Your cart is empty")
	case errors.Is(err, domain.ErrStorageUnavailable):
		e.bus.Error(ctx, notify.KindStorageUnavailable, uid, "Could not save your changes. Please try again.")
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, auth.ErrUserAlreadyExist):
		return "An account with this email already exists"
	}
	return strings.TrimPrefix(err.Error(), auth.ErrValidation.Error()+": ")
}

func (e *Engine) userID() string {
	if u := e.session.User(); u != nil {
		return u.Email
	}
	return ""
}

func snapshot(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = ""
	return &c
}
