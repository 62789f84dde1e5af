package checkout

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/domain"
	"github.com/Skotchmaster/storefront/internal/loyalty"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/storage"
	"github.com/Skotchmaster/storefront/internal/tokens"
)

type testEnv struct {
	store   *storage.Store
	backend *storage.MemoryBackend
	ledger  *cart.Ledger
	orch    *Orchestrator
	user    *models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	b := storage.NewMemoryBackend()
	store := storage.New(b)
	accounts := &loyalty.Accounts{Store: store}
	user := &models.User{Name: "newbie", Email: "newbie@example.com"}
	require.True(t, accounts.Save(ctx, user))

	return &testEnv{
		store:   store,
		backend: b,
		ledger:  cart.Load(ctx, store),
		orch:    New(accounts, tokens.NewSigner([]byte("test-secret"), time.Minute)),
		user:    user,
	}
}

func TestCheckout_EndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.ledger.Add(ctx, "Headphones", 1500, "h.png")
	env.ledger.Add(ctx, "Headphones", 1500, "h.png")

	p, err := env.orch.Propose(ctx, env.user, env.ledger)
	require.NoError(t, err)
	assert.Equal(t, cart.Totals{Subtotal: 3000, Shipping: 0, Total: 3000, ItemCount: 2}, p.Totals)
	assert.Equal(t, int64(30), p.PointsEarned)
	assert.Equal(t, int64(0), env.user.LoyaltyPoints, "proposing writes nothing")
	assert.Equal(t, 1, env.ledger.Len())

	r, err := env.orch.Commit(ctx, env.user, env.ledger, p.Handle)
	require.NoError(t, err)
	assert.Equal(t, int64(30), r.PointsEarned)
	assert.Equal(t, int64(30), r.Balance)
	assert.True(t, strings.HasPrefix(r.OrderID, OrderPrefix))
	assert.Equal(t, 0, env.ledger.Len())
	assert.Equal(t, 0, cart.Load(ctx, env.store).Len())

	accounts := &loyalty.Accounts{Store: env.store}
	stored, ok := accounts.Lookup(ctx, env.user.Email)
	require.True(t, ok)
	assert.Equal(t, int64(30), stored.LoyaltyPoints)
}

func TestCheckout_NotLoggedInLeavesCart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.ledger.Add(ctx, "Watch", 500, "")

	_, err := env.orch.Propose(ctx, nil, env.ledger)
	assert.ErrorIs(t, err, domain.ErrNotLoggedIn)

	_, err = env.orch.Commit(ctx, nil, env.ledger, "whatever")
	assert.ErrorIs(t, err, domain.ErrNotLoggedIn)

	assert.Equal(t, 1, env.ledger.Len())
}

func TestCheckout_EmptyCart(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	_, err := env.orch.Propose(context.Background(), env.user, env.ledger)
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestCheckout_SmallOrderPaysShipping(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.ledger.Add(ctx, "Cable", 150, "")

	r, err := env.orch.Checkout(ctx, env.user, env.ledger, func(Proposal) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, int64(250), r.Totals.Total)
	assert.Equal(t, int64(2), r.PointsEarned)
}

func TestCheckout_StaleProposal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.ledger.Add(ctx, "Watch", 500, "")

	p, err := env.orch.Propose(ctx, env.user, env.ledger)
	require.NoError(t, err)

	env.ledger.Add(ctx, "Watch", 500, "")

	_, err = env.orch.Commit(ctx, env.user, env.ledger, p.Handle)
	assert.ErrorIs(t, err, domain.ErrStaleProposal)
	assert.Equal(t, int64(0), env.user.LoyaltyPoints)
	assert.Equal(t, int64(2), env.ledger.Count())
}

func TestCheckout_HandleIsSingleUseAndCancellable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.ledger.Add(ctx, "Watch", 500, "")

	p, err := env.orch.Propose(ctx, env.user, env.ledger)
	require.NoError(t, err)
	require.NoError(t, env.orch.Cancel(p.Handle))

	_, err = env.orch.Commit(ctx, env.user, env.ledger, p.Handle)
	assert.ErrorIs(t, err, domain.ErrInvalidHandle)
	assert.Equal(t, 1, env.ledger.Len())

	p, err = env.orch.Propose(ctx, env.user, env.ledger)
	require.NoError(t, err)
	_, err = env.orch.Commit(ctx, env.user, env.ledger, p.Handle)
	require.NoError(t, err)

	_, err = env.orch.Commit(ctx, env.user, env.ledger, p.Handle)
	assert.ErrorIs(t, err, domain.ErrInvalidHandle)
}

func TestCheckout_HandleBoundToUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.ledger.Add(ctx, "Watch", 500, "")

	p, err := env.orch.Propose(ctx, env.user, env.ledger)
	require.NoError(t, err)

	other := &models.User{Email: "other@example.com"}
	_, err = env.orch.Commit(ctx, other, env.ledger, p.Handle)
	assert.ErrorIs(t, err, domain.ErrInvalidHandle)
	assert.Equal(t, int64(0), other.LoyaltyPoints)
}

func TestCheckout_Declined(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.ledger.Add(ctx, "Watch", 500, "")

	r, err := env.orch.Checkout(ctx, env.user, env.ledger, func(Proposal) bool { return false })
	assert.ErrorIs(t, err, ErrDeclined)
	assert.Nil(t, r)
	assert.Equal(t, 1, env.ledger.Len())
	assert.Equal(t, int64(0), env.user.LoyaltyPoints)
}

func TestCheckout_CreditFailureKeepsCart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.ledger.Add(ctx, "Watch", 2500, "")

	p, err := env.orch.Propose(ctx, env.user, env.ledger)
	require.NoError(t, err)

	env.backend.Quota = 1
	_, err = env.orch.Commit(ctx, env.user, env.ledger, p.Handle)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Equal(t, int64(0), env.user.LoyaltyPoints)
	assert.Equal(t, 1, env.ledger.Len())
}

func TestOrderIDs_UniqueWithinOneMillisecond(t *testing.T) {
	t.Parallel()

	g := NewOrderIDs()
	frozen := time.UnixMilli(1_700_000_000_000)
	g.Now = func() time.Time { return frozen }

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := g.Next()
		assert.False(t, seen[id], id)
		seen[id] = true
	}
	assert.True(t, seen["ECHO1700000000000"])
	assert.True(t, seen["ECHO1700000000099"])
}
