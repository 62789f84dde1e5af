package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/loyalty"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/storage"
)

func TestOpen_Empty(t *testing.T) {
	t.Parallel()

	store := storage.New(storage.NewMemoryBackend())
	s := Open(context.Background(), store, &loyalty.Accounts{Store: store})

	assert.False(t, s.LoggedIn())
	assert.Nil(t, s.User())
	assert.Equal(t, 0, s.Ledger().Len())
}

func TestOpen_RestoresUserAndCart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.New(storage.NewMemoryBackend())
	accounts := &loyalty.Accounts{Store: store}
	require.True(t, accounts.Save(ctx, &models.User{Name: "Ann", Email: "ann@example.com", LoyaltyPoints: 7}))
	require.True(t, store.Set(ctx, storage.KeyCartItems, []models.CartItem{
		{Name: "Mug", Price: 300, Quantity: 2},
	}))

	s := Open(ctx, store, accounts)
	require.True(t, s.LoggedIn())
	assert.Equal(t, int64(7), s.User().LoyaltyPoints)
	assert.Equal(t, int64(2), s.Ledger().Count())

	s.SetUser(nil)
	assert.False(t, s.LoggedIn())
}
