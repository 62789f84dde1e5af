package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

func InitTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// every new connection to :memory: is a new database
	sqlDB.SetMaxOpenConns(1)
	return db
}

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}
func (failingBackend) Set(context.Context, string, []byte) error { return errors.New("disk on fire") }
func (failingBackend) Remove(context.Context, string) error      { return errors.New("disk on fire") }

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backends := map[string]Backend{
		"memory": NewMemoryBackend(),
	}
	gb, err := NewGormBackend(InitTestDB(t))
	require.NoError(t, err)
	backends["gorm"] = gb

	for name, b := range backends {
		b := b
		t.Run(name, func(t *testing.T) {
			s := New(b)
			user := models.User{Name: "ann", Email: "ann@example.com", LoyaltyPoints: 42}

			require.True(t, s.Set(ctx, UserKey(user.Email), user))

			var got models.User
			require.True(t, s.Get(ctx, "user_ann@example.com", &got))
			assert.Equal(t, user, got)

			user.LoyaltyPoints = 7
			require.True(t, s.Set(ctx, UserKey(user.Email), user))
			require.True(t, s.Get(ctx, UserKey(user.Email), &got))
			assert.Equal(t, int64(7), got.LoyaltyPoints)

			require.True(t, s.Remove(ctx, UserKey(user.Email)))
			var gone models.User
			assert.False(t, s.Get(ctx, UserKey(user.Email), &gone))
			assert.True(t, s.Remove(ctx, UserKey(user.Email)), "removing an absent key succeeds")
		})
	}
}

func TestStore_CorruptedValueReadsAsAbsent(t *testing.T) {
	t.Parallel()

	b := NewMemoryBackend()
	b.Raw(KeyCartItems, []byte("{not json"))
	s := New(b)

	var items []models.CartItem
	assert.False(t, s.Get(context.Background(), KeyCartItems, &items))
	assert.Empty(t, items)
}

func TestStore_NullValueReadsAsAbsent(t *testing.T) {
	t.Parallel()

	b := NewMemoryBackend()
	b.Raw(KeyCurrentUser, []byte("null"))
	s := New(b)

	var u models.User
	assert.False(t, s.Get(context.Background(), KeyCurrentUser, &u))
}

func TestStore_BackendFailuresAreAbsorbed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(failingBackend{})

	var u models.User
	assert.False(t, s.Get(ctx, KeyCurrentUser, &u))
	assert.False(t, s.Set(ctx, KeyCurrentUser, models.User{Email: "a@b.co"}))
	assert.False(t, s.Remove(ctx, KeyCurrentUser))
}

func TestStore_UnmarshalableValue(t *testing.T) {
	t.Parallel()

	s := New(NewMemoryBackend())
	assert.False(t, s.Set(context.Background(), "bad", make(chan int)))
}

func TestMemoryBackend_Quota(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := NewMemoryBackend()
	b.Quota = 16

	require.NoError(t, b.Set(ctx, "k", []byte("0123456789")))
	err := b.Set(ctx, "other", []byte("0123456789"))
	require.ErrorIs(t, err, ErrQuotaExceeded)

	// overwriting the same key accounts for the freed bytes
	require.NoError(t, b.Set(ctx, "k", []byte("abcdefghij")))
	require.NoError(t, b.Remove(ctx, "k"))
	require.NoError(t, b.Set(ctx, "other", []byte("0123456789")))

	s := New(b)
	assert.False(t, s.Set(ctx, "big", "this value is definitely over the quota"))
}

func TestMemoryBackend_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.Set(ctx, "k", []byte("abc")))

	v, err := b.Get(ctx, "k")
	require.NoError(t, err)
	v[0] = 'z'

	again, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))

	_, err = b.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
