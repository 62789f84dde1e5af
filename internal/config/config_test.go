package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/storage"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("HANDLE_SECRET", "s3cret")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "storefront.db", cfg.StoreDSN)
	assert.Equal(t, 5*time.Minute, cfg.HandleTTL)
	assert.Equal(t, "storefront_events", cfg.KafkaTopic)
	assert.False(t, cfg.KafkaEnabled())
	assert.False(t, cfg.SearchEnabled())
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("HANDLE_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("HANDLE_TTL", "90s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ES_URL", "http://es:9200")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 90*time.Second, cfg.HandleTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.True(t, cfg.SearchEnabled())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{}},
		{name: "bad port", env: map[string]string{"HANDLE_SECRET": "x", "SERVER_PORT": "not-a-port"}},
		{name: "port out of range", env: map[string]string{"HANDLE_SECRET": "x", "SERVER_PORT": "70000"}},
		{name: "unknown driver", env: map[string]string{"HANDLE_SECRET": "x", "STORE_DRIVER": "redis"}},
		{name: "non positive ttl", env: map[string]string{"HANDLE_SECRET": "x", "HANDLE_TTL": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HANDLE_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}

func TestOpenBackend_Memory(t *testing.T) {
	t.Parallel()

	cfg := &Config{StoreDriver: DriverMemory}
	b, closeFn, err := cfg.OpenBackend(context.Background())
	require.NoError(t, err)
	defer closeFn()

	_, ok := b.(*storage.MemoryBackend)
	assert.True(t, ok)
}

func TestOpenBackend_SQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := &Config{StoreDriver: DriverSQLite, StoreDSN: ":memory:"}
	b, closeFn, err := cfg.OpenBackend(ctx)
	require.NoError(t, err)
	defer closeFn()

	store := storage.New(b)
	require.True(t, store.Set(ctx, storage.KeyCartItems, []string{"x"}))
	var out []string
	require.True(t, store.Get(ctx, storage.KeyCartItems, &out))
	assert.Equal(t, []string{"x"}, out)
}

func TestInitDB_MemoryDriverHasNoDatabase(t *testing.T) {
	t.Parallel()

	_, err := (&Config{StoreDriver: DriverMemory}).InitDB(context.Background())
	assert.Error(t, err)
}
