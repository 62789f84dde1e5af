package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/storefront/internal/storage"
)

func configurePool(sqlDB *sql.DB) {
	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

// InitDB opens the SQL database behind the key-value store.
func (c *Config) InitDB(ctx context.Context) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	var dialector gorm.Dialector
	switch c.StoreDriver {
	case DriverSQLite:
		dialector = sqlite.Open(c.StoreDSN)
	case DriverPostgres:
		dialector = postgres.New(postgres.Config{DriverName: "postgres", DSN: c.StoreDSN})
	default:
		return nil, fmt.Errorf("driver %q has no database", c.StoreDriver)
	}

	db, err := gorm.Open(dialector, gcfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if c.StoreDriver == DriverSQLite {
		// one writer at a time, and a :memory: database lives on a single connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		configurePool(sqlDB)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// OpenBackend returns the storage backend selected by STORE_DRIVER and a close func.
func (c *Config) OpenBackend(ctx context.Context) (storage.Backend, func() error, error) {
	if c.StoreDriver == DriverMemory {
		return storage.NewMemoryBackend(), func() error { return nil }, nil
	}

	db, err := c.InitDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	b, err := storage.NewGormBackend(db)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("migrate store: %w", err)
	}
	return b, sqlDB.Close, nil
}
