package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormBackend struct {
	DB *gorm.DB
}

func NewGormBackend(db *gorm.DB) (*GormBackend, error) {
	if err := db.AutoMigrate(&models.KVEntry{}); err != nil {
		return nil, fmt.Errorf("migrate kv_entries: %w", err)
	}
	return &GormBackend{DB: db}, nil
}

func (r *GormBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var entry models.KVEntry
	if err := r.DB.WithContext(ctx).Where("store_key = ?", key).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry.Value, nil
}

func (r *GormBackend) Set(ctx context.Context, key string, value []byte) error {
	entry := models.KVEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (r *GormBackend) Remove(ctx context.Context, key string) error {
	return r.DB.WithContext(ctx).Where("store_key = ?", key).Delete(&models.KVEntry{}).Error
}
