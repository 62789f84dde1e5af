package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	LoyaltyPoints int64  `json:"loyaltyPoints"`
	PasswordHash  string `json:"passwordHash,omitempty"`
}

type CartItem struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Price    int64     `json:"price"`
	Image    string    `json:"img"`
	Quantity int64     `json:"quantity"`
}

// LineTotal is price times quantity.
func (i CartItem) LineTotal() int64 {
	return i.Price * i.Quantity
}

type RewardType string

const (
	RewardVoucher    RewardType = "voucher"
	RewardBenefit    RewardType = "benefit"
	RewardMembership RewardType = "membership"
	RewardGift       RewardType = "gift"
)

func (t RewardType) Valid() bool {
	switch t {
	case RewardVoucher, RewardBenefit, RewardMembership, RewardGift:
		return true
	default:
		return false
	}
}

type Reward struct {
	ID     int        `json:"id"     yaml:"id"`
	Name   string     `json:"name"   yaml:"name"`
	Points int64      `json:"points" yaml:"points"`
	Type   RewardType `json:"type"   yaml:"type"`
	Value  int64      `json:"value,omitempty" yaml:"value"`
	Icon   string     `json:"icon"   yaml:"icon"`
}

// Redemption is an append-only snapshot of a redeemed reward.
type Redemption struct {
	Reward
	RedeemedAt time.Time `json:"redeemedAt"`
	UserID     string    `json:"userId"`
}

type KVEntry struct {
	Key       string    `gorm:"column:store_key;primaryKey;size:255" json:"key"`
	Value     []byte    `gorm:"not null"                            json:"value"`
	UpdatedAt time.Time `gorm:"not null"                            json:"updated_at"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
