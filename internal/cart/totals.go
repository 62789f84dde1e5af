package cart

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/models"
)

const (
	FreeShippingThreshold int64 = 2000
	FlatShippingFee       int64 = 100
)

type Totals struct {
	Subtotal  int64 `json:"subtotal"`
	Shipping  int64 `json:"shipping"`
	Total     int64 `json:"total"`
	ItemCount int64 `json:"item_count"`
}

func ComputeTotals(items []models.CartItem) Totals {
	var t Totals
	for _, it := range items {
		t.Subtotal += it.LineTotal()
		t.ItemCount += it.Quantity
	}
	t.Shipping = ShippingFor(t.Subtotal)
	t.Total = t.Subtotal + t.Shipping
	return t
}

func ShippingFor(subtotal int64) int64 {
	if subtotal >= FreeShippingThreshold {
		return 0
	}
	return FlatShippingFee
}

// Fingerprint identifies the exact rows of a cart. Two carts with the same rows in the
// same order share a fingerprint.
func Fingerprint(items []models.CartItem) string {
	h := sha256.New()
	for _, it := range items {
		fmt.Fprintf(h, "%s|%s|%d|%d\n", it.ID, it.Name, it.Price, it.Quantity)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (l *Ledger) Fingerprint() string {
	return Fingerprint(l.items)
}
