// Package cart holds the cart ledger: one row per product name, quantities never below one.
package cart

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/Skotchmaster/storefront/internal/domain"
	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/storage"
)

type Ledger struct {
	store *storage.Store
	items []models.CartItem
}

// Load restores the ledger from the store. A missing or unreadable cart is an empty cart.
func Load(ctx context.Context, store *storage.Store) *Ledger {
	var items []models.CartItem
	if !store.Get(ctx, storage.KeyCartItems, &items) {
		items = nil
	}

	l := &Ledger{store: store}
	for _, it := range items {
		if it.Name == "" {
			continue
		}
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		if i := l.indexOfName(it.Name); i >= 0 {
			l.items[i].Quantity += it.Quantity
			continue
		}
		l.items = append(l.items, it)
	}
	return l
}

func (l *Ledger) Items() []models.CartItem {
	out := make([]models.CartItem, len(l.items))
	copy(out, l.items)
	return out
}

func (l *Ledger) Len() int {
	return len(l.items)
}

// Count is the number of units across all rows.
func (l *Ledger) Count() int64 {
	var n int64
	for _, it := range l.items {
		n += it.Quantity
	}
	return n
}

func (l *Ledger) Totals() Totals {
	return ComputeTotals(l.items)
}

// Add puts one unit of the named product into the cart. The price is taken as given.
func (l *Ledger) Add(ctx context.Context, name string, price int64, image string) models.CartItem {
	var item models.CartItem
	if i := l.indexOfName(name); i >= 0 {
		l.items[i].Quantity++
		item = l.items[i]
	} else {
		item = models.CartItem{
			ID:       uuid.New(),
			Name:     name,
			Price:    price,
			Image:    image,
			Quantity: 1,
		}
		l.items = append(l.items, item)
	}
	l.persist(ctx)
	return item
}

// ChangeQuantity adds delta to the row at index; the result never goes below one.
func (l *Ledger) ChangeQuantity(ctx context.Context, index int, delta int64) (models.CartItem, error) {
	if err := l.checkIndex(ctx, index); err != nil {
		return models.CartItem{}, err
	}
	return l.changeAt(ctx, index, delta), nil
}

func (l *Ledger) ChangeQuantityByID(ctx context.Context, id uuid.UUID, delta int64) (models.CartItem, error) {
	i := l.indexOfID(id)
	if i < 0 {
		return models.CartItem{}, fmt.Errorf("row %s: %w", id, domain.ErrItemNotFound)
	}
	return l.changeAt(ctx, i, delta), nil
}

func (l *Ledger) Remove(ctx context.Context, index int) (models.CartItem, error) {
	if err := l.checkIndex(ctx, index); err != nil {
		return models.CartItem{}, err
	}
	return l.removeAt(ctx, index), nil
}

func (l *Ledger) RemoveByID(ctx context.Context, id uuid.UUID) (models.CartItem, error) {
	i := l.indexOfID(id)
	if i < 0 {
		return models.CartItem{}, fmt.Errorf("row %s: %w", id, domain.ErrItemNotFound)
	}
	return l.removeAt(ctx, i), nil
}

// Clear empties the ledger and reports whether the empty cart was persisted.
func (l *Ledger) Clear(ctx context.Context) bool {
	l.items = nil
	return l.persist(ctx)
}

func (l *Ledger) changeAt(ctx context.Context, i int, delta int64) models.CartItem {
	q := l.items[i].Quantity + delta
	if delta > 0 && q < l.items[i].Quantity {
		q = math.MaxInt64
	}
	if q < 1 {
		q = 1
	}
	l.items[i].Quantity = q
	l.persist(ctx)
	return l.items[i]
}

func (l *Ledger) removeAt(ctx context.Context, i int) models.CartItem {
	item := l.items[i]
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.persist(ctx)
	return item
}

// checkIndex rejects indexes outside the current rows. An out-of-range index means the
// caller rendered a stale cart, so it is logged as a defect.
func (l *Ledger) checkIndex(ctx context.Context, index int) error {
	if index < 0 || index >= len(l.items) {
		logging.FromContext(ctx).Error("cart_invalid_index", "svc", "cart", "index", index, "rows", len(l.items))
		return fmt.Errorf("index %d of %d rows: %w", index, len(l.items), domain.ErrInvalidIndex)
	}
	return nil
}

func (l *Ledger) persist(ctx context.Context) bool {
	items := l.items
	if items == nil {
		items = []models.CartItem{}
	}
	if !l.store.Set(ctx, storage.KeyCartItems, items) {
		logging.FromContext(ctx).Warn("cart_persist_failed", "svc", "cart", "rows", len(items))
		return false
	}
	return true
}

func (l *Ledger) indexOfName(name string) int {
	for i := range l.items {
		if l.items[i].Name == name {
			return i
		}
	}
	return -1
}

func (l *Ledger) indexOfID(id uuid.UUID) int {
	for i := range l.items {
		if l.items[i].ID == id {
			return i
		}
	}
	return -1
}
