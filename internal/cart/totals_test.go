package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Skotchmaster/storefront/internal/models"
)

func TestComputeTotals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		items []models.CartItem
		want  Totals
	}{
		{
			name: "empty cart pays flat shipping",
			want: Totals{Subtotal: 0, Shipping: 100, Total: 100},
		},
		{
			name:  "just under the threshold",
			items: []models.CartItem{{Name: "a", Price: 1999, Quantity: 1}},
			want:  Totals{Subtotal: 1999, Shipping: 100, Total: 2099, ItemCount: 1},
		},
		{
			name:  "exactly at the threshold ships free",
			items: []models.CartItem{{Name: "a", Price: 1000, Quantity: 2}},
			want:  Totals{Subtotal: 2000, Shipping: 0, Total: 2000, ItemCount: 2},
		},
		{
			name: "several rows",
			items: []models.CartItem{
				{Name: "a", Price: 1500, Quantity: 2},
				{Name: "b", Price: 250, Quantity: 3},
			},
			want: Totals{Subtotal: 3750, Shipping: 0, Total: 3750, ItemCount: 5},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ComputeTotals(tt.items))
		})
	}
}

func TestLedger_TotalsIsPure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, _ := newTestLedger(t)
	l.Add(ctx, "Watch", 700, "")
	l.Add(ctx, "Watch", 700, "")

	before := l.Items()
	first := l.Totals()
	second := l.Totals()

	assert.Equal(t, first, second)
	assert.Equal(t, before, l.Items())
	assert.Equal(t, Totals{Subtotal: 1400, Shipping: 100, Total: 1500, ItemCount: 2}, first)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, _ := newTestLedger(t)
	l.Add(ctx, "Watch", 700, "")
	fp := l.Fingerprint()

	assert.Equal(t, fp, Fingerprint(l.Items()))

	l.Add(ctx, "Watch", 700, "")
	assert.NotEqual(t, fp, l.Fingerprint())
}
