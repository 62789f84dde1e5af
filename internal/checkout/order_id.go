package checkout

import (
	"strconv"
	"sync"
	"time"
)

const OrderPrefix = "ECHO"

// OrderIDs hands out "ECHO<unix millis>" ids. Ids strictly increase within a process even
// when two orders land in the same millisecond.
type OrderIDs struct {
	Prefix string
	Now    func() time.Time

	mu   sync.Mutex
	last int64
}

func NewOrderIDs() *OrderIDs {
	return &OrderIDs{Prefix: OrderPrefix, Now: time.Now}
}

func (g *OrderIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.Now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return g.Prefix + strconv.FormatInt(ms, 10)
}
