// Package notify carries user-facing notifications out of the engine. The engine never
// reaches into the view: it publishes, and whoever renders subscribes.
package notify

import (
	"context"
	"sync"
	"time"
)

type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityError   Severity = "error"
)

type Kind string

const (
	KindItemAdded          Kind = "item_added"
	KindItemRemoved        Kind = "item_removed"
	KindQuantityChanged    Kind = "quantity_changed"
	KindOrderPlaced        Kind = "order_placed"
	KindPointsEarned       Kind = "points_earned"
	KindRewardRedeemed     Kind = "reward_redeemed"
	KindInsufficientPoints Kind = "insufficient_points"
	KindNotLoggedIn        Kind = "not_logged_in"
	KindLoggedIn           Kind = "logged_in"
	KindSignedUp           Kind = "signed_up"
	KindLoggedOut          Kind = "logged_out"
	KindValidationFailed   Kind = "validation_failed"
	KindStorageUnavailable Kind = "storage_unavailable"
)

type Notification struct {
	Kind     Kind      `json:"kind"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	UserID   string    `json:"user_id,omitempty"`
	At       time.Time `json:"at"`
}

type Subscriber interface {
	Notify(ctx context.Context, n Notification)
}

type SubscriberFunc func(ctx context.Context, n Notification)

func (f SubscriberFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

type Bus struct {
	mu   sync.RWMutex
	subs []Subscriber
	Now  func() time.Time
}

func NewBus() *Bus {
	return &Bus{Now: time.Now}
}

func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

// Publish delivers n to every subscriber in subscription order.
func (b *Bus) Publish(ctx context.Context, n Notification) {
	if n.At.IsZero() {
		n.At = b.Now().UTC()
	}
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.Notify(ctx, n)
	}
}

func (b *Bus) Success(ctx context.Context, kind Kind, userID, msg string) {
	b.Publish(ctx, Notification{Kind: kind, Message: msg, Severity: SeveritySuccess, UserID: userID})
}

func (b *Bus) Info(ctx context.Context, kind Kind, userID, msg string) {
	b.Publish(ctx, Notification{Kind: kind, Message: msg, Severity: SeverityInfo, UserID: userID})
}

func (b *Bus) Error(ctx context.Context, kind Kind, userID, msg string) {
	b.Publish(ctx, Notification{Kind: kind, Message: msg, Severity: SeverityError, UserID: userID})
}

// Recorder keeps the most recent notifications until the view drains them.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 50
	}
	return &Recorder{limit: limit}
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	if len(r.items) > r.limit {
		r.items = r.items[len(r.items)-r.limit:]
	}
}

func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	if out == nil {
		return []Notification{}
	}
	return out
}
