// Package events implements the Change Event Bus (spec §4.8): a per-store
// list of subscribers invoked synchronously, in registration order, on
// every store/folder/message lifecycle change.
package events

import (
	"sync"

	"github.com/hkdb/mailcache/internal/logging"
)

// Kind enumerates the lifecycle events the bus can carry.
type Kind string

const (
	FolderAdded      Kind = "FOLDER_ADDED"
	FolderRemoved    Kind = "FOLDER_REMOVED"
	FolderUpdated    Kind = "FOLDER_UPDATED"
	MessageAdded     Kind = "MESSAGE_ADDED"
	MessageRemoved   Kind = "MESSAGE_REMOVED"
	MessageUpdated   Kind = "MESSAGE_UPDATED"
	CacheModeChanged Kind = "CACHE_MODE_CHANGED"
	StoreOpened      Kind = "STORE_OPENED"
	StoreClosed      Kind = "STORE_CLOSED"
)

// Event is the (source, kind, item) triple delivered to every subscriber.
type Event struct {
	Source string // the account id of the originating Store
	Kind   Kind
	Item   any // folder path, message directory name, Mode, etc. — subscriber decides how to interpret it given Kind
}

// Subscriber receives events synchronously.
type Subscriber interface {
	OnEvent(Event)
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(Event)

func (f SubscriberFunc) OnEvent(e Event) { f(e) }

// Bus fans out events to subscribers in registration order. A panic from
// one subscriber is recovered so it never prevents the rest from being
// invoked.
type Bus struct {
	mu   sync.Mutex
	subs []Subscriber
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers s to receive future events. Returns an unsubscribe
// function.
func (b *Bus) Subscribe(s Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
	idx := len(b.subs) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.subs) && b.subs[idx] == s {
			b.subs[idx] = nil
		}
	}
}

// Publish delivers e to every live subscriber, in registration order. By
// the time Publish returns, every subscriber has been invoked (spec §5's
// synchronous-dispatch guarantee).
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	subs := make([]Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		if s != nil {
			dispatch(s, e)
		}
	}
}

func dispatch(s Subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.WithComponent("events").Warn().
				Interface("recovered", r).
				Str("kind", string(e.Kind)).
				Msg("event subscriber panicked, continuing with remaining subscribers")
		}
	}()
	s.OnEvent(e)
}
