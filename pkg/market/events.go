package market

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventType discriminates marketplace notifications
type EventType string

const (
	EventOrderAdded     EventType = "OrderAdded"
	EventOrderCancelled EventType = "OrderCancelled"
	EventOrderExecuted  EventType = "OrderExecuted"
)

// Event is an outward notification emitted exactly once per successful
// state transition, never on a failed call. Consumed by observers and
// indexers via Engine.Subscribe.
type Event struct {
	ID        string    `json:"id"`   // Unique event ID
	Type      EventType `json:"type"` // "OrderAdded", "OrderCancelled", "OrderExecuted"
	Timestamp int64     `json:"timestamp"`

	OrderID uint64 `json:"orderId"`

	// Populated for OrderAdded and OrderExecuted
	AssetID      uint64         `json:"assetId,omitempty"`
	Seller       common.Address `json:"seller,omitempty"`
	Price        int64          `json:"price,omitempty"`
	PaymentToken common.Address `json:"paymentToken,omitempty"`

	// Populated for OrderExecuted only
	Buyer common.Address `json:"buyer,omitempty"`
}

func newOrderAddedEvent(o *Order) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         EventOrderAdded,
		Timestamp:    time.Now().UnixMilli(),
		OrderID:      o.ID,
		AssetID:      o.AssetID,
		Seller:       o.Seller,
		Price:        o.Price,
		PaymentToken: o.PaymentToken,
	}
}

func newOrderCancelledEvent(o *Order) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventOrderCancelled,
		Timestamp: time.Now().UnixMilli(),
		OrderID:   o.ID,
	}
}

func newOrderExecutedEvent(o *Order, buyer common.Address) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         EventOrderExecuted,
		Timestamp:    time.Now().UnixMilli(),
		OrderID:      o.ID,
		AssetID:      o.AssetID,
		Seller:       o.Seller,
		Price:        o.Price,
		PaymentToken: o.PaymentToken,
		Buyer:        buyer,
	}
}

// eventBus fans events out to subscribers. Sends never block the engine:
// a subscriber whose buffer is full misses the event.
type eventBus struct {
	mu   sync.RWMutex
	subs []chan Event
}

// Subscribe returns a buffered channel receiving all future events
func (b *eventBus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 64)
	b.subs = append(b.subs, ch)
	return ch
}

func (b *eventBus) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full, skip
		}
	}
}
