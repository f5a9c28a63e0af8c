package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/indianamx/buenfinbot/internal/ledger"
)

// Event is the payload published to SSE subscribers watching the
// campaign dashboard.
type Event struct {
	Type   string   `json:"type"`
	Phone  string   `json:"telefono,omitempty"`
	Store  string   `json:"tienda,omitempty"`
	Prize  string   `json:"premio,omitempty"`
	Amount *float64 `json:"monto,omitempty"`
}

// Broker is an in-process pub/sub for campaign events. There is a single
// topic: every subscriber sees every submission and prize assignment.
type Broker struct {
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Publish sends an event to all subscribers.
func (b *Broker) Publish(event Event) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

// EventLedger decorates a ledger store so writes also reach the broker.
// Wrapping the store the conversation engine writes through puts bot
// submissions on the SSE feed without the engine knowing about HTTP.
type EventLedger struct {
	ledger.Store
	broker *Broker
}

func NewEventLedger(inner ledger.Store, broker *Broker) *EventLedger {
	return &EventLedger{Store: inner, broker: broker}
}

func (l *EventLedger) Append(ctx context.Context, sub *ledger.Submission) error {
	if err := l.Store.Append(ctx, sub); err != nil {
		return err
	}
	l.broker.Publish(Event{
		Type:   "submission",
		Phone:  sub.Phone,
		Store:  sub.Store,
		Prize:  sub.Prize,
		Amount: sub.Amount,
	})
	return nil
}

func (l *EventLedger) AssignPrize(ctx context.Context, phone, prize string, amount float64) error {
	if err := l.Store.AssignPrize(ctx, phone, prize, amount); err != nil {
		return err
	}
	l.broker.Publish(Event{
		Type:   "assignment",
		Phone:  phone,
		Prize:  prize,
		Amount: &amount,
	})
	return nil
}
