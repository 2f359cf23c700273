// Package events fans live simulator events out to stream subscribers.
package events

import (
	"sync"

	"github.com/vadiminshakov/dexsim/internal/domain"
)

const defaultBuffer = 64

// Broadcaster fans values out to all subscribers via buffered channels.
// A subscriber whose buffer is full misses the value.
type Broadcaster[T any] struct {
	mu     sync.RWMutex
	subs   map[chan T]struct{}
	buffer int
	onDrop func()
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer.
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	if buffer < 1 {
		buffer = defaultBuffer
	}
	return &Broadcaster[T]{
		subs:   make(map[chan T]struct{}),
		buffer: buffer,
	}
}

// OnDrop registers fn to be called for every dropped delivery.
func (b *Broadcaster[T]) OnDrop(fn func()) {
	b.mu.Lock()
	b.onDrop = fn
	b.mu.Unlock()
}

// Publish sends v to all subscribers, dropping if a reader is slow.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- v:
		default:
			if b.onDrop != nil {
				b.onDrop()
			}
		}
	}
}

// Subscribe returns a channel that receives values until Unsubscribe is called.
func (b *Broadcaster[T]) Subscribe() chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// PriceBroadcaster publishes oracle snapshots.
type PriceBroadcaster struct {
	*Broadcaster[domain.PriceSnapshot]
}

// NewPriceBroadcaster creates a price broadcaster with the given per-subscriber buffer.
func NewPriceBroadcaster(buffer int) *PriceBroadcaster {
	return &PriceBroadcaster{Broadcaster: NewBroadcaster[domain.PriceSnapshot](buffer)}
}

// OnPriceSnapshot publishes s.
func (b *PriceBroadcaster) OnPriceSnapshot(s domain.PriceSnapshot) {
	b.Publish(s)
}
