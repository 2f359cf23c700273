package events

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/dexsim/internal/domain"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster[int](4)
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish(7)

	assert.Equal(t, 7, <-a)
	assert.Equal(t, 7, <-c)
	assert.Equal(t, 2, b.Subscribers())
}

func TestBroadcaster_DropsSlowSubscriber(t *testing.T) {
	b := NewBroadcaster[int](1)
	drops := 0
	b.OnDrop(func() { drops++ })
	ch := b.Subscribe()

	b.Publish(1)
	b.Publish(2)

	assert.Equal(t, 1, <-ch)
	assert.Equal(t, 1, drops)
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %d", v)
	default:
	}
}

func TestBroadcaster_UnsubscribeClosesOnce(t *testing.T) {
	b := NewBroadcaster[int](0)
	ch := b.Subscribe()

	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, b.Subscribers())
	assert.NotPanics(t, func() { b.Publish(1) })
}

func TestPriceBroadcaster_ActsAsSink(t *testing.T) {
	b := NewPriceBroadcaster(2)
	ch := b.Subscribe()
	s := domain.NewPriceSnapshot(time.UnixMilli(5), map[domain.Symbol]decimal.Decimal{
		domain.TLSA: decimal.NewFromInt(120),
	})

	b.OnPriceSnapshot(s)

	got := <-ch
	require.Contains(t, got.Prices, domain.TLSA)
	assert.True(t, got.Prices[domain.TLSA].Equal(decimal.NewFromInt(120)))
}
