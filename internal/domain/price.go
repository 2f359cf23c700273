package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSnapshot oracle prices of every asset at one instant.
type PriceSnapshot struct {
	Time   time.Time                  `json:"ts"`
	Prices map[Symbol]decimal.Decimal `json:"prices"`
}

// NewPriceSnapshot creates a snapshot owning a copy of prices.
func NewPriceSnapshot(ts time.Time, prices map[Symbol]decimal.Decimal) PriceSnapshot {
	cp := make(map[Symbol]decimal.Decimal, len(prices))
	for sym, p := range prices {
		cp[sym] = p
	}
	return PriceSnapshot{Time: ts, Prices: cp}
}

// Price returns the price of sym and whether it is usable.
func (s PriceSnapshot) Price(sym Symbol) (decimal.Decimal, bool) {
	p, ok := s.Prices[sym]
	if !ok || !p.IsPositive() {
		return decimal.Zero, false
	}
	return p, true
}

// PricePoint single price observation, T is unix milliseconds.
type PricePoint struct {
	T int64           `json:"t"`
	P decimal.Decimal `json:"p"`
}

// Candle OHLC summary of one symbol over one bucket starting at T (unix ms).
type Candle struct {
	T int64           `json:"t"`
	O decimal.Decimal `json:"o"`
	H decimal.Decimal `json:"h"`
	L decimal.Decimal `json:"l"`
	C decimal.Decimal `json:"c"`
}

// Bullish reports whether the candle closed at or above its open.
func (c Candle) Bullish() bool {
	return c.C.GreaterThanOrEqual(c.O)
}
