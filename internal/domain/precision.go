package domain

import "github.com/shopspring/decimal"

// Precision used for every persisted monetary value.
const (
	AmountPlaces  int32 = 6
	PricePlaces   int32 = 2
	PercentPlaces int32 = 4
)

var (
	// MinPrice lower clamp for oracle prices.
	MinPrice = decimal.RequireFromString("0.01")
	// MaxPrice upper clamp for oracle prices.
	MaxPrice = decimal.NewFromInt(1_000_000)
)

// RoundAmount rounds a balance or reserve amount.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

// CeilAmount rounds an amount up to AmountPlaces.
func CeilAmount(d decimal.Decimal) decimal.Decimal {
	return d.RoundCeil(AmountPlaces)
}

// FloorAmount rounds an amount down to AmountPlaces.
func FloorAmount(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(AmountPlaces)
}

// HasAmountPrecision reports whether d carries no more than AmountPlaces decimals.
func HasAmountPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountPlaces))
}

// RoundPrice rounds an oracle price.
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(PricePlaces)
}

// ClampPrice bounds price to [MinPrice, MaxPrice].
func ClampPrice(price decimal.Decimal) decimal.Decimal {
	return decimal.Max(MinPrice, decimal.Min(MaxPrice, price))
}
