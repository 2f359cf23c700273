// Package amm implements constant-product pool pricing.
package amm

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dexsim/internal/domain"
)

// DefaultFeeRate is the 0.3% pool fee charged on the input side.
var DefaultFeeRate = decimal.RequireFromString("0.003")

var hundred = decimal.NewFromInt(100)

// Quote result of pricing a swap against a pool.
type Quote struct {
	AmountInAfterFee decimal.Decimal `json:"amount_in_after_fee"`
	AmountOut        decimal.Decimal `json:"amount_out"`
	FeePaid          decimal.Decimal `json:"fee_paid"`
	// PriceImpactPct is never negative.
	PriceImpactPct decimal.Decimal `json:"price_impact_pct"`
}

// IsZero reports whether the quote is the degenerate all-zero result.
func (q Quote) IsZero() bool {
	return q.AmountInAfterFee.IsZero() && q.AmountOut.IsZero() && q.FeePaid.IsZero() && q.PriceImpactPct.IsZero()
}

// Actionable reports whether executing the quote would deliver anything.
func (q Quote) Actionable() bool {
	return q.AmountOut.IsPositive()
}

// GetQuote prices amountIn against reserves using x*y=k.
// Non-positive amount or reserves yield a zero Quote rather than an error.
func GetQuote(reserveIn, reserveOut, amountIn, feeRate decimal.Decimal) Quote {
	return quote(reserveIn, reserveOut, amountIn, feeRate, domain.RoundAmount, domain.RoundAmount)
}

// Settle prices a swap that is about to be applied. It differs from GetQuote only in
// rounding: the input credited to the pool is rounded up and the output paid is
// rounded down, so reserveIn*reserveOut never shrinks. amountIn must already carry
// at most domain.AmountPlaces decimals for the credited input to stay within amountIn.
func Settle(reserveIn, reserveOut, amountIn, feeRate decimal.Decimal) Quote {
	return quote(reserveIn, reserveOut, amountIn, feeRate, domain.CeilAmount, domain.FloorAmount)
}

func quote(reserveIn, reserveOut, amountIn, feeRate decimal.Decimal, roundIn, roundOut func(decimal.Decimal) decimal.Decimal) Quote {
	if !amountIn.IsPositive() || !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return Quote{}
	}

	feePaid := amountIn.Mul(feeRate)
	amountInAfterFee := amountIn.Sub(feePaid)
	k := reserveIn.Mul(reserveOut)
	newReserveIn := reserveIn.Add(amountInAfterFee)
	amountOut := decimal.Max(decimal.Zero, reserveOut.Sub(k.Div(newReserveIn)))

	priceBefore := reserveOut.Div(reserveIn)
	priceAfter := reserveOut.Sub(amountOut).Div(newReserveIn)
	impact := decimal.Zero
	if priceAfter.IsPositive() {
		impact = decimal.Max(decimal.Zero, priceAfter.Sub(priceBefore).Div(priceBefore)).Mul(hundred)
	}

	return Quote{
		AmountInAfterFee: roundIn(amountInAfterFee),
		AmountOut:        roundOut(amountOut),
		FeePaid:          domain.RoundAmount(feePaid),
		PriceImpactPct:   impact.Round(domain.PercentPlaces),
	}
}

// SpotPrice returns how many reserveOut units one reserveIn unit is worth.
func SpotPrice(reserveIn, reserveOut decimal.Decimal) decimal.Decimal {
	if !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return decimal.Zero
	}
	return reserveOut.Div(reserveIn)
}

// QuotePool prices a swap through p in direction d.
func QuotePool(p domain.Pool, d domain.Direction, amountIn, feeRate decimal.Decimal) Quote {
	reserveIn, reserveOut := p.Sides(d)
	return GetQuote(reserveIn, reserveOut, amountIn, feeRate)
}

// SettlePool is Settle through p in direction d.
func SettlePool(p domain.Pool, d domain.Direction, amountIn, feeRate decimal.Decimal) Quote {
	reserveIn, reserveOut := p.Sides(d)
	return Settle(reserveIn, reserveOut, amountIn, feeRate)
}
