package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeKind kind of executed operation.
type TradeKind string

const (
	TradeKindMint TradeKind = "mint"
	TradeKindSwap TradeKind = "swap"
)

// TradeReceipt result of an executed mint or swap.
type TradeReceipt struct {
	ID             string          `json:"id"`
	Kind           TradeKind       `json:"kind"`
	From           Symbol          `json:"from"`
	To             Symbol          `json:"to"`
	AmountIn       decimal.Decimal `json:"amount_in"`
	AmountOut      decimal.Decimal `json:"amount_out"`
	Fee            decimal.Decimal `json:"fee"`
	PriceImpactPct decimal.Decimal `json:"price_impact_pct"`
	Price          decimal.Decimal `json:"price"`
	Time           time.Time       `json:"ts"`
}

// String returns a human-readable string representation.
func (r TradeReceipt) String() string {
	return fmt.Sprintf("%s %s %s -> %s %s", r.Kind, r.AmountIn.String(), r.From, r.AmountOut.String(), r.To)
}

// TradeReceiptRecord bundles a receipt with its journal index.
type TradeReceiptRecord struct {
	Index   uint64
	Receipt TradeReceipt
}
