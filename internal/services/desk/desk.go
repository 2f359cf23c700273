// Package desk executes mints and swaps against the balance and pool ledgers.
package desk

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dexsim/internal/amm"
	"github.com/vadiminshakov/dexsim/internal/domain"
	"github.com/vadiminshakov/dexsim/internal/metrics"
	"github.com/vadiminshakov/dexsim/internal/services/balance"
	"github.com/vadiminshakov/dexsim/internal/services/pool"
	"github.com/vadiminshakov/dexsim/pkg/retrier"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedPair   = errors.New("unsupported pair")
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrPrecision         = errors.New("amount has more than 6 decimal places")
	ErrNotAsset          = errors.New("mint target must be an asset")
	ErrMissingPrice      = errors.New("no oracle price")
	ErrZeroOutput        = errors.New("trade yields nothing")
)

// PriceSource provides the current oracle price of an asset.
type PriceSource interface {
	Price(asset domain.Symbol) (decimal.Decimal, bool)
}

// Journal records executed trades.
type Journal interface {
	Save(r domain.TradeReceipt) (uint64, error)
}

// Option configures the Desk.
type Option func(*Desk)

// WithFeeRate overrides the pool fee rate.
func WithFeeRate(rate decimal.Decimal) Option {
	return func(d *Desk) {
		if !rate.IsNegative() && rate.LessThan(decimal.NewFromInt(1)) {
			d.feeRate = rate
		}
	}
}

// WithJournal records every executed trade in j.
func WithJournal(j Journal) Option {
	return func(d *Desk) {
		d.journal = j
	}
}

// WithRetrier replaces the backoff used for journal writes.
func WithRetrier(r *retrier.Retrier) Option {
	return func(d *Desk) {
		if r != nil {
			d.retrier = r
		}
	}
}

// WithMetrics reports trades and rejections to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Desk) {
		d.metrics = m
	}
}

// WithClock replaces time.Now for receipt timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Desk) {
		if now != nil {
			d.now = now
		}
	}
}

// Desk serialises quote-then-apply so concurrent trades never price against stale reserves.
type Desk struct {
	mu       sync.Mutex
	logger   *zap.Logger
	balances *balance.Ledger
	pools    *pool.Ledger
	prices   PriceSource
	journal  Journal
	retrier  *retrier.Retrier
	metrics  *metrics.Metrics
	feeRate  decimal.Decimal
	now      func() time.Time
}

// New creates a desk over the given ledgers.
func New(balances *balance.Ledger, pools *pool.Ledger, prices PriceSource, logger *zap.Logger, opts ...Option) *Desk {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Desk{
		logger:   logger,
		balances: balances,
		pools:    pools,
		prices:   prices,
		feeRate:  amm.DefaultFeeRate,
		now:      time.Now,
	}
	d.retrier = retrier.New(retrier.WithOnRetry(func(attempt int, err error) {
		d.logger.Debug("retrying trade journal write", zap.Int("attempt", attempt), zap.Error(err))
	}))
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FeeRate returns the fee rate applied to swaps.
func (d *Desk) FeeRate() decimal.Decimal {
	return d.feeRate
}

// Mint converts stableIn USDA into asset at the oracle price.
func (d *Desk) Mint(ctx context.Context, asset domain.Symbol, stableIn decimal.Decimal) (domain.TradeReceipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.TradeReceipt{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	r, err := d.mint(asset, stableIn)
	if err != nil {
		d.reject(domain.TradeKindMint, err)
		return domain.TradeReceipt{}, err
	}

	key, _ := domain.PoolKeyFor(asset)
	d.record(ctx, r, key)
	return r, nil
}

func (d *Desk) mint(asset domain.Symbol, stableIn decimal.Decimal) (domain.TradeReceipt, error) {
	if !stableIn.IsPositive() {
		return domain.TradeReceipt{}, errors.Wrapf(ErrNonPositiveAmount, "mint %s", stableIn.String())
	}
	if !domain.HasAmountPrecision(stableIn) {
		return domain.TradeReceipt{}, errors.Wrapf(ErrPrecision, "mint %s", stableIn.String())
	}
	if !asset.IsAsset() {
		return domain.TradeReceipt{}, errors.Wrapf(ErrNotAsset, "%q", asset)
	}

	price, ok := d.prices.Price(asset)
	if !ok {
		return domain.TradeReceipt{}, errors.Wrapf(ErrMissingPrice, "%s", asset)
	}

	if have := d.balances.Get(domain.USDA); have.LessThan(stableIn) {
		return domain.TradeReceipt{}, errors.Wrapf(balance.ErrInsufficientBalance,
			"USDA: have %s need %s", have.String(), stableIn.String())
	}

	out := domain.RoundAmount(stableIn.Div(price))
	if !out.IsPositive() {
		return domain.TradeReceipt{}, errors.Wrapf(ErrZeroOutput, "mint %s USDA at %s", stableIn.String(), price.String())
	}

	if err := d.balances.Apply(
		balance.Delta{Symbol: domain.USDA, Amount: stableIn.Neg()},
		balance.Delta{Symbol: asset, Amount: out},
	); err != nil {
		return domain.TradeReceipt{}, errors.Wrap(err, "apply mint")
	}

	return domain.TradeReceipt{
		ID:             uuid.NewString(),
		Kind:           domain.TradeKindMint,
		From:           domain.USDA,
		To:             asset,
		AmountIn:       stableIn,
		AmountOut:      out,
		Fee:            decimal.Zero,
		PriceImpactPct: decimal.Zero,
		Price:          price,
		Time:           d.now(),
	}, nil
}

// Quote previews a swap without mutating anything.
// Non-positive amounts yield a zero quote.
func (d *Desk) Quote(from, to domain.Symbol, amountIn decimal.Decimal) (amm.Quote, error) {
	key, dir, err := domain.Route(from, to)
	if err != nil {
		return amm.Quote{}, errors.Wrap(ErrUnsupportedPair, err.Error())
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.pools.Get(key)
	if err != nil {
		return amm.Quote{}, err
	}
	return amm.QuotePool(p, dir, amountIn, d.feeRate), nil
}

// Swap trades amountIn of from for to through the matching pool.
func (d *Desk) Swap(ctx context.Context, from, to domain.Symbol, amountIn decimal.Decimal) (domain.TradeReceipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.TradeReceipt{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	r, key, err := d.swap(from, to, amountIn)
	if err != nil {
		d.reject(domain.TradeKindSwap, err)
		return domain.TradeReceipt{}, err
	}

	d.record(ctx, r, key)
	return r, nil
}

func (d *Desk) swap(from, to domain.Symbol, amountIn decimal.Decimal) (domain.TradeReceipt, domain.PoolKey, error) {
	key, dir, err := domain.Route(from, to)
	if err != nil {
		return domain.TradeReceipt{}, "", errors.Wrap(ErrUnsupportedPair, err.Error())
	}
	if !amountIn.IsPositive() {
		return domain.TradeReceipt{}, key, errors.Wrapf(ErrNonPositiveAmount, "swap %s", amountIn.String())
	}
	if !domain.HasAmountPrecision(amountIn) {
		return domain.TradeReceipt{}, key, errors.Wrapf(ErrPrecision, "swap %s", amountIn.String())
	}
	if have := d.balances.Get(from); have.LessThan(amountIn) {
		return domain.TradeReceipt{}, key, errors.Wrapf(balance.ErrInsufficientBalance,
			"%s: have %s need %s", from, have.String(), amountIn.String())
	}

	before, err := d.pools.Get(key)
	if err != nil {
		return domain.TradeReceipt{}, key, err
	}

	q := amm.SettlePool(before, dir, amountIn, d.feeRate)
	if !q.Actionable() {
		return domain.TradeReceipt{}, key, errors.Wrapf(ErrZeroOutput, "swap %s %s via %s", amountIn.String(), from, key)
	}

	if err := d.pools.ApplySwap(key, dir, q.AmountInAfterFee, q.AmountOut); err != nil {
		return domain.TradeReceipt{}, key, errors.Wrap(err, "apply swap to pool")
	}

	if err := d.balances.Apply(
		balance.Delta{Symbol: from, Amount: amountIn.Neg()},
		balance.Delta{Symbol: to, Amount: q.AmountOut},
	); err != nil {
		if rerr := d.pools.Restore(key, before); rerr != nil {
			d.logger.Error("failed to roll back pool", zap.Stringer("pool", key), zap.Error(rerr))
		}
		return domain.TradeReceipt{}, key, errors.Wrap(err, "apply swap to balances")
	}

	return domain.TradeReceipt{
		ID:             uuid.NewString(),
		Kind:           domain.TradeKindSwap,
		From:           from,
		To:             to,
		AmountIn:       amountIn,
		AmountOut:      q.AmountOut,
		Fee:            q.FeePaid,
		PriceImpactPct: q.PriceImpactPct,
		Price:          executionPrice(dir, amountIn, q.AmountOut),
		Time:           d.now(),
	}, key, nil
}

// Reset restores seed balances and reserves.
func (d *Desk) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.balances.Reset()
	d.pools.Reset()
	for key, p := range d.pools.All() {
		d.metrics.ObservePool(key, p)
	}
	d.logger.Info("balances and pools reset")
}

// record journals and reports an executed trade; callers hold d.mu.
// The trade stands even if journaling fails.
func (d *Desk) record(ctx context.Context, r domain.TradeReceipt, key domain.PoolKey) {
	d.logger.Info("trade executed",
		zap.String("id", r.ID),
		zap.Stringer("receipt", r),
		zap.String("price", r.Price.String()))

	d.metrics.ObserveTrade(r, key)
	if p, err := d.pools.Get(key); err == nil {
		d.metrics.ObservePool(key, p)
	}

	if d.journal == nil {
		return
	}
	idx, err := retrier.DoWithData(d.retrier, context.WithoutCancel(ctx), func(context.Context) (uint64, error) {
		return d.journal.Save(r)
	})
	if err != nil {
		d.logger.Warn("failed to journal trade", zap.String("id", r.ID), zap.Error(err))
		return
	}
	d.logger.Debug("trade journaled", zap.String("id", r.ID), zap.Uint64("index", idx))
}

func (d *Desk) reject(kind domain.TradeKind, err error) {
	reason := Reason(err)
	d.metrics.ObserveRejection(kind, reason)
	d.logger.Debug("trade rejected", zap.String("kind", string(kind)), zap.String("reason", reason), zap.Error(err))
}

// Reason maps a desk error to a short label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedPair):
		return "unsupported_pair"
	case errors.Is(err, ErrNonPositiveAmount):
		return "non_positive_amount"
	case errors.Is(err, ErrPrecision):
		return "precision"
	case errors.Is(err, ErrNotAsset):
		return "not_asset"
	case errors.Is(err, ErrMissingPrice):
		return "missing_price"
	case errors.Is(err, ErrZeroOutput):
		return "zero_output"
	case errors.Is(err, balance.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, pool.ErrReserveOverdraw):
		return "reserve_overdraw"
	default:
		return "internal"
	}
}

// executionPrice is USDA paid or received per asset unit.
func executionPrice(dir domain.Direction, amountIn, amountOut decimal.Decimal) decimal.Decimal {
	if !amountIn.IsPositive() || !amountOut.IsPositive() {
		return decimal.Zero
	}
	if dir == domain.StableToAsset {
		return domain.RoundPrice(amountIn.Div(amountOut))
	}
	return domain.RoundPrice(amountOut.Div(amountIn))
}
