// Package balance holds the session's unit balances.
package balance

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dexsim/internal/domain"
	"github.com/vadiminshakov/dexsim/internal/storage/blobstore"
	"go.uber.org/zap"
)

// StoreKey is the blob the ledger persists under.
const StoreKey = "balances_v1"

var (
	// ErrInsufficientBalance is returned when a delta would drive a balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrUnknownSymbol is returned for symbols outside the closed set.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Seed returns the balances a fresh session starts with.
func Seed() map[domain.Symbol]decimal.Decimal {
	return map[domain.Symbol]decimal.Decimal{
		domain.USDA: decimal.NewFromInt(10000),
		domain.TLSA: decimal.Zero,
		domain.CRCL: decimal.Zero,
	}
}

// Delta signed change of one balance.
type Delta struct {
	Symbol domain.Symbol
	Amount decimal.Decimal
}

// Ledger balances of the single local holder.
type Ledger struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	store    blobstore.Store
	balances map[domain.Symbol]decimal.Decimal
}

// NewLedger restores balances from store, falling back to Seed on missing or corrupt data.
func NewLedger(store blobstore.Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		logger:   logger,
		store:    store,
		balances: Seed(),
	}
	if err := l.restoreState(); err != nil {
		logger.Warn("failed to restore balances, using defaults", zap.Error(err))
	}
	return l
}

// Get returns the balance of sym.
func (l *Ledger) Get(sym domain.Symbol) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[sym]
}

// All returns a copy of every balance.
func (l *Ledger) All() map[domain.Symbol]decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyBalances(l.balances)
}

// Add applies delta to sym, rounding the result to amount precision.
func (l *Ledger) Add(sym domain.Symbol, delta decimal.Decimal) error {
	return l.Apply(Delta{Symbol: sym, Amount: delta})
}

// Apply applies all deltas or none of them.
func (l *Ledger) Apply(deltas ...Delta) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := copyBalances(l.balances)
	for _, d := range deltas {
		if !d.Symbol.IsValid() {
			return errors.Wrapf(ErrUnknownSymbol, "%q", d.Symbol)
		}
		updated := domain.RoundAmount(next[d.Symbol].Add(d.Amount))
		if updated.IsNegative() {
			return errors.Wrapf(ErrInsufficientBalance, "%s: have %s need %s",
				d.Symbol, next[d.Symbol].String(), d.Amount.Neg().String())
		}
		next[d.Symbol] = updated
	}

	l.balances = next
	l.persist()
	return nil
}

// Reset restores seed balances.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = Seed()
	l.persist()
}

func (l *Ledger) restoreState() error {
	var stored map[domain.Symbol]decimal.Decimal
	ok, err := blobstore.LoadJSON(l.store, StoreKey, &stored)
	if err != nil || !ok {
		return err
	}

	balances := Seed()
	for sym, amount := range stored {
		if !sym.IsValid() {
			continue
		}
		if amount.IsNegative() {
			return errors.Errorf("stored %s balance is negative: %s", sym, amount.String())
		}
		balances[sym] = domain.RoundAmount(amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = balances

	return nil
}

// persist is best-effort; callers hold l.mu.
func (l *Ledger) persist() {
	if err := blobstore.SaveJSON(l.store, StoreKey, l.balances); err != nil {
		l.logger.Warn("failed to persist balances", zap.Error(err))
	}
}

func copyBalances(src map[domain.Symbol]decimal.Decimal) map[domain.Symbol]decimal.Decimal {
	dst := make(map[domain.Symbol]decimal.Decimal, len(src))
	for sym, amount := range src {
		dst[sym] = amount
	}
	return dst
}
