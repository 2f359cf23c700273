// Package pool holds the reserves of the asset/stable constant-product pools.
package pool

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dexsim/internal/domain"
	"github.com/vadiminshakov/dexsim/internal/storage/blobstore"
	"go.uber.org/zap"
)

// StoreKey is the blob the ledger persists under.
const StoreKey = "pools_v1"

var (
	// ErrReserveOverdraw is returned when a swap would push a reserve below zero.
	ErrReserveOverdraw = errors.New("reserve overdraw")
	// ErrUnknownPool is returned for keys outside the closed pool set.
	ErrUnknownPool = errors.New("unknown pool")
	// ErrInvalidSwap is returned for a non-positive input or a negative output.
	ErrInvalidSwap = errors.New("invalid swap amounts")
)

// Seed returns the reserves a fresh session starts with.
func Seed() map[domain.PoolKey]domain.Pool {
	return map[domain.PoolKey]domain.Pool{
		domain.PoolTLSA: {Asset: domain.TLSA, ReserveAsset: decimal.NewFromInt(1000), ReserveStable: decimal.NewFromInt(120000)},
		domain.PoolCRCL: {Asset: domain.CRCL, ReserveAsset: decimal.NewFromInt(1000), ReserveStable: decimal.NewFromInt(240000)},
	}
}

// Ledger owns both pools.
type Ledger struct {
	mu     sync.RWMutex
	logger *zap.Logger
	store  blobstore.Store
	pools  map[domain.PoolKey]domain.Pool
}

// NewLedger restores pools from store, falling back to Seed on missing or corrupt data.
func NewLedger(store blobstore.Store, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		logger: logger,
		store:  store,
		pools:  Seed(),
	}
	if err := l.restoreState(); err != nil {
		logger.Warn("failed to restore pools, using defaults", zap.Error(err))
	}
	return l
}

// Get returns the pool under key.
func (l *Ledger) Get(key domain.PoolKey) (domain.Pool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.pools[key]
	if !ok {
		return domain.Pool{}, errors.Wrapf(ErrUnknownPool, "%q", key)
	}
	return p, nil
}

// Reserves returns (reserveAsset, reserveStable) of the pool under key.
func (l *Ledger) Reserves(key domain.PoolKey) (decimal.Decimal, decimal.Decimal, error) {
	p, err := l.Get(key)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return p.ReserveAsset, p.ReserveStable, nil
}

// All returns a copy of every pool.
func (l *Ledger) All() map[domain.PoolKey]domain.Pool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[domain.PoolKey]domain.Pool, len(l.pools))
	for k, p := range l.pools {
		out[k] = p
	}
	return out
}

// ApplySwap adds amountInAfterFee to the input reserve and removes amountOut from the output reserve.
func (l *Ledger) ApplySwap(key domain.PoolKey, dir domain.Direction, amountInAfterFee, amountOut decimal.Decimal) error {
	if !amountInAfterFee.IsPositive() || amountOut.IsNegative() {
		return errors.Wrapf(ErrInvalidSwap, "%s: in %s out %s", key, amountInAfterFee.String(), amountOut.String())
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.pools[key]
	if !ok {
		return errors.Wrapf(ErrUnknownPool, "%q", key)
	}

	switch dir {
	case domain.StableToAsset:
		p.ReserveStable = domain.RoundAmount(p.ReserveStable.Add(amountInAfterFee))
		p.ReserveAsset = domain.RoundAmount(p.ReserveAsset.Sub(amountOut))
	case domain.AssetToStable:
		p.ReserveAsset = domain.RoundAmount(p.ReserveAsset.Add(amountInAfterFee))
		p.ReserveStable = domain.RoundAmount(p.ReserveStable.Sub(amountOut))
	default:
		return errors.Errorf("unknown direction %d", dir)
	}

	if p.ReserveAsset.IsNegative() || p.ReserveStable.IsNegative() {
		return errors.Wrapf(ErrReserveOverdraw, "%s: out %s exceeds reserve", key, amountOut.String())
	}

	l.pools[key] = p
	l.persist()

	if p.Exhausted() {
		l.logger.Warn("pool exhausted", zap.Stringer("pool", key),
			zap.String("reserve_asset", p.ReserveAsset.String()),
			zap.String("reserve_stable", p.ReserveStable.String()))
	}
	return nil
}

// Restore overwrites the pool under key, used to roll back a partially applied trade.
func (l *Ledger) Restore(key domain.PoolKey, p domain.Pool) error {
	if !key.IsValid() {
		return errors.Wrapf(ErrUnknownPool, "%q", key)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pools[key] = p
	l.persist()
	return nil
}

// Reset restores seed reserves.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pools = Seed()
	l.persist()
}

func (l *Ledger) restoreState() error {
	var stored map[domain.PoolKey]domain.Pool
	ok, err := blobstore.LoadJSON(l.store, StoreKey, &stored)
	if err != nil || !ok {
		return err
	}

	pools := Seed()
	for key, p := range stored {
		if !key.IsValid() {
			continue
		}
		if p.ReserveAsset.IsNegative() || p.ReserveStable.IsNegative() {
			return errors.Errorf("stored %s reserves are negative", key)
		}
		pools[key] = domain.Pool{
			Asset:         key.Asset(),
			ReserveAsset:  domain.RoundAmount(p.ReserveAsset),
			ReserveStable: domain.RoundAmount(p.ReserveStable),
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.pools = pools

	return nil
}

// persist is best-effort; callers hold l.mu.
func (l *Ledger) persist() {
	if err := blobstore.SaveJSON(l.store, StoreKey, l.pools); err != nil {
		l.logger.Warn("failed to persist pools", zap.Error(err))
	}
}
