// Package history turns oracle snapshots into bounded price series and OHLC candles.
package history

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dexsim/internal/domain"
	"github.com/vadiminshakov/dexsim/internal/storage/blobstore"
	"go.uber.org/zap"
)

const (
	// StoreKey is the blob the aggregator persists its points under.
	StoreKey = "price_history_v1"
	// DefaultCapacity is the per-symbol retention cap.
	DefaultCapacity = 600

	backfillWindow  = 20 * time.Minute
	backfillSpacing = 5 * time.Second
)

var backfillStep = decimal.RequireFromString("0.004")

// Option configures the Aggregator.
type Option func(*Aggregator)

// WithCapacity sets the per-symbol retention cap.
func WithCapacity(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.capacity = n
		}
	}
}

// WithRand replaces the uniform [0,1) source used by Backfill.
func WithRand(rnd func() float64) Option {
	return func(a *Aggregator) {
		if rnd != nil {
			a.rnd = rnd
		}
	}
}

// Aggregator records deduplicated price points per asset.
type Aggregator struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	store    blobstore.Store
	capacity int
	rnd      func() float64

	points map[domain.Symbol][]domain.PricePoint
	last   map[domain.Symbol]decimal.Decimal
	// restored is set when persisted history existed at startup.
	restored   bool
	backfilled bool
}

// New creates an aggregator, restoring persisted points when available.
func New(store blobstore.Store, logger *zap.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		logger:   logger,
		store:    store,
		capacity: DefaultCapacity,
		rnd:      rand.Float64,
		points:   make(map[domain.Symbol][]domain.PricePoint),
		last:     make(map[domain.Symbol]decimal.Decimal),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.restoreState(); err != nil {
		logger.Warn("failed to restore price history, starting empty", zap.Error(err))
	}
	return a
}

// OnPriceSnapshot records each asset whose price changed since its last recorded point.
func (a *Aggregator) OnPriceSnapshot(s domain.PriceSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ts := s.Time.UnixMilli()
	recorded := false
	for _, sym := range domain.Assets() {
		price, ok := s.Price(sym)
		if !ok {
			continue
		}
		if last, seen := a.last[sym]; seen && last.Equal(price) {
			continue
		}
		a.appendLocked(sym, domain.PricePoint{T: ts, P: price})
		recorded = true
	}

	if recorded {
		a.persist()
	}
}

// Append records a point without deduplication.
func (a *Aggregator) Append(sym domain.Symbol, pt domain.PricePoint) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.appendLocked(sym, pt)
	a.persist()
}

// Points returns a copy of the recorded series of sym, oldest first.
func (a *Aggregator) Points(sym domain.Symbol) []domain.PricePoint {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return append([]domain.PricePoint(nil), a.points[sym]...)
}

// Candles derives frame-wide candles for sym from the recorded series.
func (a *Aggregator) Candles(sym domain.Symbol, frame time.Duration) []domain.Candle {
	return ToCandles(a.Points(sym), frame)
}

// Len returns the number of points recorded for sym.
func (a *Aggregator) Len(sym domain.Symbol) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.points[sym])
}

// Backfill seeds a synthetic walk ending at the current prices.
// It runs at most once per session and never when persisted or live history exists.
func (a *Aggregator) Backfill(now time.Time, current domain.PriceSnapshot) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.restored || a.backfilled || a.hasPointsLocked() {
		return false
	}

	count := int(backfillWindow / backfillSpacing)
	if count > a.capacity {
		count = a.capacity
	}

	filled := false
	for _, sym := range domain.Assets() {
		price, ok := current.Price(sym)
		if !ok {
			continue
		}
		a.points[sym] = a.walkBack(now, price, count)
		a.last[sym] = price
		filled = true
	}
	if !filled {
		return false
	}

	a.backfilled = true
	a.persist()
	a.logger.Info("price history backfilled", zap.Int("points_per_asset", count))
	return true
}

// Reset clears every recorded point.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.points = make(map[domain.Symbol][]domain.PricePoint)
	a.last = make(map[domain.Symbol]decimal.Decimal)
	a.persist()
}

// walkBack produces count points oldest first, the newest at now with price.
func (a *Aggregator) walkBack(now time.Time, price decimal.Decimal, count int) []domain.PricePoint {
	out := make([]domain.PricePoint, count)
	p := price
	for i := count - 1; i >= 0; i-- {
		out[i] = domain.PricePoint{
			T: now.Add(-time.Duration(count-1-i) * backfillSpacing).UnixMilli(),
			P: p,
		}
		step := decimal.NewFromFloat(a.rnd()*2 - 1).Mul(backfillStep)
		p = domain.ClampPrice(domain.RoundPrice(p.Mul(decimal.NewFromInt(1).Add(step))))
	}
	return out
}

// appendLocked adds pt and evicts the oldest points beyond capacity; callers hold a.mu.
func (a *Aggregator) appendLocked(sym domain.Symbol, pt domain.PricePoint) {
	series := append(a.points[sym], pt)
	if over := len(series) - a.capacity; over > 0 {
		series = append([]domain.PricePoint(nil), series[over:]...)
	}
	a.points[sym] = series
	a.last[sym] = pt.P
}

func (a *Aggregator) hasPointsLocked() bool {
	for _, series := range a.points {
		if len(series) > 0 {
			return true
		}
	}
	return false
}

func (a *Aggregator) restoreState() error {
	var stored map[domain.Symbol][]domain.PricePoint
	ok, err := blobstore.LoadJSON(a.store, StoreKey, &stored)
	if err != nil || !ok {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for sym, series := range stored {
		if !sym.IsAsset() || len(series) == 0 {
			continue
		}
		if over := len(series) - a.capacity; over > 0 {
			series = series[over:]
		}
		a.points[sym] = series
		a.last[sym] = series[len(series)-1].P
		a.restored = true
	}

	return nil
}

// persist is best-effort; callers hold a.mu.
func (a *Aggregator) persist() {
	if err := blobstore.SaveJSON(a.store, StoreKey, a.points); err != nil {
		a.logger.Warn("failed to persist price history", zap.Error(err))
	}
}
