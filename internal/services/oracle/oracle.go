// Package oracle generates synthetic asset prices with a bounded random walk.
package oracle

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dexsim/internal/domain"
	"github.com/vadiminshakov/dexsim/internal/scheduler"
	"github.com/vadiminshakov/dexsim/internal/storage/blobstore"
	"go.uber.org/zap"
)

// StoreKey is the blob the oracle persists its last prices under.
const StoreKey = "oracle_prices_v1"

var bpsDivisor = decimal.NewFromInt(10000)

// State of the oracle ticker.
type State int

const (
	StateRunning State = iota
	StatePaused
)

// String returns the string representation.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Sink receives every snapshot the oracle emits.
// Implementations must not call Pause or Resume synchronously.
type Sink interface {
	OnPriceSnapshot(snapshot domain.PriceSnapshot)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(domain.PriceSnapshot)

// OnPriceSnapshot calls f.
func (f SinkFunc) OnPriceSnapshot(s domain.PriceSnapshot) {
	f(s)
}

// Seed returns the prices a fresh session starts with.
func Seed() map[domain.Symbol]decimal.Decimal {
	return map[domain.Symbol]decimal.Decimal{
		domain.TLSA: decimal.NewFromInt(120),
		domain.CRCL: decimal.NewFromInt(240),
	}
}

// Oracle is a pausable random-walk price generator.
type Oracle struct {
	mu     sync.Mutex
	logger *zap.Logger
	store  blobstore.Store

	prices    map[domain.Symbol]decimal.Decimal
	updatedAt time.Time
	state     State
	// epoch invalidates ticks scheduled before the last state change.
	epoch  uint64
	task   *scheduler.Task
	runCtx context.Context
	// ticking counts ticks still delivering to sinks; idle is signalled when it drops to zero.
	ticking int
	idle    *sync.Cond

	sinks         []Sink
	interval      time.Duration
	volatilityBps decimal.Decimal
	drift         decimal.Decimal
	rnd           func() float64
	now           func() time.Time
}

// New creates an oracle, restoring the last persisted prices when available.
func New(store blobstore.Store, logger *zap.Logger, opts ...Option) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Oracle{
		logger:        logger,
		store:         store,
		prices:        Seed(),
		state:         StateRunning,
		interval:      defaultInterval,
		volatilityBps: defaultVolatilityBps,
		drift:         defaultDrift,
		rnd:           rand.Float64,
		now:           time.Now,
	}
	o.idle = sync.NewCond(&o.mu)
	for _, opt := range opts {
		opt(o)
	}
	o.updatedAt = o.now()

	if err := o.restoreState(); err != nil {
		logger.Warn("failed to restore oracle prices, using defaults", zap.Error(err))
	}
	return o
}

// Subscribe registers an additional sink.
func (o *Oracle) Subscribe(s Sink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sinks = append(o.sinks, s)
}

// Start begins ticking if the oracle is running. Ticking stops when ctx is cancelled.
func (o *Oracle) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.runCtx = ctx
	if o.state == StateRunning && o.task == nil {
		o.schedule()
	}
	o.logger.Info("oracle started",
		zap.Stringer("state", o.state),
		zap.Duration("interval", o.interval),
		zap.String("volatility_bps", o.volatilityBps.String()))
}

// Stop halts ticking without changing the state.
func (o *Oracle) Stop() {
	o.mu.Lock()
	task := o.task
	o.task = nil
	o.epoch++
	o.runCtx = nil
	o.mu.Unlock()

	if task != nil {
		task.Stop()
	}
}

// Pause stops ticking. No tick snapshot, scheduled or from Step, is delivered after Pause returns.
func (o *Oracle) Pause() {
	o.mu.Lock()
	if o.state == StatePaused {
		o.mu.Unlock()
		return
	}
	o.state = StatePaused
	o.epoch++
	task := o.task
	o.task = nil
	o.mu.Unlock()

	if task != nil {
		task.Stop()
	}

	o.mu.Lock()
	for o.ticking > 0 {
		o.idle.Wait()
	}
	o.mu.Unlock()
	o.logger.Info("oracle paused")
}

// Resume restarts ticking on a fresh interval counted from now.
func (o *Oracle) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateRunning {
		return
	}
	o.state = StateRunning
	o.epoch++
	if o.runCtx != nil {
		o.schedule()
	}
	o.logger.Info("oracle resumed")
}

// State returns the current ticker state.
func (o *Oracle) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Prices returns the latest snapshot.
func (o *Oracle) Prices() domain.PriceSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return domain.NewPriceSnapshot(o.updatedAt, o.prices)
}

// Price returns the latest price of asset.
func (o *Oracle) Price(asset domain.Symbol) (decimal.Decimal, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.prices[asset]
	if !ok || !p.IsPositive() {
		return decimal.Zero, false
	}
	return p, true
}

// Step performs one tick immediately. It reports false when the oracle is paused.
func (o *Oracle) Step() (domain.PriceSnapshot, bool) {
	o.mu.Lock()
	return o.tickLocked(o.epoch)
}

// Reset restores seed prices and emits them.
func (o *Oracle) Reset() domain.PriceSnapshot {
	o.mu.Lock()
	o.prices = Seed()
	return o.publishLocked()
}

// SetPrices overrides the current prices of the given assets.
func (o *Oracle) SetPrices(prices map[domain.Symbol]decimal.Decimal) (domain.PriceSnapshot, error) {
	for sym, p := range prices {
		if !sym.IsAsset() {
			return domain.PriceSnapshot{}, errors.Errorf("%s is not an oracle asset", sym)
		}
		if !p.IsPositive() {
			return domain.PriceSnapshot{}, errors.Errorf("%s price must be positive, got %s", sym, p.String())
		}
	}

	o.mu.Lock()
	for sym, p := range prices {
		o.prices[sym] = domain.ClampPrice(domain.RoundPrice(p))
	}
	return o.publishLocked(), nil
}

// schedule starts a ticker bound to the current epoch; callers hold o.mu.
func (o *Oracle) schedule() {
	epoch := o.epoch
	o.task = scheduler.Every(o.runCtx, o.interval, func(ctx context.Context, _ time.Time) {
		o.mu.Lock()
		o.tickLocked(epoch)
	})
}

// tickLocked is entered with o.mu held and releases it.
func (o *Oracle) tickLocked(epoch uint64) (domain.PriceSnapshot, bool) {
	if o.state != StateRunning || epoch != o.epoch {
		o.mu.Unlock()
		return domain.PriceSnapshot{}, false
	}

	for _, asset := range domain.Assets() {
		o.prices[asset] = o.next(o.prices[asset])
	}

	o.ticking++
	snapshot := o.publishLocked()

	o.mu.Lock()
	o.ticking--
	if o.ticking == 0 {
		o.idle.Broadcast()
	}
	o.mu.Unlock()

	o.logger.Debug("oracle tick",
		zap.String("TLSA", snapshot.Prices[domain.TLSA].String()),
		zap.String("CRCL", snapshot.Prices[domain.CRCL].String()))
	return snapshot, true
}

// next applies one random-walk step to price.
func (o *Oracle) next(price decimal.Decimal) decimal.Decimal {
	rndBps := decimal.NewFromFloat(o.rnd()*2 - 1).Mul(o.volatilityBps)
	factor := decimal.NewFromInt(1).Add(rndBps.Div(bpsDivisor)).Add(o.drift)
	return domain.ClampPrice(domain.RoundPrice(price.Mul(factor)))
}

// publishLocked persists and emits the current prices, releasing o.mu before sinks run.
func (o *Oracle) publishLocked() domain.PriceSnapshot {
	o.updatedAt = o.now()
	snapshot := domain.NewPriceSnapshot(o.updatedAt, o.prices)
	sinks := append([]Sink(nil), o.sinks...)
	o.persist()
	o.mu.Unlock()

	for _, s := range sinks {
		s.OnPriceSnapshot(snapshot)
	}
	return snapshot
}

func (o *Oracle) restoreState() error {
	var stored map[domain.Symbol]decimal.Decimal
	ok, err := blobstore.LoadJSON(o.store, StoreKey, &stored)
	if err != nil || !ok {
		return err
	}

	prices := Seed()
	for sym, p := range stored {
		if !sym.IsAsset() {
			continue
		}
		if !p.IsPositive() {
			return errors.Errorf("stored %s price is not positive: %s", sym, p.String())
		}
		prices[sym] = domain.ClampPrice(domain.RoundPrice(p))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices = prices

	return nil
}

// persist is best-effort; callers hold o.mu.
func (o *Oracle) persist() {
	if err := blobstore.SaveJSON(o.store, StoreKey, o.prices); err != nil {
		o.logger.Warn("failed to persist oracle prices", zap.Error(err))
	}
}
