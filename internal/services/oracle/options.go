package oracle

import (
	"time"

	"github.com/shopspring/decimal"
)

const defaultInterval = 3 * time.Second

var (
	defaultVolatilityBps = decimal.NewFromInt(20)
	defaultDrift         = decimal.RequireFromString("0.0002")
)

// Option configures the Oracle.
type Option func(*Oracle)

// WithInterval sets the tick interval.
func WithInterval(d time.Duration) Option {
	return func(o *Oracle) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithVolatilityBps sets the maximum per-tick random move in basis points.
func WithVolatilityBps(bps decimal.Decimal) Option {
	return func(o *Oracle) {
		o.volatilityBps = bps.Abs()
	}
}

// WithDrift sets the constant per-tick drift fraction.
func WithDrift(drift decimal.Decimal) Option {
	return func(o *Oracle) {
		o.drift = drift
	}
}

// WithPaused makes the oracle start in the Paused state.
func WithPaused(paused bool) Option {
	return func(o *Oracle) {
		if paused {
			o.state = StatePaused
		}
	}
}

// WithRand replaces the uniform [0,1) source.
func WithRand(rnd func() float64) Option {
	return func(o *Oracle) {
		if rnd != nil {
			o.rnd = rnd
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSink registers a snapshot consumer.
func WithSink(s Sink) Option {
	return func(o *Oracle) {
		if s != nil {
			o.sinks = append(o.sinks, s)
		}
	}
}
