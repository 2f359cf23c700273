// Package indicators computes chart overlays over price candles.
// It uses the cinar/indicator library for EMA, RSI and ATR.
package indicators

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dexsim/internal/domain"
)

// ErrNotEnoughData is returned when a series is shorter than the indicator warmup.
var ErrNotEnoughData = errors.New("not enough data points")

// Periods of the overlay indicators.
type Periods struct {
	FastEMA int
	SlowEMA int
	RSI     int
	ATR     int
}

// DefaultPeriods fit the 60-candle chart window.
func DefaultPeriods() Periods {
	return Periods{FastEMA: 9, SlowEMA: 21, RSI: 14, ATR: 14}
}

// Point indicator values aligned to the candle starting at T.
type Point struct {
	T       int64           `json:"t"`
	FastEMA decimal.Decimal `json:"ema_fast"`
	SlowEMA decimal.Decimal `json:"ema_slow"`
	RSI     decimal.Decimal `json:"rsi"`
	ATR     decimal.Decimal `json:"atr"`
}

// Overlay returns one Point per trailing candle for which every indicator is warmed up.
// Too few candles yield an empty overlay.
func Overlay(candles []domain.Candle, p Periods) []Point {
	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.C
	}

	fast, err := CalculateEMA(closes, p.FastEMA)
	if err != nil {
		return nil
	}
	slow, err := CalculateEMA(closes, p.SlowEMA)
	if err != nil {
		return nil
	}
	rsi, err := CalculateRSI(closes, p.RSI)
	if err != nil {
		return nil
	}
	atr, err := CalculateATR(candles, p.ATR)
	if err != nil {
		return nil
	}

	n := min(len(fast), len(slow), len(rsi), len(atr))
	if n == 0 {
		return nil
	}

	out := make([]Point, n)
	base := len(candles) - n
	for i := 0; i < n; i++ {
		out[i] = Point{
			T:       candles[base+i].T,
			FastEMA: domain.RoundPrice(fast[len(fast)-n+i]),
			SlowEMA: domain.RoundPrice(slow[len(slow)-n+i]),
			RSI:     rsi[len(rsi)-n+i].Round(2),
			ATR:     domain.RoundPrice(atr[len(atr)-n+i]),
		}
	}
	return out
}

// CalculateEMA calculates the exponential moving average for the given period.
func CalculateEMA(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period < 1 || len(closes) < period {
		return nil, errors.Wrapf(ErrNotEnoughData, "EMA%d: got %d", period, len(closes))
	}

	ema := trend.NewEmaWithPeriod[float64](period)
	out := ema.Compute(helper.SliceToChan(decimalsToFloat64(closes)))

	return float64ToDecimals(helper.ChanToSlice(out)), nil
}

// CalculateRSI calculates the relative strength index for the given period.
func CalculateRSI(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period < 1 || len(closes) < period+1 {
		return nil, errors.Wrapf(ErrNotEnoughData, "RSI%d: got %d", period, len(closes))
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	out := rsi.Compute(helper.SliceToChan(decimalsToFloat64(closes)))

	return float64ToDecimals(helper.ChanToSlice(out)), nil
}

// CalculateATR calculates the average true range of candles for the given period.
func CalculateATR(candles []domain.Candle, period int) ([]decimal.Decimal, error) {
	if period < 1 || len(candles) < period+1 {
		return nil, errors.Wrapf(ErrNotEnoughData, "ATR%d: got %d", period, len(candles))
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.H.InexactFloat64()
		lows[i] = c.L.InexactFloat64()
		closes[i] = c.C.InexactFloat64()
	}

	atr := volatility.NewAtrWithPeriod[float64](period)
	out := atr.Compute(helper.SliceToChan(highs), helper.SliceToChan(lows), helper.SliceToChan(closes))

	return float64ToDecimals(helper.ChanToSlice(out)), nil
}

func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i] = d.InexactFloat64()
	}
	return result
}

// float64ToDecimals zeroes non-finite values produced by flat series.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, len(floats))
	for i, f := range floats {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			result[i] = decimal.Zero
			continue
		}
		result[i] = decimal.NewFromFloat(f)
	}
	return result
}
