package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/dexsim/internal/domain"
)

func rising(n int) []domain.Candle {
	candles := make([]domain.Candle, n)
	for i := range candles {
		c := decimal.NewFromInt(int64(100 + i))
		candles[i] = domain.Candle{
			T: int64(i) * 10_000,
			O: c.Sub(decimal.NewFromInt(1)),
			H: c.Add(decimal.NewFromInt(1)),
			L: c.Sub(decimal.NewFromInt(2)),
			C: c,
		}
	}
	return candles
}

func TestCalculateEMA_NotEnoughData(t *testing.T) {
	_, err := CalculateEMA([]decimal.Decimal{decimal.NewFromInt(1)}, 5)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestCalculateEMA_TracksRisingSeries(t *testing.T) {
	closes := make([]decimal.Decimal, 30)
	for i := range closes {
		closes[i] = decimal.NewFromInt(int64(i + 1))
	}

	ema, err := CalculateEMA(closes, 5)
	require.NoError(t, err)
	require.NotEmpty(t, ema)

	last := ema[len(ema)-1]
	assert.True(t, last.LessThan(decimal.NewFromInt(30)), "ema %s", last)
	assert.True(t, last.GreaterThan(decimal.NewFromInt(25)), "ema %s", last)
}

func TestOverlay_AlignsToTrailingCandles(t *testing.T) {
	candles := rising(60)

	points := Overlay(candles, DefaultPeriods())

	require.NotEmpty(t, points)
	assert.LessOrEqual(t, len(points), len(candles))
	assert.Equal(t, candles[len(candles)-1].T, points[len(points)-1].T)
	for i := 1; i < len(points); i++ {
		assert.Greater(t, points[i].T, points[i-1].T)
	}

	last := points[len(points)-1]
	assert.True(t, last.FastEMA.GreaterThan(last.SlowEMA), "fast %s slow %s", last.FastEMA, last.SlowEMA)
	assert.True(t, last.ATR.IsPositive())
}

func TestOverlay_TooFewCandles(t *testing.T) {
	assert.Empty(t, Overlay(rising(10), DefaultPeriods()))
	assert.Empty(t, Overlay(nil, DefaultPeriods()))
}
