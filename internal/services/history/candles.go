package history

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dexsim/internal/domain"
)

// MaxCandles is how many of the most recent buckets ToCandles keeps.
const MaxCandles = 60

// ToCandles buckets points into frame-wide OHLC candles ordered by bucket start.
// Open and close follow arrival order within a bucket, not timestamp order.
func ToCandles(points []domain.PricePoint, frame time.Duration) []domain.Candle {
	frameMs := frame.Milliseconds()
	if len(points) == 0 || frameMs <= 0 {
		return nil
	}

	buckets := make(map[int64]*domain.Candle)
	for _, pt := range points {
		bucket := floorDiv(pt.T, frameMs) * frameMs
		c, ok := buckets[bucket]
		if !ok {
			buckets[bucket] = &domain.Candle{T: bucket, O: pt.P, H: pt.P, L: pt.P, C: pt.P}
			continue
		}
		c.H = decimal.Max(c.H, pt.P)
		c.L = decimal.Min(c.L, pt.P)
		c.C = pt.P
	}

	candles := make([]domain.Candle, 0, len(buckets))
	for _, c := range buckets {
		candles = append(candles, *c)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].T < candles[j].T })

	if len(candles) > MaxCandles {
		candles = candles[len(candles)-MaxCandles:]
	}
	return candles
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
