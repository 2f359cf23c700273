package amm

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/dexsim/internal/domain"
	"pgregory.net/rapid"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestGetQuote_StableIntoAssetPool(t *testing.T) {
	// 1000 USDA into (1000 TLSA, 120000 USDA)
	q := GetQuote(dec("120000"), dec("1000"), dec("1000"), DefaultFeeRate)

	assert.True(t, q.FeePaid.Equal(dec("3")), "fee: %s", q.FeePaid)
	assert.True(t, q.AmountInAfterFee.Equal(dec("997")), "after fee: %s", q.AmountInAfterFee)
	// 1000 - 120000000/120997
	assert.True(t, q.AmountOut.Equal(dec("8.239874")), "out: %s", q.AmountOut)
	assert.True(t, q.PriceImpactPct.IsZero(), "impact: %s", q.PriceImpactPct)
	assert.True(t, q.Actionable())
}

func TestGetQuote_AssetIntoStable(t *testing.T) {
	q := GetQuote(dec("1000"), dec("120000"), dec("10"), DefaultFeeRate)

	assert.True(t, q.FeePaid.Equal(dec("0.03")))
	assert.True(t, q.AmountInAfterFee.Equal(dec("9.97")))
	assert.True(t, q.AmountOut.Equal(dec("1184.589641")), "out: %s", q.AmountOut)
}

func TestGetQuote_DegenerateInputs(t *testing.T) {
	tests := []struct {
		name       string
		reserveIn  string
		reserveOut string
		amountIn   string
	}{
		{name: "zero amount", reserveIn: "100", reserveOut: "100", amountIn: "0"},
		{name: "negative amount", reserveIn: "100", reserveOut: "100", amountIn: "-5"},
		{name: "zero reserve in", reserveIn: "0", reserveOut: "100", amountIn: "5"},
		{name: "zero reserve out", reserveIn: "100", reserveOut: "0", amountIn: "5"},
		{name: "negative reserve", reserveIn: "-1", reserveOut: "100", amountIn: "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := GetQuote(dec(tt.reserveIn), dec(tt.reserveOut), dec(tt.amountIn), DefaultFeeRate)
			assert.True(t, q.IsZero())
			assert.False(t, q.Actionable())
		})
	}
}

func TestGetQuote_ZeroFee(t *testing.T) {
	q := GetQuote(dec("100"), dec("100"), dec("100"), decimal.Zero)

	assert.True(t, q.FeePaid.IsZero())
	assert.True(t, q.AmountInAfterFee.Equal(dec("100")))
	assert.True(t, q.AmountOut.Equal(dec("50")))
}

func TestQuotePool(t *testing.T) {
	p := domain.Pool{Asset: domain.TLSA, ReserveAsset: dec("1000"), ReserveStable: dec("120000")}

	buy := QuotePool(p, domain.StableToAsset, dec("1000"), DefaultFeeRate)
	sell := QuotePool(p, domain.AssetToStable, dec("10"), DefaultFeeRate)

	require.True(t, buy.AmountOut.Equal(dec("8.239874")))
	require.True(t, sell.AmountOut.Equal(dec("1184.589641")))
}

func TestSpotPrice(t *testing.T) {
	assert.True(t, SpotPrice(dec("1000"), dec("120000")).Equal(dec("120")))
	assert.True(t, SpotPrice(decimal.Zero, dec("120000")).IsZero())
}

func TestGetQuote_NeverDrainsReserve(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reserveIn := decimal.NewFromFloat(rapid.Float64Range(1, 1e7).Draw(t, "reserveIn"))
		reserveOut := decimal.NewFromFloat(rapid.Float64Range(1, 1e7).Draw(t, "reserveOut"))
		amountIn := decimal.NewFromFloat(rapid.Float64Range(0.000001, 1e6).Draw(t, "amountIn"))
		feeRate := decimal.NewFromFloat(rapid.Float64Range(0, 0.99).Draw(t, "feeRate"))

		q := GetQuote(reserveIn, reserveOut, amountIn, feeRate)
		if q.AmountOut.IsNegative() {
			t.Fatalf("negative output %s", q.AmountOut)
		}
		if !q.AmountOut.LessThan(reserveOut) {
			t.Fatalf("output %s drains reserve %s", q.AmountOut, reserveOut)
		}
		if q.PriceImpactPct.IsNegative() {
			t.Fatalf("negative impact %s", q.PriceImpactPct)
		}
	})
}

func TestGetQuote_DegenerateAlwaysZero(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reserveIn := decimal.NewFromInt(rapid.Int64Range(-1000, 1000).Draw(t, "reserveIn"))
		reserveOut := decimal.NewFromInt(rapid.Int64Range(-1000, 1000).Draw(t, "reserveOut"))
		amountIn := decimal.NewFromInt(rapid.Int64Range(-1000, 0).Draw(t, "amountIn"))

		if !GetQuote(reserveIn, reserveOut, amountIn, DefaultFeeRate).IsZero() {
			t.Fatalf("expected zero quote for amountIn=%s", amountIn)
		}
	})
}

func TestSettle_RoundsInPoolsFavour(t *testing.T) {
	q := Settle(dec("120000"), dec("1000"), dec("1000"), DefaultFeeRate)
	assert.True(t, q.AmountOut.Equal(dec("8.239873")), "out: %s", q.AmountOut)
	assert.True(t, q.AmountInAfterFee.Equal(dec("997")))

	// 0.000167 after a 0.3% fee is 0.000166499
	q = Settle(dec("1000"), dec("120000"), dec("0.000167"), DefaultFeeRate)
	assert.True(t, q.AmountInAfterFee.Equal(dec("0.000167")), "in: %s", q.AmountInAfterFee)
	assert.True(t, GetQuote(dec("1000"), dec("120000"), dec("0.000167"), DefaultFeeRate).AmountInAfterFee.Equal(dec("0.000166")))
}

func TestSettle_NeverShrinksProduct(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reserveIn := decimal.New(rapid.Int64Range(1, 1e13).Draw(t, "reserveInMicro"), -domain.AmountPlaces)
		reserveOut := decimal.New(rapid.Int64Range(1, 1e13).Draw(t, "reserveOutMicro"), -domain.AmountPlaces)
		amountIn := decimal.New(rapid.Int64Range(1, 1e12).Draw(t, "amountInMicro"), -domain.AmountPlaces)
		feeRate := decimal.New(rapid.Int64Range(0, 9900).Draw(t, "feeBps"), -4)

		q := Settle(reserveIn, reserveOut, amountIn, feeRate)
		if q.AmountInAfterFee.GreaterThan(amountIn) {
			t.Fatalf("credited %s exceeds paid %s", q.AmountInAfterFee, amountIn)
		}
		if !q.AmountOut.LessThan(reserveOut) || q.AmountOut.IsNegative() {
			t.Fatalf("output %s out of range for reserve %s", q.AmountOut, reserveOut)
		}

		before := reserveIn.Mul(reserveOut)
		after := reserveIn.Add(q.AmountInAfterFee).Mul(reserveOut.Sub(q.AmountOut))
		if after.LessThan(before) {
			t.Fatalf("product shrank from %s to %s", before, after)
		}

		preview := GetQuote(reserveIn, reserveOut, amountIn, feeRate)
		if diff := preview.AmountOut.Sub(q.AmountOut); diff.IsNegative() || diff.GreaterThan(decimal.New(1, -domain.AmountPlaces)) {
			t.Fatalf("settled %s drifts from preview %s", q.AmountOut, preview.AmountOut)
		}
	})
}
