package balance

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/dexsim/internal/domain"
	"github.com/vadiminshakov/dexsim/internal/storage/blobstore"
	storeMock "github.com/vadiminshakov/dexsim/mocks/blobstore"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedger_SeedDefaults(t *testing.T) {
	l := NewLedger(blobstore.NewMemStore(), zap.NewNop())

	assert.True(t, l.Get(domain.USDA).Equal(decimal.NewFromInt(10000)))
	assert.True(t, l.Get(domain.TLSA).IsZero())
	assert.True(t, l.Get(domain.CRCL).IsZero())
}

func TestLedger_AddRoundsToSixPlaces(t *testing.T) {
	l := NewLedger(blobstore.NewMemStore(), zap.NewNop())

	require.NoError(t, l.Add(domain.TLSA, dec("4.16666666666")))
	assert.True(t, l.Get(domain.TLSA).Equal(dec("4.166667")), "got %s", l.Get(domain.TLSA))
}

func TestLedger_AddRejectsOverdraw(t *testing.T) {
	l := NewLedger(blobstore.NewMemStore(), zap.NewNop())

	err := l.Add(domain.USDA, dec("-10000.000001"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, l.Get(domain.USDA).Equal(decimal.NewFromInt(10000)), "rejected delta must not mutate")
}

func TestLedger_ApplyIsAllOrNothing(t *testing.T) {
	l := NewLedger(blobstore.NewMemStore(), zap.NewNop())

	err := l.Apply(
		Delta{Symbol: domain.USDA, Amount: dec("-100")},
		Delta{Symbol: domain.TLSA, Amount: dec("-1")},
	)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, l.Get(domain.USDA).Equal(decimal.NewFromInt(10000)))

	err = l.Apply(Delta{Symbol: domain.Symbol("BTC"), Amount: dec("1")})
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestLedger_ResetIsIdempotent(t *testing.T) {
	l := NewLedger(blobstore.NewMemStore(), zap.NewNop())
	require.NoError(t, l.Add(domain.USDA, dec("-500")))
	require.NoError(t, l.Add(domain.CRCL, dec("2")))

	l.Reset()
	once := l.All()
	l.Reset()
	twice := l.All()

	assert.Equal(t, once, twice)
	assert.True(t, twice[domain.USDA].Equal(decimal.NewFromInt(10000)))
}

func TestLedger_PersistsAndRestores(t *testing.T) {
	store := blobstore.NewMemStore()
	l := NewLedger(store, zap.NewNop())
	require.NoError(t, l.Add(domain.USDA, dec("-500")))
	require.NoError(t, l.Add(domain.TLSA, dec("4.166667")))

	restored := NewLedger(store, zap.NewNop())
	assert.True(t, restored.Get(domain.USDA).Equal(dec("9500")))
	assert.True(t, restored.Get(domain.TLSA).Equal(dec("4.166667")))
}

func TestLedger_CorruptBlobFallsBackToSeed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "garbage", payload: "{not json"},
		{name: "negative balance", payload: `{"USDA":"-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := blobstore.NewMemStore()
			require.NoError(t, store.Set(StoreKey, []byte(tt.payload)))

			l := NewLedger(store, zap.NewNop())
			assert.True(t, l.Get(domain.USDA).Equal(decimal.NewFromInt(10000)))
		})
	}
}

func TestLedger_PersistFailureIsSwallowed(t *testing.T) {
	store := storeMock.NewStore(t)
	store.On("Get", StoreKey).Return(nil, false, errors.New("store unavailable"))
	store.On("Set", StoreKey, mock.Anything).Return(errors.New("quota exceeded"))

	l := NewLedger(store, zap.NewNop())
	require.NoError(t, l.Add(domain.USDA, dec("-1")))
	assert.True(t, l.Get(domain.USDA).Equal(dec("9999")))
}
