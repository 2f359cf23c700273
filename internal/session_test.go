package internal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/dexsim/config"
	"github.com/vadiminshakov/dexsim/internal/domain"
	"github.com/vadiminshakov/dexsim/internal/services/oracle"
	"github.com/vadiminshakov/dexsim/internal/storage/blobstore"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.StateDir = filepath.Join(dir, "state")
	cfg.JournalDir = filepath.Join(dir, "trades")
	cfg.Oracle.Interval = 20 * time.Millisecond
	return cfg
}

func TestSession_OracleFeedsHistoryAndStreams(t *testing.T) {
	s, err := NewSession(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ch := s.Prices.Subscribe()
	defer s.Prices.Unsubscribe(ch)

	_, err = s.Oracle.SetPrices(map[domain.Symbol]decimal.Decimal{domain.TLSA: decimal.NewFromInt(125)})
	require.NoError(t, err)

	got := <-ch
	assert.True(t, got.Prices[domain.TLSA].Equal(decimal.NewFromInt(125)))
	require.Len(t, s.History.Points(domain.TLSA), 1)
	assert.True(t, s.History.Points(domain.TLSA)[0].P.Equal(decimal.NewFromInt(125)))
}

func TestSession_TradesAreJournaled(t *testing.T) {
	s, err := NewSession(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Desk.Mint(context.Background(), domain.TLSA, decimal.NewFromInt(240))
	require.NoError(t, err)

	records, err := s.Journal.ReceiptsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Receipt.AmountOut.Equal(decimal.NewFromInt(2)))
}

func TestSession_StateSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)

	first, err := NewSession(cfg, zap.NewNop())
	require.NoError(t, err)
	_, err = first.Desk.Swap(context.Background(), domain.USDA, domain.TLSA, decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSession(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	assert.True(t, second.Balances.Get(domain.USDA).Equal(decimal.NewFromInt(9000)))
	p, err := second.Pools.Get(domain.PoolTLSA)
	require.NoError(t, err)
	assert.True(t, p.ReserveStable.Equal(decimal.NewFromInt(120997)))
	assert.Equal(t, uint64(1), second.Journal.CurrentIndex())
}

func TestSession_LevelDBBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.StateBackend = blobstore.BackendLevelDB

	first, err := NewSession(cfg, zap.NewNop())
	require.NoError(t, err)
	_, err = first.Desk.Mint(context.Background(), domain.CRCL, decimal.NewFromInt(480))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSession(cfg, zap.NewNop())
	require.NoError(t, err, "closing the session releases the leveldb lock")
	t.Cleanup(func() { _ = second.Close() })

	assert.True(t, second.Balances.Get(domain.CRCL).Equal(decimal.NewFromInt(2)))
}

func TestSession_RunBackfillsAndStops(t *testing.T) {
	s, err := NewSession(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.History.Len(domain.TLSA) > 240
	}, 2*time.Second, 10*time.Millisecond, "backfill plus live ticks")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop")
	}
	assert.Equal(t, oracle.StateRunning, s.Oracle.State())
}

func TestSession_RunPausedDoesNotTick(t *testing.T) {
	cfg := testConfig(t)
	cfg.Oracle.Paused = true
	cfg.History.Backfill = false

	s, err := NewSession(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, s.History.Len(domain.TLSA))

	cancel()
	assert.NoError(t, <-done)
}
