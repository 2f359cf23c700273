package internal

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/dexsim/config"
	"github.com/vadiminshakov/dexsim/internal/domain"
	"github.com/vadiminshakov/dexsim/internal/events"
	"github.com/vadiminshakov/dexsim/internal/metrics"
	"github.com/vadiminshakov/dexsim/internal/services/balance"
	"github.com/vadiminshakov/dexsim/internal/services/desk"
	"github.com/vadiminshakov/dexsim/internal/services/history"
	"github.com/vadiminshakov/dexsim/internal/services/oracle"
	"github.com/vadiminshakov/dexsim/internal/services/pool"
	"github.com/vadiminshakov/dexsim/internal/storage/blobstore"
	"github.com/vadiminshakov/dexsim/internal/storage/tradejournal"
	"github.com/vadiminshakov/dexsim/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const priceStreamBuffer = 256

// Session owns every component of one simulator instance.
type Session struct {
	Config config.Config

	Store    blobstore.Store
	Balances *balance.Ledger
	Pools    *pool.Ledger
	Oracle   *oracle.Oracle
	History  *history.Aggregator
	Desk     *desk.Desk
	Prices   *events.PriceBroadcaster
	Journal  *tradejournal.WALStore
	Metrics  *metrics.Metrics
	Server   *web.Server

	logger *zap.Logger
}

// NewSession restores persisted state and wires the components together.
func NewSession(conf config.Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := blobstore.Open(conf.StateBackend, conf.StateDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open state store")
	}

	journal, err := tradejournal.NewWALStore(conf.JournalDir)
	if err != nil {
		closeStore(store)
		return nil, errors.Wrap(err, "failed to open trade journal")
	}

	m := metrics.New()
	prices := events.NewPriceBroadcaster(priceStreamBuffer)
	prices.OnDrop(func() { m.ObserveStreamDrop("prices") })

	hist := history.New(store, logger.Named("history"))
	orc := oracle.New(store, logger.Named("oracle"),
		oracle.WithInterval(conf.Oracle.Interval),
		oracle.WithVolatilityBps(conf.Oracle.VolatilityBps),
		oracle.WithDrift(conf.Oracle.Drift),
		oracle.WithPaused(conf.Oracle.Paused),
		oracle.WithSink(oracle.SinkFunc(func(s domain.PriceSnapshot) {
			hist.OnPriceSnapshot(s)
			for _, sym := range domain.Assets() {
				m.ObserveHistory(sym, hist.Len(sym))
			}
		})),
		oracle.WithSink(m),
		oracle.WithSink(prices),
	)

	balances := balance.NewLedger(store, logger.Named("balances"))
	pools := pool.NewLedger(store, logger.Named("pools"))
	d := desk.New(balances, pools, orc, logger.Named("desk"),
		desk.WithFeeRate(conf.AMM.FeeRate),
		desk.WithJournal(journal),
		desk.WithMetrics(m),
	)
	for key, p := range pools.All() {
		m.ObservePool(key, p)
	}

	srv := web.NewServer(conf.ListenAddr, web.Deps{
		Desk:     d,
		Balances: balances,
		Pools:    pools,
		Oracle:   orc,
		History:  hist,
		Prices:   prices,
		Trades:   journal,
		Metrics:  m.Handler(),
		Frame:    conf.History.Frame,
	}, logger.Named("web"))

	return &Session{
		Config:   conf,
		Store:    store,
		Balances: balances,
		Pools:    pools,
		Oracle:   orc,
		History:  hist,
		Desk:     d,
		Prices:   prices,
		Journal:  journal,
		Metrics:  m,
		Server:   srv,
		logger:   logger,
	}, nil
}

// Run starts the oracle and the HTTP server and blocks until ctx is cancelled or the server fails.
func (s *Session) Run(ctx context.Context) error {
	if s.Config.History.Backfill {
		if s.History.Backfill(time.Now(), s.Oracle.Prices()) {
			for _, sym := range domain.Assets() {
				s.Metrics.ObserveHistory(sym, s.History.Len(sym))
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	s.Oracle.Start(ctx)
	g.Go(func() error {
		<-ctx.Done()
		s.Oracle.Stop()
		return nil
	})

	g.Go(func() error {
		var err error
		if tlsConf := s.Config.TLS; tlsConf.Enabled() {
			err = s.Server.StartWithAutoTLS(ctx, tlsConf.Domains, tlsConf.CacheDir)
		} else {
			err = s.Server.Start(ctx)
		}
		if err != nil {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	s.logger.Info("session started",
		zap.String("addr", s.Config.ListenAddr),
		zap.Bool("tls", s.Config.TLS.Enabled()),
		zap.String("state_dir", s.Config.StateDir),
		zap.Stringer("oracle", s.Oracle.State()))

	return g.Wait()
}

// Close releases the trade journal and the state store.
func (s *Session) Close() error {
	err := s.Journal.Close()
	if c, ok := s.Store.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func closeStore(store blobstore.Store) {
	if c, ok := store.(io.Closer); ok {
		_ = c.Close()
	}
}
