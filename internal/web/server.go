// Package web exposes the simulator over HTTP with JSON endpoints and SSE streams.
package web

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dexsim/internal/amm"
	"github.com/vadiminshakov/dexsim/internal/domain"
	"github.com/vadiminshakov/dexsim/internal/events"
	"github.com/vadiminshakov/dexsim/internal/services/oracle"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

const (
	tradePollInterval = 2 * time.Second
	heartbeatInterval = 30 * time.Second
	tradeReplayLimit  = 50

	acmeChallengeAddr = ":80"
	defaultCertCache  = "cert-cache"
)

// Desk executes trades.
type Desk interface {
	Mint(ctx context.Context, asset domain.Symbol, stableIn decimal.Decimal) (domain.TradeReceipt, error)
	Swap(ctx context.Context, from, to domain.Symbol, amountIn decimal.Decimal) (domain.TradeReceipt, error)
	Quote(from, to domain.Symbol, amountIn decimal.Decimal) (amm.Quote, error)
	Reset()
	FeeRate() decimal.Decimal
}

type BalanceReader interface {
	All() map[domain.Symbol]decimal.Decimal
}

type PoolReader interface {
	All() map[domain.PoolKey]domain.Pool
}

// Oracle controls the price feed.
type Oracle interface {
	Prices() domain.PriceSnapshot
	State() oracle.State
	Pause()
	Resume()
	Step() (domain.PriceSnapshot, bool)
	Reset() domain.PriceSnapshot
	SetPrices(prices map[domain.Symbol]decimal.Decimal) (domain.PriceSnapshot, error)
}

type History interface {
	Candles(sym domain.Symbol, frame time.Duration) []domain.Candle
	Reset()
}

// TradeReader reads journaled trades by index.
type TradeReader interface {
	ReceiptsAfter(index uint64) ([]domain.TradeReceiptRecord, error)
	CurrentIndex() uint64
}

// Deps are the components the server fronts. Trades and Metrics may be nil.
type Deps struct {
	Desk     Desk
	Balances BalanceReader
	Pools    PoolReader
	Oracle   Oracle
	History  History
	Prices   *events.PriceBroadcaster
	Trades   TradeReader
	Metrics  http.Handler
	Frame    time.Duration
}

// Server exposes HTTP endpoints serving the dashboard, the API and SSE streams.
type Server struct {
	Addr   string
	deps   Deps
	logger *zap.Logger
}

// NewServer creates a new web server instance.
func NewServer(addr string, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Frame <= 0 {
		deps.Frame = 10 * time.Second
	}
	return &Server{Addr: addr, deps: deps, logger: logger}
}

// Handler returns the routed endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /quote", s.handleQuote)
	mux.HandleFunc("POST /mint", s.handleMint)
	mux.HandleFunc("POST /swap", s.handleSwap)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("POST /oracle/pause", s.handleOraclePause)
	mux.HandleFunc("POST /oracle/resume", s.handleOracleResume)
	mux.HandleFunc("POST /oracle/step", s.handleOracleStep)
	mux.HandleFunc("POST /oracle/reset", s.handleOracleReset)
	mux.HandleFunc("POST /oracle/prices", s.handleOraclePrices)
	mux.HandleFunc("GET /candles", s.handleCandles)
	mux.HandleFunc("POST /history/reset", s.handleHistoryReset)
	mux.HandleFunc("GET /prices/stream", s.handlePriceStream)
	mux.HandleFunc("GET /trades/stream", s.handleTradeStream)
	mux.HandleFunc("GET /ws", s.handleWS)
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics)
	}
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := newHTTPServer(ctx, s.Addr, s.Handler())
	go shutdownOnDone(ctx, server)

	s.logger.Info("http server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS serves HTTPS on s.Addr with Let's Encrypt certificates for domains
// and answers ACME HTTP-01 challenges on :80. It blocks until ctx is cancelled.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}

	manager := newCertManager(domains, cacheDir)

	challenge := newHTTPServer(ctx, acmeChallengeAddr, manager.HTTPHandler(nil))
	server := newHTTPServer(ctx, s.Addr, s.Handler())
	server.TLSConfig = tlsConfig(manager)
	go shutdownOnDone(ctx, challenge, server)

	go func() {
		if err := challenge.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("acme challenge server failed", zap.Error(err))
		}
	}()

	s.logger.Info("https server listening",
		zap.String("addr", s.Addr),
		zap.Strings("domains", domains),
		zap.String("cert_cache", cacheDir))
	if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newCertManager(domains []string, cacheDir string) *autocert.Manager {
	if cacheDir == "" {
		cacheDir = defaultCertCache
	}
	return &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}
}

func tlsConfig(manager *autocert.Manager) *tls.Config {
	conf := manager.TLSConfig()
	conf.MinVersion = tls.VersionTLS12
	return conf
}

func newHTTPServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// request contexts, SSE streams included, are cancelled with ctx
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func shutdownOnDone(ctx context.Context, servers ...*http.Server) {
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}
