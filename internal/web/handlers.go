package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dexsim/internal/amm"
	"github.com/vadiminshakov/dexsim/internal/domain"
	"github.com/vadiminshakov/dexsim/internal/services/desk"
	"github.com/vadiminshakov/dexsim/internal/services/indicators"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

type stateResponse struct {
	Balances    map[domain.Symbol]decimal.Decimal  `json:"balances"`
	Pools       map[domain.PoolKey]domain.Pool     `json:"pools"`
	Prices      domain.PriceSnapshot               `json:"prices"`
	OracleState string                             `json:"oracle_state"`
	FeeRate     decimal.Decimal                    `json:"fee_rate"`
	SpotPrices  map[domain.PoolKey]decimal.Decimal `json:"spot_prices"`
}

type oracleResponse struct {
	State  string               `json:"state"`
	Prices domain.PriceSnapshot `json:"prices"`
}

type mintRequest struct {
	Asset  domain.Symbol   `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

type swapRequest struct {
	From   domain.Symbol   `json:"from"`
	To     domain.Symbol   `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type pricesRequest struct {
	Prices map[domain.Symbol]decimal.Decimal `json:"prices"`
}

type candlesResponse struct {
	Symbol  domain.Symbol      `json:"symbol"`
	FrameMs int64              `json:"frame_ms"`
	Candles []domain.Candle    `json:"candles"`
	Overlay []indicators.Point `json:"overlay"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

func (s *Server) state() stateResponse {
	pools := s.deps.Pools.All()
	spot := make(map[domain.PoolKey]decimal.Decimal, len(pools))
	for key, p := range pools {
		spot[key] = domain.RoundPrice(amm.SpotPrice(p.ReserveAsset, p.ReserveStable))
	}
	return stateResponse{
		Balances:    s.deps.Balances.All(),
		Pools:       pools,
		Prices:      s.deps.Oracle.Prices(),
		OracleState: s.deps.Oracle.State().String(),
		FeeRate:     s.deps.Desk.FeeRate(),
		SpotPrices:  spot,
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := domain.ParseSymbol(q.Get("from"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err, "bad_request")
		return
	}
	to, err := domain.ParseSymbol(q.Get("to"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err, "bad_request")
		return
	}
	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "amount"), "bad_request")
		return
	}

	quote, err := s.deps.Desk.Quote(from, to, amount)
	if err != nil {
		s.writeDeskError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !s.decode(w, r, &req) {
		return
	}

	receipt, err := s.deps.Desk.Mint(r.Context(), req.Asset, req.Amount)
	if err != nil {
		s.writeDeskError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if !s.decode(w, r, &req) {
		return
	}

	receipt, err := s.deps.Desk.Swap(r.Context(), req.From, req.To, req.Amount)
	if err != nil {
		s.writeDeskError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.deps.Desk.Reset()
	s.writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleOraclePause(w http.ResponseWriter, r *http.Request) {
	s.deps.Oracle.Pause()
	s.writeOracle(w, s.deps.Oracle.Prices())
}

func (s *Server) handleOracleResume(w http.ResponseWriter, r *http.Request) {
	s.deps.Oracle.Resume()
	s.writeOracle(w, s.deps.Oracle.Prices())
}

func (s *Server) handleOracleStep(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := s.deps.Oracle.Step()
	if !ok {
		s.writeError(w, http.StatusConflict, errors.New("oracle is paused"), "paused")
		return
	}
	s.writeOracle(w, snapshot)
}

func (s *Server) handleOracleReset(w http.ResponseWriter, r *http.Request) {
	s.writeOracle(w, s.deps.Oracle.Reset())
}

func (s *Server) handleOraclePrices(w http.ResponseWriter, r *http.Request) {
	var req pricesRequest
	if !s.decode(w, r, &req) {
		return
	}

	snapshot, err := s.deps.Oracle.SetPrices(req.Prices)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err, "bad_request")
		return
	}
	s.writeOracle(w, snapshot)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sym, err := domain.ParseSymbol(q.Get("symbol"))
	if err != nil || !sym.IsAsset() {
		s.writeError(w, http.StatusBadRequest, errors.Errorf("symbol %q is not an asset", q.Get("symbol")), "bad_request")
		return
	}

	frame := s.deps.Frame
	if raw := q.Get("frame"); raw != "" {
		frame, err = time.ParseDuration(raw)
		if err != nil || frame < time.Second {
			s.writeError(w, http.StatusBadRequest, errors.Errorf("invalid frame %q", raw), "bad_request")
			return
		}
	}

	candles := s.deps.History.Candles(sym, frame)
	if candles == nil {
		candles = []domain.Candle{}
	}
	overlay := indicators.Overlay(candles, indicators.DefaultPeriods())
	if overlay == nil {
		overlay = []indicators.Point{}
	}

	s.writeJSON(w, http.StatusOK, candlesResponse{
		Symbol:  sym,
		FrameMs: frame.Milliseconds(),
		Candles: candles,
		Overlay: overlay,
	})
}

func (s *Server) handleHistoryReset(w http.ResponseWriter, r *http.Request) {
	s.deps.History.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeOracle(w http.ResponseWriter, snapshot domain.PriceSnapshot) {
	s.writeJSON(w, http.StatusOK, oracleResponse{
		State:  s.deps.Oracle.State().String(),
		Prices: snapshot,
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode request"), "bad_request")
		return false
	}
	return true
}

func (s *Server) writeDeskError(w http.ResponseWriter, err error) {
	reason := desk.Reason(err)
	status := http.StatusInternalServerError
	switch reason {
	case "unsupported_pair", "non_positive_amount", "precision", "not_asset":
		status = http.StatusBadRequest
	case "insufficient_balance", "zero_output", "reserve_overdraw":
		status = http.StatusUnprocessableEntity
	case "missing_price":
		status = http.StatusServiceUnavailable
	}
	s.writeError(w, status, err, reason)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error, reason string) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("reason", reason), zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Reason: reason})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}
