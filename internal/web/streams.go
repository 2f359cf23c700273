package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

func prepareStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
	return nil
}

// handlePriceStream sends the current prices, then every snapshot the oracle emits.
func (s *Server) handlePriceStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Prices == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "price stream not available")
		return
	}
	flusher, ok := prepareStream(w)
	if !ok {
		return
	}

	ch := s.deps.Prices.Subscribe()
	defer s.deps.Prices.Unsubscribe(ch)

	// send a comment heartbeat so proxies keep connection
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	if err := writeEvent(w, flusher, "prices", s.deps.Oracle.Prices()); err != nil {
		s.logger.Warn("price stream initial write", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case snapshot, open := <-ch:
			if !open {
				return
			}
			if err := writeEvent(w, flusher, "prices", snapshot); err != nil {
				s.logger.Warn("price stream write", zap.Error(err))
			}
		}
	}
}

// handleTradeStream replays recent journaled trades and polls for new ones.
// ?after=N resumes after journal index N.
func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Trades == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "trade journal not available")
		return
	}

	lastIndex := uint64(0)
	if current := s.deps.Trades.CurrentIndex(); current > tradeReplayLimit {
		lastIndex = current - tradeReplayLimit
	}
	if raw := r.URL.Query().Get("after"); raw != "" {
		after, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid after index", http.StatusBadRequest)
			return
		}
		lastIndex = after
	}

	flusher, ok := prepareStream(w)
	if !ok {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(tradePollInterval)
	defer pollTicker.Stop()

	sendTrades := func() error {
		records, err := s.deps.Trades.ReceiptsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			if err := writeEvent(w, flusher, "trade", record.Receipt); err != nil {
				return err
			}
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendTrades(); err != nil {
		s.logger.Error("trade stream initial load", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendTrades(); err != nil {
				s.logger.Warn("trade stream poll", zap.Error(err))
			}
		}
	}
}
