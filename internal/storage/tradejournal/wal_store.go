// Package tradejournal keeps an append-only log of executed trades.
package tradejournal

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/dexsim/internal/domain"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultJournalDir   = "./wal/trades"
	journalSegmentLimit = 500
	journalMaxSegments  = 20
	receiptKeyPrefix    = "trade_"
)

var errNotInitialized = errors.New("trade journal is not initialized")

// WALStore persists trade receipts in a WAL so streams can resume by index.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens or creates the journal under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "trades_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init trade journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the receipt and returns its index.
func (s *WALStore) Save(r domain.TradeReceipt) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errNotInitialized
	}
	if r.ID == "" {
		return 0, errors.New("trade receipt id is required")
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return 0, errors.Wrap(err, "marshal trade receipt")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(idx, receiptKeyPrefix+string(r.Kind), payload); err != nil {
		return 0, errors.Wrapf(err, "write trade receipt %s", r.ID)
	}
	return idx, nil
}

// ReceiptsAfter returns every receipt written after index, oldest first.
func (s *WALStore) ReceiptsAfter(index uint64) ([]domain.TradeReceiptRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errNotInitialized
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.TradeReceiptRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, receiptKeyPrefix) {
			continue
		}
		var r domain.TradeReceipt
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, errors.Wrapf(err, "decode trade receipt at %d", idx)
		}
		records = append(records, domain.TradeReceiptRecord{Index: idx, Receipt: r})
	}

	return records, nil
}

// Recent returns up to n of the latest receipts, oldest first.
func (s *WALStore) Recent(n int) ([]domain.TradeReceiptRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	current := s.CurrentIndex()
	var from uint64
	if current > uint64(n) {
		from = current - uint64(n)
	}
	return s.ReceiptsAfter(from)
}

// CurrentIndex returns the index of the latest receipt.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
