package dashboard

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/swiftlens/swiftlens/internal/logging"
)

// recordTTL is how long execution records stay on disk.
const recordTTL = 7 * 24 * time.Hour

// Store persists execution records in an embedded BadgerDB. Keys are
// nanosecond timestamps plus the record id, so a reverse scan yields
// newest-first without a secondary index.
type Store struct {
	db  *badger.DB
	log *logging.AppLogger
}

// StoreConfig configures the record store.
type StoreConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM; used by tests.
	InMemory bool
}

// OpenStore opens (or creates) the record store.
func OpenStore(cfg StoreConfig, log *logging.AppLogger) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open dashboard store: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func recordKey(r ExecutionRecord) []byte {
	return []byte(fmt.Sprintf("log:%020d:%s", r.StartedAt.UnixNano(), r.ID))
}

// Put writes or overwrites one record.
func (s *Store) Put(r ExecutionRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(recordKey(r), data).WithTTL(recordTTL)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var records []ExecutionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte("log:")
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek past the prefix range.
		for it.Seek([]byte("log:\xff")); it.Valid() && len(records) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var r ExecutionRecord
				if err := json.Unmarshal(val, &r); err != nil {
					// Skip corrupt entries rather than failing the page.
					if s.log != nil {
						s.log.Warn("skipping corrupt dashboard record", "error", err)
					}
					return nil
				}
				records = append(records, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return records, nil
}

// Stats aggregates every stored record.
func (s *Store) Stats() (Stats, error) {
	stats := Stats{ByTool: make(map[string]int)}
	var totalMS float64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("log:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte("log:")); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var r ExecutionRecord
				if err := json.Unmarshal(val, &r); err != nil {
					return nil
				}
				stats.TotalExecutions++
				stats.ByTool[r.ToolName]++
				totalMS += r.DurationMS
				if r.Status == StatusError {
					stats.Errors++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate records: %w", err)
	}

	if stats.TotalExecutions > 0 {
		stats.AvgDurationMS = totalMS / float64(stats.TotalExecutions)
	}
	return stats, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
