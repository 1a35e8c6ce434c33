package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/walletkit/txsign/pkg/persistence"
	"go.uber.org/zap"
)

const (
	keyPrefixAttempt     = "attempt:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "attempts-v1"

	gcInterval     = 5 * time.Minute
	gcDiscardRatio = 0.5
)

// BadgerPersistence journals attempts on local disk
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.IAttemptPersistence = (*BadgerPersistence)(nil)

// NewBadgerPersistence opens (or creates) the journal at dataPath and starts
// the value log GC loop.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &zapBadgerLogger{sugar: logger.Sugar().With("component", "badger")}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger attempt journal opened", "path", absPath)
	return bp, nil
}

func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existing string
		if err := item.Value(func(val []byte) error {
			existing = string(val)
			return nil
		}); err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}
		if existing != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.db.RunValueLogGC(gcDiscardRatio); err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func attemptKey(id string) []byte {
	return []byte(keyPrefixAttempt + id)
}

func (b *BadgerPersistence) SaveAttempt(record *persistence.AttemptRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil AttemptRecord")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalAttemptRecord(record)
	if err != nil {
		return err
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(attemptKey(record.ID), data)
	})
}

func (b *BadgerPersistence) LoadAttempt(id string) (*persistence.AttemptRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(attemptKey(id))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt %s: %w", id, err)
	}
	if data == nil {
		return nil, nil
	}

	return persistence.UnmarshalAttemptRecord(data)
}

func (b *BadgerPersistence) ListAttempts() ([]*persistence.AttemptRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	records := make([]*persistence.AttemptRecord, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixAttempt)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			record, err := persistence.UnmarshalAttemptRecord(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal AttemptRecord, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	persistence.SortAttempts(records)
	return records, nil
}

func (b *BadgerPersistence) DeleteAttempt(id string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(attemptKey(id))
	})
}

// Close stops GC and closes the database. Idempotent.
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger attempt journal closed")
	return nil
}

func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}

// zapBadgerLogger routes badger's internal logging through zap
type zapBadgerLogger struct {
	sugar *zap.SugaredLogger
}

var _ badgerdb.Logger = (*zapBadgerLogger)(nil)

func (l *zapBadgerLogger) Errorf(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

func (l *zapBadgerLogger) Warningf(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Infof is demoted to debug, badger is chatty at info
func (l *zapBadgerLogger) Infof(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

func (l *zapBadgerLogger) Debugf(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}
