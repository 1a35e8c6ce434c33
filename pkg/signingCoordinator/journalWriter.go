package signingCoordinator

import (
	"sync"

	"github.com/walletkit/txsign/pkg/persistence"
	"go.uber.org/zap"
)

const journalQueueSize = 64

// journalWriter saves attempt records off the coordinator's critical path.
// Journal failures are logged and never affect signing.
type journalWriter struct {
	journal persistence.IAttemptPersistence
	logger  *zap.Logger

	mu      sync.Mutex
	closed  bool
	records chan *persistence.AttemptRecord
	wg      sync.WaitGroup
}

func newJournalWriter(journal persistence.IAttemptPersistence, logger *zap.Logger) *journalWriter {
	w := &journalWriter{
		journal: journal,
		logger:  logger,
		records: make(chan *persistence.AttemptRecord, journalQueueSize),
	}
	if journal == nil {
		return w
	}

	w.wg.Add(1)
	go w.run()
	return w
}

func (w *journalWriter) save(record *persistence.AttemptRecord) {
	if w.journal == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	select {
	case w.records <- record:
	default:
		w.logger.Sugar().Warnw("Attempt journal queue full, dropping record", "attemptId", record.ID, "outcome", record.Outcome)
	}
}

func (w *journalWriter) run() {
	defer w.wg.Done()

	for record := range w.records {
		if err := w.journal.SaveAttempt(record); err != nil {
			w.logger.Sugar().Warnw("Failed to journal signing attempt", "attemptId", record.ID, "error", err)
		}
	}
}

// close flushes queued records
func (w *journalWriter) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.records)
	w.mu.Unlock()

	w.wg.Wait()
}
