package badger

import (
	"fmt"
	"sync"
	"testing"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walletkit/txsign/pkg/logger"
	"github.com/walletkit/txsign/pkg/persistence"
)

func newTestBadger(t *testing.T, dir string) *BadgerPersistence {
	t.Helper()

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	bp, err := NewBadgerPersistence(dir, testLogger)
	require.NoError(t, err)
	return bp
}

func TestBadgerPersistence_SaveAndLoadAttempt(t *testing.T) {
	bp := newTestBadger(t, t.TempDir())
	defer func() { _ = bp.Close() }()

	record := persistence.NewTestAttemptRecord("attempt-1", 1000)
	require.NoError(t, bp.SaveAttempt(record))

	loaded, err := bp.LoadAttempt("attempt-1")
	require.NoError(t, err)
	assert.Equal(t, record, loaded)
}

func TestBadgerPersistence_LoadAttempt_NotFound(t *testing.T) {
	bp := newTestBadger(t, t.TempDir())
	defer func() { _ = bp.Close() }()

	loaded, err := bp.LoadAttempt("missing")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestBadgerPersistence_SaveAttempt_Nil(t *testing.T) {
	bp := newTestBadger(t, t.TempDir())
	defer func() { _ = bp.Close() }()

	err := bp.SaveAttempt(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil AttemptRecord")
}

func TestBadgerPersistence_DeleteAttempt(t *testing.T) {
	bp := newTestBadger(t, t.TempDir())
	defer func() { _ = bp.Close() }()

	require.NoError(t, bp.SaveAttempt(persistence.NewTestAttemptRecord("attempt-1", 1000)))
	require.NoError(t, bp.DeleteAttempt("attempt-1"))
	require.NoError(t, bp.DeleteAttempt("attempt-1"))

	loaded, err := bp.LoadAttempt("attempt-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestBadgerPersistence_ListAttempts(t *testing.T) {
	bp := newTestBadger(t, t.TempDir())
	defer func() { _ = bp.Close() }()

	empty, err := bp.ListAttempts()
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, startedAt := range []int64{300, 100, 200} {
		require.NoError(t, bp.SaveAttempt(persistence.NewTestAttemptRecord(fmt.Sprintf("a-%d", startedAt), startedAt)))
	}

	all, err := bp.ListAttempts()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a-100", all[0].ID)
	assert.Equal(t, "a-300", all[2].ID)
}

func TestBadgerPersistence_ListAttempts_SkipsCorruptEntries(t *testing.T) {
	bp := newTestBadger(t, t.TempDir())
	defer func() { _ = bp.Close() }()

	require.NoError(t, bp.SaveAttempt(persistence.NewTestAttemptRecord("good", 1)))
	require.NoError(t, bp.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(attemptKey("bad"), []byte("{not json"))
	}))

	all, err := bp.ListAttempts()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "good", all[0].ID)
}

func TestBadgerPersistence_Close(t *testing.T) {
	bp := newTestBadger(t, t.TempDir())
	require.NoError(t, bp.HealthCheck())

	require.NoError(t, bp.Close())
	require.NoError(t, bp.Close())

	assert.Error(t, bp.HealthCheck())
	err := bp.SaveAttempt(persistence.NewTestAttemptRecord("a", 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}

func TestBadgerPersistence_ThreadSafety(t *testing.T) {
	bp := newTestBadger(t, t.TempDir())
	defer func() { _ = bp.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, bp.SaveAttempt(persistence.NewTestAttemptRecord(fmt.Sprintf("a-%d", i), int64(i))))
		}(i)
		go func() {
			defer wg.Done()
			_, err := bp.ListAttempts()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := bp.ListAttempts()
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestBadgerPersistence_AcrossRestarts(t *testing.T) {
	dir := t.TempDir()

	bp := newTestBadger(t, dir)
	require.NoError(t, bp.SaveAttempt(persistence.NewTestAttemptRecord("attempt-1", 1000)))
	require.NoError(t, bp.Close())

	reopened := newTestBadger(t, dir)
	defer func() { _ = reopened.Close() }()

	loaded, err := reopened.LoadAttempt("attempt-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, persistence.OutcomeSigned, loaded.Outcome)
}

func TestBadgerPersistence_SchemaMismatch(t *testing.T) {
	dir := t.TempDir()

	bp := newTestBadger(t, dir)
	require.NoError(t, bp.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keySchemaVersion), []byte("v0"))
	}))
	require.NoError(t, bp.Close())

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	_, err := NewBadgerPersistence(dir, testLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema version")
}
