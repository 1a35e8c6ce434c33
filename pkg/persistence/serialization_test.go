package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMarshalUnmarshalAttemptRecord_RoundTrip tests JSON marshaling/unmarshaling
func TestMarshalUnmarshalAttemptRecord_RoundTrip(t *testing.T) {
	original := &AttemptRecord{
		ID:            "b7c6a3f0-attempt",
		Generation:    4,
		Address:       "OWNER",
		SignerAddress: "AUTH",
		Hardware:      true,
		DeviceName:    "Nano X",
		StartedAt:     1700000000000,
		FinishedAt:    1700000004500,
		Outcome:       OutcomeFailed,
		ErrorKind:     "ledger",
		ErrorDetail:   "connect",
		TransactionID: "TXID",
	}

	data, err := MarshalAttemptRecord(original)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := UnmarshalAttemptRecord(data)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
	assert.Equal(t, 4500*time.Millisecond, restored.Duration())
}

func TestMarshalAttemptRecord_InvalidInput(t *testing.T) {
	_, err := MarshalAttemptRecord(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil AttemptRecord")

	_, err = MarshalAttemptRecord(&AttemptRecord{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without id")
}

func TestUnmarshalAttemptRecord_InvalidData(t *testing.T) {
	_, err := UnmarshalAttemptRecord(nil)
	require.Error(t, err)

	_, err = UnmarshalAttemptRecord([]byte(`{"id": 12}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")

	_, err = UnmarshalAttemptRecord([]byte(`{"id": "a", "outcome": "exploded"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown attempt outcome")
}

func TestSortAttempts(t *testing.T) {
	records := []*AttemptRecord{
		{ID: "c", StartedAt: 30},
		{ID: "b", StartedAt: 10, Generation: 2},
		{ID: "a", StartedAt: 10, Generation: 1},
	}
	SortAttempts(records)

	ids := []string{records[0].ID, records[1].ID, records[2].ID}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestAttemptRecord_Pending(t *testing.T) {
	r := &AttemptRecord{ID: "a", StartedAt: 10, Outcome: OutcomePending}
	assert.Zero(t, r.Duration())
	assert.False(t, r.Outcome.IsFinal())
	assert.True(t, OutcomeCancelled.IsFinal())
}
