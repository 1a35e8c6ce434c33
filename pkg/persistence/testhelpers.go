package persistence

import "fmt"

// NewTestAttemptRecord returns a finished hardware attempt started at startedAt
func NewTestAttemptRecord(id string, startedAt int64) *AttemptRecord {
	return &AttemptRecord{
		ID:            id,
		Generation:    uint64(startedAt),
		Address:       fmt.Sprintf("ADDR-%s", id),
		SignerAddress: fmt.Sprintf("ADDR-%s", id),
		Hardware:      true,
		DeviceName:    "Nano X",
		StartedAt:     startedAt,
		FinishedAt:    startedAt + 1500,
		Outcome:       OutcomeSigned,
		TransactionID: fmt.Sprintf("TX-%s", id),
	}
}
