package persistence

import (
	"fmt"
	"time"
)

type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSigned    Outcome = "signed"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeRejected  Outcome = "rejected"
	OutcomeCancelled Outcome = "cancelled"
)

func (o Outcome) IsFinal() bool {
	return o != OutcomePending && o != ""
}

func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomePending, OutcomeSigned, OutcomeFailed, OutcomeTimedOut, OutcomeRejected, OutcomeCancelled:
		return o, nil
	default:
		return "", fmt.Errorf("unknown attempt outcome: %s", s)
	}
}

// AttemptRecord is the journaled view of one signing attempt.
type AttemptRecord struct {
	// ID is the attempt id handed out by the coordinator and the storage key
	ID string `json:"id"`

	// Generation orders attempts within one coordinator lifetime
	Generation uint64 `json:"generation"`

	Address       string `json:"address"`
	SignerAddress string `json:"signerAddress"`

	// Hardware is true when the attempt was routed to a Ledger device
	Hardware   bool   `json:"hardware"`
	DeviceName string `json:"deviceName,omitempty"`

	// StartedAt and FinishedAt are unix milliseconds. FinishedAt is zero while
	// the attempt is pending.
	StartedAt  int64 `json:"startedAt"`
	FinishedAt int64 `json:"finishedAt,omitempty"`

	Outcome Outcome `json:"outcome"`

	// ErrorKind and ErrorDetail mirror the SignError of failed attempts
	ErrorKind   string `json:"errorKind,omitempty"`
	ErrorDetail string `json:"errorDetail,omitempty"`

	// TransactionID is set when the transaction could be decoded
	TransactionID string `json:"transactionId,omitempty"`
}

// Duration returns how long the attempt ran, zero while pending
func (r *AttemptRecord) Duration() time.Duration {
	if r == nil || r.FinishedAt == 0 {
		return 0
	}
	return time.Duration(r.FinishedAt-r.StartedAt) * time.Millisecond
}

// Copy returns a copy safe from external mutation
func (r *AttemptRecord) Copy() *AttemptRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
