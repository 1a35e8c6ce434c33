package signingCoordinator

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/walletkit/txsign/pkg/ledgerOperation"
	"github.com/walletkit/txsign/pkg/metrics"
	"github.com/walletkit/txsign/pkg/persistence"
	"github.com/walletkit/txsign/pkg/types"
)

// signingAttempt is the single in-flight signing request of a coordinator.
// The unsigned transaction and account are bound at creation and never change.
type signingAttempt struct {
	id         string
	generation uint64

	unsigned []byte
	account  *types.Account

	startedAt     time.Time
	transactionID string
	deviceName    string

	// hardware path only
	timer     *clock.Timer
	operation ledgerOperation.IOperation
	cancel    context.CancelFunc

	terminal bool
}

func (a *signingAttempt) hardware() bool {
	return a.account.RequiresHardware()
}

func (a *signingAttempt) path() string {
	if a.hardware() {
		return metrics.PathHardware
	}
	return metrics.PathLocal
}

// release stops the timer and the device operation. Safe to call repeatedly.
func (a *signingAttempt) release() {
	if a.timer != nil {
		a.timer.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.operation != nil {
		a.operation.Stop()
	}
}

func (a *signingAttempt) record(outcome persistence.Outcome, finishedAt time.Time, signErr *types.SignError) *persistence.AttemptRecord {
	r := &persistence.AttemptRecord{
		ID:            a.id,
		Generation:    a.generation,
		Address:       a.account.Address,
		SignerAddress: a.account.SignerAddress(),
		Hardware:      a.hardware(),
		DeviceName:    a.deviceName,
		StartedAt:     a.startedAt.UnixMilli(),
		Outcome:       outcome,
		TransactionID: a.transactionID,
	}
	if outcome.IsFinal() {
		r.FinishedAt = finishedAt.UnixMilli()
	}
	if signErr != nil {
		r.ErrorKind = string(signErr.Kind)
		r.ErrorDetail = signErr.Detail()
	}
	return r
}

func outcomeOf(ev types.SigningEvent) persistence.Outcome {
	switch ev.Kind {
	case types.SigningEventSigned:
		return persistence.OutcomeSigned
	case types.SigningEventFailed:
		return persistence.OutcomeFailed
	case types.SigningEventTimedOut:
		return persistence.OutcomeTimedOut
	case types.SigningEventHardwareRejected:
		return persistence.OutcomeRejected
	default:
		return persistence.OutcomePending
	}
}
