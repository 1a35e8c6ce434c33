package signingCoordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/walletkit/txsign/pkg/config"
	"github.com/walletkit/txsign/pkg/keystore"
	"github.com/walletkit/txsign/pkg/ledgerOperation"
	"github.com/walletkit/txsign/pkg/metrics"
	"github.com/walletkit/txsign/pkg/persistence"
	"github.com/walletkit/txsign/pkg/transactionSigner"
	"github.com/walletkit/txsign/pkg/types"
	"go.uber.org/zap"
)

var (
	ErrNilAccount         = errors.New("account is required")
	ErrAttemptInProgress  = errors.New("a signing attempt is already in progress")
	ErrCoordinatorClosed  = errors.New("signing coordinator is closed")
	errNoHardwareLink     = errors.New("no hardware link configured")
	errMissingSigningKey  = errors.New("no key material for signer address")
	errMissingTransaction = errors.New("unsigned transaction is empty")
)

type Config struct {
	// LedgerTimeout bounds the whole hardware round trip
	LedgerTimeout time.Duration

	// Clock schedules the timeout. Defaults to the wall clock.
	Clock clock.Clock

	// Journal and Metrics are optional
	Journal persistence.IAttemptPersistence
	Metrics *metrics.SigningMetrics

	Logger *zap.Logger
}

// ISigningCoordinator signs one transaction at a time and reports every
// outcome on Events
type ISigningCoordinator interface {
	SignTransaction(unsigned []byte, account *types.Account) (string, error)
	Disconnect()
	Events() <-chan types.SigningEvent
	Close()
}

// Coordinator routes a transaction to the local or hardware signer, bounds
// hardware attempts with a timeout and normalizes all outcomes into one event
// stream. Every attempt ends with exactly one terminal event unless it is
// cancelled with Disconnect.
type Coordinator struct {
	cfg          *Config
	logger       *zap.Logger
	keyStore     keystore.IKeyStore
	sdk          transactionSigner.ISigningSDK
	localSigner  transactionSigner.ITransactionSignable
	newOperation ledgerOperation.Factory

	mu         sync.Mutex
	generation uint64
	attempt    *signingAttempt
	closed     bool

	stream  *eventStream
	journal *journalWriter
}

var _ ISigningCoordinator = (*Coordinator)(nil)

// NewCoordinator creates a coordinator. newOperation may be nil when no
// hardware link is available, hardware attempts then fail with a transport
// error.
func NewCoordinator(
	cfg *Config,
	keyStore keystore.IKeyStore,
	sdk transactionSigner.ISigningSDK,
	newOperation ledgerOperation.Factory,
) *Coordinator {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	if c.LedgerTimeout <= 0 {
		c.LedgerTimeout = config.DefaultLedgerTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	return &Coordinator{
		cfg:          &c,
		logger:       c.Logger,
		keyStore:     keyStore,
		sdk:          sdk,
		localSigner:  transactionSigner.NewLocalSigner(sdk, c.Logger),
		newOperation: newOperation,
		stream:       newEventStream(),
		journal:      newJournalWriter(c.Journal, c.Logger),
	}
}

// Events returns the stream of signing events. It is closed by Close.
func (c *Coordinator) Events() <-chan types.SigningEvent {
	return c.stream.out
}

// SignTransaction starts an attempt and returns its id immediately. Outcomes
// are delivered on Events. Only one attempt may be in flight at a time.
func (c *Coordinator) SignTransaction(unsigned []byte, account *types.Account) (string, error) {
	if account == nil {
		return "", ErrNilAccount
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrCoordinatorClosed
	}
	if c.attempt != nil {
		return "", ErrAttemptInProgress
	}

	c.generation++
	a := &signingAttempt{
		id:         uuid.NewString(),
		generation: c.generation,
		unsigned:   append([]byte{}, unsigned...),
		account:    account.Copy(),
		startedAt:  c.cfg.Clock.Now(),
	}
	if a.account.Ledger != nil {
		a.deviceName = a.account.Ledger.Name
	}
	c.attempt = a

	sugar := c.logger.Sugar().With("attemptId", a.id, "address", a.account.Address)
	sugar.Infow("Starting signing attempt",
		"signer", a.account.SignerAddress(),
		"hardware", a.hardware(),
		"rekeyed", a.account.IsRekeyed(),
	)
	c.cfg.Metrics.AttemptStarted(a.path())

	if len(a.unsigned) == 0 {
		c.finishLocked(a, types.NewFailedEvent(types.NewAPISignError(types.SDKErrorMissingTransaction, errMissingTransaction)))
		return a.id, nil
	}

	if txID, err := c.sdk.TransactionID(a.unsigned); err == nil {
		a.transactionID = txID
	} else {
		sugar.Debugw("Could not derive transaction id", "error", err)
	}
	c.journal.save(a.record(persistence.OutcomePending, time.Time{}, nil))

	if a.hardware() {
		c.startHardwareLocked(a)
	} else {
		go c.signLocally(a.generation, a.account.SignerAddress(), a.unsigned)
	}
	return a.id, nil
}

func (c *Coordinator) signLocally(generation uint64, signer string, unsigned []byte) {
	var key []byte
	ok := false
	if c.keyStore != nil {
		key, ok = c.keyStore.PrivateKey(signer)
	}
	if !ok {
		c.complete(generation, types.NewFailedEvent(types.NewAPISignError(types.SDKErrorMissingKey, fmt.Errorf("%w %s", errMissingSigningKey, signer))))
		return
	}

	signed, err := c.localSigner.Sign(unsigned, key)
	keystore.Zero(key)
	if err != nil {
		c.complete(generation, types.NewFailedEvent(types.AsSignError(err)))
		return
	}
	c.complete(generation, types.NewSignedEvent(signed))
}

func (c *Coordinator) startHardwareLocked(a *signingAttempt) {
	if c.newOperation == nil {
		c.finishLocked(a, types.NewFailedEvent(types.NewLedgerSignError(&types.LedgerOperationError{
			Code: types.LedgerErrorTransport,
			Err:  errNoHardwareLink,
		})))
		return
	}

	// the device signs exactly the bytes the signed transaction will embed
	canonical, err := c.sdk.CanonicalTransaction(a.unsigned)
	if err != nil {
		c.finishLocked(a, types.NewFailedEvent(types.NewAPISignError(types.SDKErrorSigning, err)))
		return
	}
	a.unsigned = canonical

	generation := a.generation
	a.timer = c.cfg.Clock.AfterFunc(c.cfg.LedgerTimeout, func() {
		c.onTimeout(generation)
	})

	a.operation = c.newOperation(ledgerOperation.Config{
		Account:             a.account,
		UnsignedTransaction: a.unsigned,
	})

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	events, err := a.operation.Start(ctx)
	if err != nil {
		c.finishLocked(a, types.NewFailedEvent(types.NewLedgerSignError(&types.LedgerOperationError{
			Code: types.LedgerErrorTransport,
			Err:  fmt.Errorf("failed to start ledger operation: %w", err),
		})))
		return
	}

	go c.forwardOperationEvents(generation, events)
}

func (c *Coordinator) forwardOperationEvents(generation uint64, events <-chan ledgerOperation.Event) {
	for ev := range events {
		c.handleOperationEvent(generation, ev)
	}
}

// liveAttemptLocked returns the attempt a callback of the given generation
// belongs to, or nil when the callback is stale
func (c *Coordinator) liveAttemptLocked(generation uint64) *signingAttempt {
	if c.closed || c.attempt == nil || c.attempt.generation != generation || c.attempt.terminal {
		return nil
	}
	return c.attempt
}

func (c *Coordinator) handleOperationEvent(generation uint64, ev ledgerOperation.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := c.liveAttemptLocked(generation)
	if a == nil {
		return
	}

	switch ev.Kind {
	case ledgerOperation.EventApprovalRequested:
		if ev.DeviceName != "" {
			a.deviceName = ev.DeviceName
		}
		c.emitLocked(a, types.NewApprovalRequestedEvent(a.deviceName))
	case ledgerOperation.EventReset:
		c.emitLocked(a, types.SigningEvent{Kind: types.SigningEventHardwareReset})
	case ledgerOperation.EventResetOnSuccess:
		c.emitLocked(a, types.SigningEvent{Kind: types.SigningEventHardwareResetOnSuccess})
	case ledgerOperation.EventCompleted:
		// the timer must not win once a result is being applied
		a.timer.Stop()
		signer := transactionSigner.NewLedgerSigner(c.sdk, a.account, c.logger)
		signed, err := signer.Sign(a.unsigned, ev.Signature)
		if err != nil {
			c.finishLocked(a, types.NewFailedEvent(types.AsSignError(err)))
			return
		}
		c.finishLocked(a, types.NewSignedEvent(signed))
	case ledgerOperation.EventRejected:
		c.finishLocked(a, types.SigningEvent{Kind: types.SigningEventHardwareRejected})
	case ledgerOperation.EventFailed:
		ledgerErr := ev.Err
		if ledgerErr == nil {
			ledgerErr = &types.LedgerOperationError{Code: types.LedgerErrorDevice}
		}
		c.finishLocked(a, types.NewFailedEvent(types.NewLedgerSignError(ledgerErr)))
	}
}

func (c *Coordinator) onTimeout(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := c.liveAttemptLocked(generation)
	if a == nil {
		return
	}

	c.logger.Sugar().Warnw("Hardware signing timed out",
		"attemptId", a.id,
		"timeout", c.cfg.LedgerTimeout,
		"device", a.deviceName,
	)
	c.finishLocked(a, types.SigningEvent{Kind: types.SigningEventTimedOut})
}

// complete delivers the outcome of the local path
func (c *Coordinator) complete(generation uint64, ev types.SigningEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := c.liveAttemptLocked(generation)
	if a == nil {
		return
	}
	c.finishLocked(a, ev)
}

func (c *Coordinator) emitLocked(a *signingAttempt, ev types.SigningEvent) {
	ev.AttemptID = a.id
	c.stream.push(ev)
}

// finishLocked releases every resource of the attempt and emits its terminal event
func (c *Coordinator) finishLocked(a *signingAttempt, ev types.SigningEvent) {
	a.terminal = true
	a.release()
	if c.attempt == a {
		c.attempt = nil
	}

	finishedAt := c.cfg.Clock.Now()
	outcome := outcomeOf(ev)

	sugar := c.logger.Sugar().With("attemptId", a.id, "outcome", outcome)
	if ev.Err != nil {
		sugar.Warnw("Signing attempt failed", "kind", ev.Err.Kind, "detail", ev.Err.Detail(), "error", ev.Err)
	} else {
		sugar.Infow("Signing attempt finished")
	}

	c.emitLocked(a, ev)
	c.cfg.Metrics.AttemptFinished(a.path(), string(outcome), finishedAt.Sub(a.startedAt))
	c.journal.save(a.record(outcome, finishedAt, ev.Err))
}

// Disconnect cancels the in-flight attempt, if any. It stops the scan, drops
// the device connection and the timer before returning. No further events
// are emitted for the cancelled attempt.
func (c *Coordinator) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
}

func (c *Coordinator) cancelLocked() {
	a := c.attempt
	if a == nil {
		return
	}

	c.generation++
	a.terminal = true
	a.release()
	c.attempt = nil

	c.logger.Sugar().Infow("Signing attempt cancelled", "attemptId", a.id)

	finishedAt := c.cfg.Clock.Now()
	c.cfg.Metrics.AttemptFinished(a.path(), string(persistence.OutcomeCancelled), finishedAt.Sub(a.startedAt))
	c.journal.save(a.record(persistence.OutcomeCancelled, finishedAt, nil))
}

// Close cancels any attempt, flushes the journal and closes the event stream.
// Events not yet read are discarded.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.cancelLocked()
	c.closed = true
	c.mu.Unlock()

	c.stream.close()
	c.journal.close()
}
