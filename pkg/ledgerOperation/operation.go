package ledgerOperation

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/walletkit/txsign/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type State int

const (
	StateIdle State = iota
	StateScanning
	StateAwaitingApproval
	StateCompleted
	StateRejected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateAwaitingApproval:
		return "awaiting_approval"
	case StateCompleted:
		return "completed"
	case StateRejected:
		return "rejected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type EventKind int

const (
	EventApprovalRequested EventKind = iota + 1
	EventReset
	EventResetOnSuccess
	EventCompleted
	EventRejected
	EventFailed
)

// Event is emitted by a running operation. Reset events always precede the
// terminal event (Completed, Rejected or Failed), which is the last one.
type Event struct {
	Kind EventKind

	DeviceName       string
	Signature        []byte
	TransactionIndex int
	Err              *types.LedgerOperationError
}

func (e Event) IsTerminal() bool {
	return e.Kind == EventCompleted || e.Kind == EventRejected || e.Kind == EventFailed
}

// Config describes the single transaction an operation signs
type Config struct {
	Account             *types.Account
	UnsignedTransaction []byte
	// TransactionIndex is the position of the transaction in its group
	TransactionIndex int
}

// IOperation is one device round trip
type IOperation interface {
	Start(ctx context.Context) (<-chan Event, error)
	Stop()
}

// Factory creates an operation per signing attempt
type Factory func(cfg Config) IOperation

// NewFactory returns a Factory whose operations share transport and limiter.
// Only one operation may use the transport at a time.
func NewFactory(transport ITransport, limiter *rate.Limiter, logger *zap.Logger) Factory {
	return func(cfg Config) IOperation {
		return NewOperation(transport, cfg, limiter, logger)
	}
}

var (
	ErrAlreadyStarted = errors.New("operation already started")
	ErrStopped        = errors.New("operation stopped")
)

// maximum events per run: approval requested, reset and the terminal event
const eventBufferSize = 4

// Operation drives scan, connect, transmit and signature retrieval for one
// transaction. StopScan and Disconnect are each invoked exactly once on every
// exit path.
type Operation struct {
	transport ITransport
	cfg       Config
	limiter   *rate.Limiter
	logger    *zap.Logger

	mu      sync.Mutex
	state   State
	started bool
	stopped bool
	cancel  context.CancelFunc
	events  chan Event

	stopScanOnce   sync.Once
	disconnectOnce sync.Once
}

var _ IOperation = (*Operation)(nil)

// NewOperation creates an idle operation. A nil limiter disables pacing.
func NewOperation(transport ITransport, cfg Config, limiter *rate.Limiter, logger *zap.Logger) *Operation {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Operation{
		transport: transport,
		cfg:       cfg,
		limiter:   limiter,
		logger:    logger,
		state:     StateIdle,
	}
}

func (o *Operation) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start begins scanning and returns the event channel, closed when the run ends
func (o *Operation) Start(ctx context.Context) (<-chan Event, error) {
	if o.cfg.Account == nil || o.cfg.Account.Ledger == nil {
		return nil, fmt.Errorf("account does not have a ledger device")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return nil, ErrStopped
	}
	if o.started {
		return nil, ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.started = true
	o.cancel = cancel
	o.events = make(chan Event, eventBufferSize)

	go o.run(runCtx)
	return o.events, nil
}

// Stop cancels the run and releases the transport. It is synchronous,
// idempotent and suppresses any further events.
func (o *Operation) Stop() {
	o.mu.Lock()
	o.stopped = true
	o.state = StateIdle
	cancel := o.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.teardown()
}

func (o *Operation) stopScan() {
	o.stopScanOnce.Do(o.transport.StopScan)
}

func (o *Operation) teardown() {
	o.stopScan()
	o.disconnectOnce.Do(o.transport.Disconnect)
}

func (o *Operation) setState(state State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return false
	}
	o.state = state
	return true
}

func (o *Operation) emit(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return
	}
	o.events <- ev
}

func (o *Operation) run(ctx context.Context) {
	defer close(o.events)

	detail := o.cfg.Account.Ledger
	sugar := o.logger.Sugar().With("address", o.cfg.Account.Address, "deviceId", detail.DeviceID)

	if !o.setState(StateScanning) {
		return
	}
	devices, err := o.transport.StartScan(ctx)
	if err != nil {
		o.fail(ctx, &types.LedgerOperationError{Code: types.LedgerErrorTransport, Err: errors.Wrap(err, "failed to start scan")})
		return
	}
	sugar.Debugw("Scanning for ledger device")

	device, err := o.awaitDevice(ctx, devices, detail.DeviceID)
	if err != nil {
		o.fail(ctx, &types.LedgerOperationError{Code: types.LedgerErrorTransport, Err: err})
		return
	}
	o.stopScan()

	if err := o.transport.Connect(ctx, device); err != nil {
		if ctx.Err() != nil {
			o.teardown()
			return
		}
		o.fail(ctx, &types.LedgerOperationError{Code: types.LedgerErrorConnect, Err: errors.Wrapf(err, "failed to connect to %s", device.Name)})
		return
	}

	if !o.setState(StateAwaitingApproval) {
		return
	}
	deviceName := device.Name
	if deviceName == "" {
		deviceName = detail.Name
	}
	sugar.Infow("Connected to ledger device, awaiting approval", "device", deviceName)
	o.emit(Event{Kind: EventApprovalRequested, DeviceName: deviceName})

	apdus, err := BuildSignAPDUs(detail.AccountIndex, o.cfg.UnsignedTransaction)
	if err != nil {
		o.fail(ctx, &types.LedgerOperationError{Code: types.LedgerErrorInvalidResponse, Err: err})
		return
	}

	for i, apdu := range apdus {
		if err := o.limiter.Wait(ctx); err != nil {
			o.teardown()
			return
		}

		resp, err := o.transport.Exchange(ctx, apdu)
		if ctx.Err() != nil {
			o.teardown()
			return
		}
		if err != nil {
			o.fail(ctx, wrapExchangeError(err, i, len(apdus)))
			return
		}

		final := i == len(apdus)-1
		signature, err := ParseSignResponse(resp, final)
		if errors.Is(err, ErrUserRejected) {
			sugar.Infow("Transaction rejected on device")
			o.finish(StateRejected, Event{Kind: EventRejected}, false)
			return
		}
		if err != nil {
			var ledgerErr *types.LedgerOperationError
			if !errors.As(err, &ledgerErr) {
				ledgerErr = &types.LedgerOperationError{Code: types.LedgerErrorInvalidResponse, Err: err}
			}
			o.fail(ctx, ledgerErr)
			return
		}

		if final {
			sugar.Infow("Received signature from device", "transactionIndex", o.cfg.TransactionIndex)
			o.finish(StateCompleted, Event{
				Kind:             EventCompleted,
				Signature:        signature,
				TransactionIndex: o.cfg.TransactionIndex,
			}, true)
			return
		}
	}
}

func (o *Operation) awaitDevice(ctx context.Context, devices <-chan Device, deviceID string) (Device, error) {
	for {
		select {
		case device, ok := <-devices:
			if !ok {
				return Device{}, errors.New("scan ended before the device was found")
			}
			if deviceID == "" || device.ID == deviceID {
				return device, nil
			}
			o.logger.Sugar().Debugw("Ignoring unexpected device", "deviceId", device.ID)
		case <-ctx.Done():
			return Device{}, ctx.Err()
		}
	}
}

func (o *Operation) fail(ctx context.Context, err *types.LedgerOperationError) {
	if ctx.Err() != nil {
		o.teardown()
		return
	}
	o.logger.Sugar().Warnw("Ledger operation failed", "code", err.Code, "error", err)
	o.finish(StateFailed, Event{Kind: EventFailed, Err: err}, false)
}

// finish releases the transport, reports the reset and then the outcome
func (o *Operation) finish(state State, terminal Event, delivered bool) {
	o.teardown()
	if !o.setState(state) {
		return
	}

	reset := Event{Kind: EventReset}
	if delivered {
		reset.Kind = EventResetOnSuccess
	}
	o.emit(reset)
	o.emit(terminal)
}
