package ledgerOperation

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"sync"
)

// FakeTransport is an in-memory ITransport for tests. Devices listed in
// Devices are discovered as soon as scanning starts; with no devices the scan
// never finds anything. Responder answers each APDU.
type FakeTransport struct {
	Devices    []Device
	ScanErr    error
	ConnectErr error
	Responder  func(apdu []byte) ([]byte, error)

	// HoldExchange blocks every Exchange until ctx is done or Release is called,
	// simulating a user who has not answered the prompt yet
	HoldExchange bool

	mu              sync.Mutex
	startScanCalls  int
	stopScanCalls   int
	connectCalls    int
	exchangeCalls   int
	disconnectCalls int
	released        chan struct{}
	releaseOnce     sync.Once
}

var _ ITransport = (*FakeTransport)(nil)

func (f *FakeTransport) releaseChan() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.released == nil {
		f.released = make(chan struct{})
	}
	return f.released
}

// Release unblocks held exchanges
func (f *FakeTransport) Release() {
	ch := f.releaseChan()
	f.releaseOnce.Do(func() { close(ch) })
}

func (f *FakeTransport) StartScan(ctx context.Context) (<-chan Device, error) {
	f.mu.Lock()
	f.startScanCalls++
	f.mu.Unlock()

	if f.ScanErr != nil {
		return nil, f.ScanErr
	}

	devices := make(chan Device, len(f.Devices))
	for _, d := range f.Devices {
		devices <- d
	}
	return devices, nil
}

func (f *FakeTransport) StopScan() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopScanCalls++
}

func (f *FakeTransport) Connect(ctx context.Context, device Device) error {
	f.mu.Lock()
	f.connectCalls++
	f.mu.Unlock()
	return f.ConnectErr
}

func (f *FakeTransport) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	f.mu.Lock()
	f.exchangeCalls++
	f.mu.Unlock()

	if f.HoldExchange {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.releaseChan():
		}
	}
	if f.Responder == nil {
		return statusOnly(StatusOK), nil
	}
	return f.Responder(apdu)
}

func (f *FakeTransport) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnectCalls++
}

// Calls returns how often each transport method has been invoked
func (f *FakeTransport) Calls() (startScan, stopScan, connect, exchange, disconnect int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startScanCalls, f.stopScanCalls, f.connectCalls, f.exchangeCalls, f.disconnectCalls
}

func statusOnly(sw uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, sw)
}

// NewStatusResponder answers every APDU with the given status word
func NewStatusResponder(sw uint16) func(apdu []byte) ([]byte, error) {
	return func(apdu []byte) ([]byte, error) {
		return statusOnly(sw), nil
	}
}

// NewSigningResponder simulates the Algorand app approving every request: it
// collects the chunks and signs "TX" || msgpack with key on the last one.
func NewSigningResponder(key ed25519.PrivateKey) func(apdu []byte) ([]byte, error) {
	var mu sync.Mutex
	var pending [][]byte

	return func(apdu []byte) ([]byte, error) {
		mu.Lock()
		defer mu.Unlock()

		pending = append(pending, append([]byte{}, apdu...))
		if !IsLastChunk(apdu) {
			return statusOnly(StatusOK), nil
		}

		_, unsigned, err := ReassembleSignPayload(pending)
		pending = nil
		if err != nil {
			return statusOnly(0x6a80), nil
		}

		signature := ed25519.Sign(key, append([]byte("TX"), unsigned...))
		return binary.BigEndian.AppendUint16(signature, StatusOK), nil
	}
}
