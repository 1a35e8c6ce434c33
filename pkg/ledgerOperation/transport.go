package ledgerOperation

import "context"

// Device is a hardware wallet discovered while scanning
type Device struct {
	ID   string
	Name string
}

// ITransport is the Bluetooth link to Ledger devices. Implementations live in
// the platform layer; the operation is its only user during an attempt.
type ITransport interface {
	// StartScan begins discovery. Discovered devices are delivered on the
	// returned channel until StopScan is called or ctx is done.
	StartScan(ctx context.Context) (<-chan Device, error)

	StopScan()

	Connect(ctx context.Context, device Device) error

	// Exchange writes one APDU and returns the device response including the
	// trailing status word. It blocks while the device waits for the user.
	Exchange(ctx context.Context, apdu []byte) ([]byte, error)

	// Disconnect drops any connection. It is safe to call without a connection.
	Disconnect()
}
