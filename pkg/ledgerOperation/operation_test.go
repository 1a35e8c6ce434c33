package ledgerOperation

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walletkit/txsign/pkg/types"
	"go.uber.org/zap"
)

func newTestConfig(deviceID string) Config {
	return Config{
		Account: &types.Account{
			Address: "OWNER",
			Ledger:  &types.LedgerDetail{DeviceID: deviceID, Name: "Nano X", AccountIndex: 2},
		},
		UnsignedTransaction: make([]byte, 300),
	}
}

func collectEvents(t *testing.T, events <-chan Event) []Event {
	t.Helper()

	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %d so far", len(out))
			return out
		}
	}
}

func eventKinds(events []Event) []EventKind {
	kinds := make([]EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func Test_Operation(t *testing.T) {
	l := zap.NewNop()

	t.Run("signature is delivered after the device approves", func(t *testing.T) {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		transport := &FakeTransport{
			Devices:   []Device{{ID: "device-1", Name: "My Nano"}},
			Responder: NewSigningResponder(priv),
		}
		cfg := newTestConfig("device-1")
		cfg.TransactionIndex = 1
		op := NewOperation(transport, cfg, nil, l)

		ch, err := op.Start(context.Background())
		require.NoError(t, err)
		events := collectEvents(t, ch)

		require.Equal(t, []EventKind{EventApprovalRequested, EventResetOnSuccess, EventCompleted}, eventKinds(events))
		assert.Equal(t, "My Nano", events[0].DeviceName)

		completed := events[2]
		assert.Equal(t, 1, completed.TransactionIndex)
		assert.True(t, ed25519.Verify(priv.Public().(ed25519.PublicKey), append([]byte("TX"), cfg.UnsignedTransaction...), completed.Signature))
		assert.Equal(t, StateCompleted, op.State())

		startScan, stopScan, connect, exchange, disconnect := transport.Calls()
		assert.Equal(t, 1, startScan)
		assert.Equal(t, 1, stopScan)
		assert.Equal(t, 1, connect)
		assert.Equal(t, 2, exchange)
		assert.Equal(t, 1, disconnect)
	})

	t.Run("device rejection", func(t *testing.T) {
		transport := &FakeTransport{
			Devices:   []Device{{ID: "device-1"}},
			Responder: NewStatusResponder(StatusUserRejected),
		}
		op := NewOperation(transport, newTestConfig("device-1"), nil, l)

		ch, err := op.Start(context.Background())
		require.NoError(t, err)
		events := collectEvents(t, ch)

		require.Equal(t, []EventKind{EventApprovalRequested, EventReset, EventRejected}, eventKinds(events))
		assert.Equal(t, "Nano X", events[0].DeviceName)
		assert.Equal(t, StateRejected, op.State())
	})

	t.Run("app not open", func(t *testing.T) {
		transport := &FakeTransport{
			Devices:   []Device{{ID: "device-1"}},
			Responder: NewStatusResponder(StatusAppNotOpen),
		}
		op := NewOperation(transport, newTestConfig("device-1"), nil, l)

		ch, err := op.Start(context.Background())
		require.NoError(t, err)
		events := collectEvents(t, ch)

		require.Equal(t, []EventKind{EventApprovalRequested, EventReset, EventFailed}, eventKinds(events))
		assert.Equal(t, types.LedgerErrorAppNotOpen, events[2].Err.Code)
		assert.Equal(t, StatusAppNotOpen, events[2].Err.StatusWord)
	})

	t.Run("connect failure", func(t *testing.T) {
		cause := errors.New("gatt error 133")
		transport := &FakeTransport{
			Devices:    []Device{{ID: "device-1"}},
			ConnectErr: cause,
		}
		op := NewOperation(transport, newTestConfig("device-1"), nil, l)

		ch, err := op.Start(context.Background())
		require.NoError(t, err)
		events := collectEvents(t, ch)

		require.Equal(t, []EventKind{EventReset, EventFailed}, eventKinds(events))
		assert.Equal(t, types.LedgerErrorConnect, events[1].Err.Code)
		assert.ErrorIs(t, events[1].Err, cause)

		_, stopScan, _, exchange, disconnect := transport.Calls()
		assert.Equal(t, 1, stopScan)
		assert.Equal(t, 0, exchange)
		assert.Equal(t, 1, disconnect)
	})

	t.Run("scan failure", func(t *testing.T) {
		transport := &FakeTransport{ScanErr: errors.New("bluetooth off")}
		op := NewOperation(transport, newTestConfig(""), nil, l)

		ch, err := op.Start(context.Background())
		require.NoError(t, err)
		events := collectEvents(t, ch)

		require.Equal(t, []EventKind{EventReset, EventFailed}, eventKinds(events))
		assert.Equal(t, types.LedgerErrorTransport, events[1].Err.Code)
	})

	t.Run("exchange failure", func(t *testing.T) {
		transport := &FakeTransport{
			Devices: []Device{{ID: "device-1"}},
			Responder: func(apdu []byte) ([]byte, error) {
				return nil, errors.New("link lost")
			},
		}
		op := NewOperation(transport, newTestConfig("device-1"), nil, l)

		ch, err := op.Start(context.Background())
		require.NoError(t, err)
		events := collectEvents(t, ch)

		require.Equal(t, []EventKind{EventApprovalRequested, EventReset, EventFailed}, eventKinds(events))
		assert.Equal(t, types.LedgerErrorExchange, events[2].Err.Code)
		assert.Contains(t, events[2].Err.Error(), "chunk 1/2")
	})

	t.Run("other devices are ignored", func(t *testing.T) {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		transport := &FakeTransport{
			Devices:   []Device{{ID: "someone-else", Name: "Other"}, {ID: "device-1", Name: "Mine"}},
			Responder: NewSigningResponder(priv),
		}
		op := NewOperation(transport, newTestConfig("device-1"), nil, l)

		ch, err := op.Start(context.Background())
		require.NoError(t, err)
		events := collectEvents(t, ch)

		require.NotEmpty(t, events)
		assert.Equal(t, "Mine", events[0].DeviceName)
		assert.Equal(t, EventCompleted, events[len(events)-1].Kind)
	})

	t.Run("stop while waiting for approval", func(t *testing.T) {
		transport := &FakeTransport{
			Devices:      []Device{{ID: "device-1"}},
			HoldExchange: true,
		}
		op := NewOperation(transport, newTestConfig("device-1"), nil, l)

		ch, err := op.Start(context.Background())
		require.NoError(t, err)

		select {
		case ev := <-ch:
			require.Equal(t, EventApprovalRequested, ev.Kind)
		case <-time.After(5 * time.Second):
			t.Fatal("approval was never requested")
		}

		op.Stop()
		op.Stop()

		assert.Empty(t, collectEvents(t, ch))
		assert.Equal(t, StateIdle, op.State())

		_, stopScan, _, _, disconnect := transport.Calls()
		assert.Equal(t, 1, stopScan)
		assert.Equal(t, 1, disconnect)
	})

	t.Run("stop while scanning", func(t *testing.T) {
		transport := &FakeTransport{}
		op := NewOperation(transport, newTestConfig("device-1"), nil, l)

		ch, err := op.Start(context.Background())
		require.NoError(t, err)

		op.Stop()
		assert.Empty(t, collectEvents(t, ch))

		_, stopScan, connect, _, disconnect := transport.Calls()
		assert.Equal(t, 1, stopScan)
		assert.Equal(t, 0, connect)
		assert.Equal(t, 1, disconnect)
	})

	t.Run("cannot start twice or after stop", func(t *testing.T) {
		transport := &FakeTransport{}
		op := NewOperation(transport, newTestConfig("device-1"), nil, l)

		_, err := op.Start(context.Background())
		require.NoError(t, err)
		_, err = op.Start(context.Background())
		assert.ErrorIs(t, err, ErrAlreadyStarted)

		op.Stop()
		_, err = op.Start(context.Background())
		assert.ErrorIs(t, err, ErrStopped)
	})

	t.Run("account without ledger", func(t *testing.T) {
		op := NewOperation(&FakeTransport{}, Config{Account: &types.Account{Address: "A"}}, nil, l)
		_, err := op.Start(context.Background())
		assert.Error(t, err)
	})
}
