package ledgerOperation

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walletkit/txsign/pkg/types"
)

func Test_BuildSignAPDUs(t *testing.T) {
	t.Run("small transaction fits one apdu", func(t *testing.T) {
		tx := bytes.Repeat([]byte{0xaa}, 100)

		apdus, err := BuildSignAPDUs(3, tx)
		require.NoError(t, err)
		require.Len(t, apdus, 1)

		apdu := apdus[0]
		assert.Equal(t, []byte{claAlgorand, insSignMsgpack, p1FirstWithAccount, p2Last, 104}, apdu[:5])
		assert.Equal(t, uint32(3), binary.BigEndian.Uint32(apdu[5:9]))
		assert.Equal(t, tx, apdu[9:])
		assert.True(t, IsLastChunk(apdu))
	})

	t.Run("large transaction is chunked", func(t *testing.T) {
		tx := bytes.Repeat([]byte{0x01}, 600)

		apdus, err := BuildSignAPDUs(0, tx)
		require.NoError(t, err)
		require.Len(t, apdus, 3)

		assert.Equal(t, p1FirstWithAccount, apdus[0][2])
		assert.Equal(t, p2More, apdus[0][3])
		assert.Equal(t, p1More, apdus[1][2])
		assert.Equal(t, p2More, apdus[1][3])
		assert.Equal(t, p2Last, apdus[2][3])
		for _, apdu := range apdus {
			assert.LessOrEqual(t, len(apdu)-5, MaxChunkSize)
		}
		assert.False(t, IsLastChunk(apdus[0]))
		assert.True(t, IsLastChunk(apdus[2]))

		index, reassembled, err := ReassembleSignPayload(apdus)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), index)
		assert.Equal(t, tx, reassembled)
	})

	t.Run("empty transaction", func(t *testing.T) {
		_, err := BuildSignAPDUs(0, nil)
		require.Error(t, err)
	})
}

func Test_ParseSignResponse(t *testing.T) {
	signature := bytes.Repeat([]byte{0x5a}, SignatureSize)

	t.Run("final chunk carries the signature", func(t *testing.T) {
		resp := binary.BigEndian.AppendUint16(append([]byte{}, signature...), StatusOK)

		sig, err := ParseSignResponse(resp, true)
		require.NoError(t, err)
		assert.Equal(t, signature, sig)
	})

	t.Run("intermediate chunk", func(t *testing.T) {
		sig, err := ParseSignResponse(statusOnly(StatusOK), false)
		require.NoError(t, err)
		assert.Nil(t, sig)
	})

	t.Run("user rejection", func(t *testing.T) {
		_, err := ParseSignResponse(statusOnly(StatusUserRejected), true)
		assert.ErrorIs(t, err, ErrUserRejected)
	})

	tests := []struct {
		name string
		resp []byte
		code types.LedgerErrorCode
	}{
		{name: "app not open", resp: statusOnly(StatusAppNotOpen), code: types.LedgerErrorAppNotOpen},
		{name: "device locked", resp: statusOnly(StatusLocked), code: types.LedgerErrorAppNotOpen},
		{name: "unknown status", resp: statusOnly(0x6a80), code: types.LedgerErrorDevice},
		{name: "truncated response", resp: []byte{0x90}, code: types.LedgerErrorInvalidResponse},
		{name: "missing signature", resp: statusOnly(StatusOK), code: types.LedgerErrorInvalidResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSignResponse(tt.resp, true)
			var ledgerErr *types.LedgerOperationError
			require.True(t, errors.As(err, &ledgerErr))
			assert.Equal(t, tt.code, ledgerErr.Code)
		})
	}
}
