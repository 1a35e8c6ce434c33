package ledgerOperation

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/walletkit/txsign/pkg/types"
)

// Ledger Algorand application protocol
const (
	claAlgorand    byte = 0x80
	insSignMsgpack byte = 0x08

	p1FirstWithAccount byte = 0x01
	p1More             byte = 0x80
	p2More             byte = 0x80
	p2Last             byte = 0x00

	// MaxChunkSize is the largest APDU payload the device accepts
	MaxChunkSize = 250

	SignatureSize = 64
)

// APDU status words
const (
	StatusOK              uint16 = 0x9000
	StatusUserRejected    uint16 = 0x6985
	StatusAppNotOpen      uint16 = 0x6e00
	StatusInsNotSupported uint16 = 0x6d00
	StatusAppClosed       uint16 = 0x6e01
	StatusLocked          uint16 = 0x6511
)

var ErrUserRejected = errors.New("transaction rejected on device")

// BuildSignAPDUs splits a sign request into device sized APDUs. The payload is
// the account index followed by the msgpack transaction.
func BuildSignAPDUs(accountIndex uint32, unsigned []byte) ([][]byte, error) {
	if len(unsigned) == 0 {
		return nil, errors.New("cannot build sign request for an empty transaction")
	}

	payload := make([]byte, 4, 4+len(unsigned))
	binary.BigEndian.PutUint32(payload, accountIndex)
	payload = append(payload, unsigned...)

	var apdus [][]byte
	for offset := 0; offset < len(payload); offset += MaxChunkSize {
		end := min(offset+MaxChunkSize, len(payload))
		chunk := payload[offset:end]

		p1 := p1More
		if offset == 0 {
			p1 = p1FirstWithAccount
		}
		p2 := p2More
		if end == len(payload) {
			p2 = p2Last
		}

		apdu := make([]byte, 0, 5+len(chunk))
		apdu = append(apdu, claAlgorand, insSignMsgpack, p1, p2, byte(len(chunk)))
		apdu = append(apdu, chunk...)
		apdus = append(apdus, apdu)
	}
	return apdus, nil
}

// ParseSignResponse checks the status word of a device response. For the final
// chunk it also extracts the signature. A user rejection is reported as
// ErrUserRejected, every other failure as *types.LedgerOperationError.
func ParseSignResponse(resp []byte, final bool) ([]byte, error) {
	if len(resp) < 2 {
		return nil, &types.LedgerOperationError{
			Code: types.LedgerErrorInvalidResponse,
			Err:  errors.Errorf("response too short: %d bytes", len(resp)),
		}
	}

	sw := binary.BigEndian.Uint16(resp[len(resp)-2:])
	data := resp[:len(resp)-2]

	switch sw {
	case StatusOK:
	case StatusUserRejected:
		return nil, ErrUserRejected
	case StatusAppNotOpen, StatusInsNotSupported, StatusAppClosed, StatusLocked:
		return nil, &types.LedgerOperationError{Code: types.LedgerErrorAppNotOpen, StatusWord: sw}
	default:
		return nil, &types.LedgerOperationError{Code: types.LedgerErrorDevice, StatusWord: sw}
	}

	if !final {
		return nil, nil
	}
	if len(data) < SignatureSize {
		return nil, &types.LedgerOperationError{
			Code:       types.LedgerErrorInvalidResponse,
			StatusWord: sw,
			Err:        errors.Errorf("signature too short: %d bytes", len(data)),
		}
	}
	return append([]byte{}, data[:SignatureSize]...), nil
}

// ReassembleSignPayload reverses BuildSignAPDUs. It is used by device
// simulators to recover the account index and the transaction bytes.
func ReassembleSignPayload(apdus [][]byte) (uint32, []byte, error) {
	var payload []byte
	for i, apdu := range apdus {
		if len(apdu) < 5 {
			return 0, nil, errors.Errorf("apdu %d too short", i)
		}
		if apdu[0] != claAlgorand || apdu[1] != insSignMsgpack {
			return 0, nil, errors.Errorf("apdu %d is not a sign request", i)
		}
		if int(apdu[4]) != len(apdu)-5 {
			return 0, nil, errors.Errorf("apdu %d length mismatch", i)
		}
		payload = append(payload, apdu[5:]...)
	}
	if len(payload) < 4 {
		return 0, nil, errors.New("payload too short")
	}
	return binary.BigEndian.Uint32(payload[:4]), payload[4:], nil
}

// IsLastChunk reports whether an APDU closes a sign request
func IsLastChunk(apdu []byte) bool {
	return len(apdu) >= 4 && apdu[3] == p2Last
}

func wrapExchangeError(err error, chunk, total int) *types.LedgerOperationError {
	return &types.LedgerOperationError{
		Code: types.LedgerErrorExchange,
		Err:  errors.Wrapf(err, "failed to exchange chunk %d/%d", chunk+1, total),
	}
}
