package transactionSigner

import (
	"crypto/ed25519"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// TestGenesisID is the genesis id used by NewTestPaymentTransaction
const TestGenesisID = "testnet-v1.0"

// NewTestPaymentTransaction returns the msgpack encoding of a 1 microalgo
// payment from sender to receiver. The output is deterministic.
func NewTestPaymentTransaction(t *testing.T, sender, receiver types.Address) []byte {
	t.Helper()

	tx := types.Transaction{
		Type: types.PaymentTx,
		Header: types.Header{
			Sender:     sender,
			Fee:        types.MicroAlgos(1000),
			FirstValid: types.Round(1000),
			LastValid:  types.Round(2000),
			GenesisID:  TestGenesisID,
			GenesisHash: types.Digest{
				0x48, 0x63, 0xb5, 0x18, 0xa4, 0xb3, 0xc8, 0x4e, 0xc8, 0x10, 0xf2, 0x2d, 0x4f, 0x10, 0x81, 0xcb,
				0x0f, 0x71, 0xf0, 0x59, 0xa7, 0xac, 0x20, 0xde, 0xc6, 0x2f, 0x7f, 0x70, 0xe5, 0x09, 0x3a, 0x22,
			},
		},
		PaymentTxnFields: types.PaymentTxnFields{
			Receiver: receiver,
			Amount:   types.MicroAlgos(1),
		},
	}
	return msgpack.Encode(tx)
}

// NewTestMap16Encoding rewrites the fixmap header of a canonical encoding as
// a map16 header. The result decodes to the same transaction but is not the
// byte form the network signs.
func NewTestMap16Encoding(t *testing.T, canonical []byte) []byte {
	t.Helper()

	if len(canonical) == 0 || canonical[0]&0xf0 != 0x80 {
		t.Fatalf("expected a fixmap encoding, got header 0x%x", canonical[0])
	}
	fields := canonical[0] & 0x0f
	return append([]byte{0xde, 0x00, fields}, canonical[1:]...)
}

// VerifyTestSignedTransaction reports whether the signature of stx verifies
// against signer over the transaction it embeds
func VerifyTestSignedTransaction(stx types.SignedTxn, signer types.Address) bool {
	message := append([]byte("TX"), msgpack.Encode(stx.Txn)...)
	return ed25519.Verify(ed25519.PublicKey(signer[:]), message, stx.Sig[:])
}

// NewTestAccount generates a fresh keypair
func NewTestAccount(t *testing.T) crypto.Account {
	t.Helper()
	return crypto.GenerateAccount()
}

// DecodeTestSignedTransaction decodes signed bytes produced by AlgorandSDK
func DecodeTestSignedTransaction(t *testing.T, signed []byte) types.SignedTxn {
	t.Helper()

	var stx types.SignedTxn
	if err := msgpack.Decode(signed, &stx); err != nil {
		t.Fatalf("failed to decode signed transaction: %v", err)
	}
	return stx
}
