package transactionSigner

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

var (
	ErrInvalidPrivateKeyLength = errors.New("invalid private key length")
	ErrInvalidSignatureLength  = errors.New("invalid signature length")
	ErrSignatureMismatch       = errors.New("signature does not verify against the signer key")
)

// domain separation prefix of signed transaction bytes
var txSigningPrefix = []byte("TX")

// AlgorandSDK implements ISigningSDK with go-algorand-sdk
type AlgorandSDK struct{}

var _ ISigningSDK = (*AlgorandSDK)(nil)

func NewAlgorandSDK() *AlgorandSDK {
	return &AlgorandSDK{}
}

func decodeTransaction(unsigned []byte) (types.Transaction, error) {
	var tx types.Transaction
	if err := msgpack.Decode(unsigned, &tx); err != nil {
		return types.Transaction{}, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return tx, nil
}

// SignTransaction signs with an ed25519 private key. When the key does not
// belong to the sender the SDK records the signer as the auth address.
func (s *AlgorandSDK) SignTransaction(privateKey []byte, unsigned []byte) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidPrivateKeyLength, len(privateKey))
	}

	tx, err := decodeTransaction(unsigned)
	if err != nil {
		return nil, err
	}

	_, signed, err := crypto.SignTransaction(ed25519.PrivateKey(privateKey), tx)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// CanonicalTransaction decodes and re-encodes the transaction
func (s *AlgorandSDK) CanonicalTransaction(unsigned []byte) ([]byte, error) {
	tx, err := decodeTransaction(unsigned)
	if err != nil {
		return nil, err
	}
	return msgpack.Encode(tx), nil
}

// ApplyExternalSignature builds a SignedTxn around a detached ed25519
// signature. The signature must verify against the signer, or the sender when
// signer is nil, over the canonical encoding of the transaction.
func (s *AlgorandSDK) ApplyExternalSignature(unsigned []byte, signature []byte, signer *string) ([]byte, error) {
	if len(signature) != ed25519.SignatureSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSignatureLength, len(signature))
	}

	tx, err := decodeTransaction(unsigned)
	if err != nil {
		return nil, err
	}

	stx := types.SignedTxn{Txn: tx}
	copy(stx.Sig[:], signature)

	publicKey := tx.Sender
	if signer != nil {
		authAddr, err := types.DecodeAddress(*signer)
		if err != nil {
			return nil, fmt.Errorf("invalid signer address %q: %w", *signer, err)
		}
		if authAddr != tx.Sender {
			stx.AuthAddr = authAddr
		}
		publicKey = authAddr
	}

	message := append(append([]byte{}, txSigningPrefix...), msgpack.Encode(tx)...)
	if !ed25519.Verify(ed25519.PublicKey(publicKey[:]), message, signature) {
		return nil, fmt.Errorf("%w %s", ErrSignatureMismatch, publicKey.String())
	}

	return msgpack.Encode(stx), nil
}

func (s *AlgorandSDK) TransactionID(unsigned []byte) (string, error) {
	tx, err := decodeTransaction(unsigned)
	if err != nil {
		return "", err
	}
	return crypto.GetTxID(tx), nil
}
