package transactionSigner

import (
	"errors"

	"github.com/walletkit/txsign/pkg/types"
	"go.uber.org/zap"
)

// LedgerSigner attaches a signature delivered by a hardware device to the
// unsigned transaction. keyMaterial passed to Sign is that signature, never a
// private key.
type LedgerSigner struct {
	sdk     ISigningSDK
	account *types.Account
	logger  *zap.Logger
}

var _ ITransactionSignable = (*LedgerSigner)(nil)

func NewLedgerSigner(sdk ISigningSDK, account *types.Account, logger *zap.Logger) *LedgerSigner {
	return &LedgerSigner{
		sdk:     sdk,
		account: account,
		logger:  logger,
	}
}

func (ls *LedgerSigner) Sign(unsigned []byte, keyMaterial []byte) ([]byte, error) {
	if len(unsigned) == 0 {
		return nil, types.NewAPISignError(types.SDKErrorMissingTransaction, nil)
	}
	if len(keyMaterial) == 0 {
		return nil, types.NewAPISignError(types.SDKErrorMissingKey, nil)
	}

	// A rekeyed account is authorized by another address, which has to be
	// named in the signed transaction.
	var signer *string
	if ls.account.IsRekeyed() {
		signerAddress := ls.account.SignerAddress()
		signer = &signerAddress
	}

	signed, err := ls.sdk.ApplyExternalSignature(unsigned, keyMaterial, signer)
	if err != nil {
		ls.logger.Sugar().Warnw("Failed to apply device signature",
			"address", ls.account.Address,
			"rekeyed", signer != nil,
			"error", err,
		)
		if errors.Is(err, ErrInvalidSignatureLength) || errors.Is(err, ErrSignatureMismatch) {
			return nil, types.NewAPISignError(types.SDKErrorInvalidSignature, err)
		}
		return nil, types.NewAPISignError(types.SDKErrorSigning, err)
	}
	return signed, nil
}
