package transactionSigner

import (
	"github.com/walletkit/txsign/pkg/types"
	"go.uber.org/zap"
)

// LocalSigner signs with a private key held by the wallet. It performs no
// network or hardware I/O.
type LocalSigner struct {
	sdk    ISigningSDK
	logger *zap.Logger
}

var _ ITransactionSignable = (*LocalSigner)(nil)

func NewLocalSigner(sdk ISigningSDK, logger *zap.Logger) *LocalSigner {
	return &LocalSigner{
		sdk:    sdk,
		logger: logger,
	}
}

// Sign signs unsigned with the private key passed as keyMaterial
func (ls *LocalSigner) Sign(unsigned []byte, keyMaterial []byte) ([]byte, error) {
	if len(unsigned) == 0 {
		return nil, types.NewAPISignError(types.SDKErrorMissingTransaction, nil)
	}
	if len(keyMaterial) == 0 {
		return nil, types.NewAPISignError(types.SDKErrorMissingKey, nil)
	}

	signed, err := ls.sdk.SignTransaction(keyMaterial, unsigned)
	if err != nil {
		ls.logger.Sugar().Warnw("Local signing failed", "error", err)
		return nil, types.NewAPISignError(types.SDKErrorSigning, err)
	}
	return signed, nil
}
