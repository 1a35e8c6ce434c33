package transactionSigner

// ITransactionSignable turns an unsigned transaction into a signed one.
//
// keyMaterial depends on the implementation: a raw private key for local
// signing, or the signature produced by a hardware device for relayed signing.
// Failures are always returned as *types.SignError of kind api.
type ITransactionSignable interface {
	Sign(unsigned []byte, keyMaterial []byte) ([]byte, error)
}

// ISigningSDK is the blockchain SDK surface the signers depend on. It must be
// stateless so a single instance can be shared by every signer.
type ISigningSDK interface {
	// SignTransaction signs the msgpack encoded transaction with a private key
	SignTransaction(privateKey []byte, unsigned []byte) ([]byte, error)

	// ApplyExternalSignature combines a signature produced elsewhere with the
	// unsigned transaction. signer is nil when the sender signs for itself.
	ApplyExternalSignature(unsigned []byte, signature []byte, signer *string) ([]byte, error)

	// CanonicalTransaction re-encodes the transaction in the form the network
	// verifies signatures against. External signers must sign these bytes.
	CanonicalTransaction(unsigned []byte) ([]byte, error)

	// TransactionID returns the network identifier of the unsigned transaction
	TransactionID(unsigned []byte) (string, error)
}
