package types

// LedgerDetail identifies the hardware device holding the key of an account
type LedgerDetail struct {
	DeviceID     string `json:"deviceId"`     // BLE peripheral identifier, empty matches any device
	Name         string `json:"name"`         // Display name shown while waiting for approval
	AccountIndex uint32 `json:"accountIndex"` // Derivation index of the account on the device
}

// Account is the signing identity of a transaction. It is loaded by the
// wallet's account storage and is read-only for the signing engine.
type Account struct {
	// Address is the account's own address
	Address string `json:"address"`

	// AuthAddress is set when the account has been rekeyed to another signer
	AuthAddress string `json:"authAddress,omitempty"`

	// Ledger is non-nil when signing must happen on an external device
	Ledger *LedgerDetail `json:"ledger,omitempty"`
}

// SignerAddress returns the address whose key authorizes the account's transactions
func (a *Account) SignerAddress() string {
	if a.AuthAddress != "" {
		return a.AuthAddress
	}
	return a.Address
}

// IsRekeyed reports whether the effective signer differs from the account's own address
func (a *Account) IsRekeyed() bool {
	return a.SignerAddress() != a.Address
}

// RequiresHardware reports whether the account is signed on a Ledger device
func (a *Account) RequiresHardware() bool {
	return a.Ledger != nil
}

// Copy returns a deep copy so in-flight attempts are isolated from caller mutation
func (a *Account) Copy() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.Ledger != nil {
		ledger := *a.Ledger
		c.Ledger = &ledger
	}
	return &c
}
