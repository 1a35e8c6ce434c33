package types

import (
	"errors"
	"fmt"
)

type SignErrorKind string

const (
	SignErrorKindLedger SignErrorKind = "ledger"
	SignErrorKindAPI    SignErrorKind = "api"
)

type LedgerErrorCode string

const (
	LedgerErrorTransport       LedgerErrorCode = "transport"
	LedgerErrorConnect         LedgerErrorCode = "connect"
	LedgerErrorExchange        LedgerErrorCode = "exchange"
	LedgerErrorDevice          LedgerErrorCode = "device"
	LedgerErrorAppNotOpen      LedgerErrorCode = "app_not_open"
	LedgerErrorInvalidResponse LedgerErrorCode = "invalid_response"
)

// LedgerOperationError describes a failure of the hardware round trip
type LedgerOperationError struct {
	Code LedgerErrorCode
	// StatusWord is the APDU status returned by the device, zero when the
	// failure happened before the device answered
	StatusWord uint16
	Err        error
}

func (e *LedgerOperationError) Error() string {
	msg := fmt.Sprintf("ledger operation failed (%s)", e.Code)
	if e.StatusWord != 0 {
		msg = fmt.Sprintf("%s, status 0x%04x", msg, e.StatusWord)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *LedgerOperationError) Unwrap() error {
	return e.Err
}

type SDKErrorCode string

const (
	SDKErrorMissingTransaction SDKErrorCode = "missing_transaction"
	SDKErrorMissingKey         SDKErrorCode = "missing_key"
	SDKErrorInvalidSignature   SDKErrorCode = "invalid_signature"
	SDKErrorSigning            SDKErrorCode = "sdk"
)

// SDKSigningError describes a failure to produce a signed transaction from
// the unsigned bytes and the key material or device signature
type SDKSigningError struct {
	Code SDKErrorCode
	Err  error
}

func (e *SDKSigningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("signing failed (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("signing failed (%s)", e.Code)
}

func (e *SDKSigningError) Unwrap() error {
	return e.Err
}

// SignError is the only error shape that leaves the signing coordinator.
// Exactly one of Ledger or API is set, matching Kind.
type SignError struct {
	Kind   SignErrorKind
	Ledger *LedgerOperationError
	API    *SDKSigningError
}

func NewLedgerSignError(err *LedgerOperationError) *SignError {
	return &SignError{Kind: SignErrorKindLedger, Ledger: err}
}

func NewAPISignError(code SDKErrorCode, err error) *SignError {
	return &SignError{Kind: SignErrorKindAPI, API: &SDKSigningError{Code: code, Err: err}}
}

func (e *SignError) Error() string {
	if e.Kind == SignErrorKindLedger && e.Ledger != nil {
		return e.Ledger.Error()
	}
	if e.API != nil {
		return e.API.Error()
	}
	return string(e.Kind)
}

func (e *SignError) Unwrap() error {
	if e.Kind == SignErrorKindLedger && e.Ledger != nil {
		return e.Ledger
	}
	if e.API != nil {
		return e.API
	}
	return nil
}

// Detail returns the code of the underlying error
func (e *SignError) Detail() string {
	if e.Kind == SignErrorKindLedger && e.Ledger != nil {
		return string(e.Ledger.Code)
	}
	if e.API != nil {
		return string(e.API.Code)
	}
	return ""
}

// AsSignError normalizes any error into a SignError. Errors that are not
// already typed are classified as SDK failures.
func AsSignError(err error) *SignError {
	if err == nil {
		return nil
	}

	var signErr *SignError
	if errors.As(err, &signErr) {
		return signErr
	}

	var ledgerErr *LedgerOperationError
	if errors.As(err, &ledgerErr) {
		return NewLedgerSignError(ledgerErr)
	}

	var sdkErr *SDKSigningError
	if errors.As(err, &sdkErr) {
		return &SignError{Kind: SignErrorKindAPI, API: sdkErr}
	}

	return NewAPISignError(SDKErrorSigning, err)
}
