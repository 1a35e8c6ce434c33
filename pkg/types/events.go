package types

type SigningEventKind int

const (
	SigningEventSigned SigningEventKind = iota + 1
	SigningEventFailed
	SigningEventHardwareApprovalRequested
	SigningEventTimedOut
	SigningEventHardwareReset
	SigningEventHardwareResetOnSuccess
	SigningEventHardwareRejected
)

func (k SigningEventKind) String() string {
	switch k {
	case SigningEventSigned:
		return "signed"
	case SigningEventFailed:
		return "failed"
	case SigningEventHardwareApprovalRequested:
		return "hardware_approval_requested"
	case SigningEventTimedOut:
		return "timed_out"
	case SigningEventHardwareReset:
		return "hardware_reset"
	case SigningEventHardwareResetOnSuccess:
		return "hardware_reset_on_success"
	case SigningEventHardwareRejected:
		return "hardware_rejected"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the kind ends a signing attempt
func (k SigningEventKind) IsTerminal() bool {
	switch k {
	case SigningEventSigned, SigningEventFailed, SigningEventTimedOut, SigningEventHardwareRejected:
		return true
	default:
		return false
	}
}

// SigningEvent is a single notification about a signing attempt. Exactly one
// terminal event is delivered per attempt and it is always the last one.
type SigningEvent struct {
	Kind      SigningEventKind
	AttemptID string

	// SignedTransaction is set for SigningEventSigned
	SignedTransaction []byte

	// Err is set for SigningEventFailed
	Err *SignError

	// DeviceName is set for SigningEventHardwareApprovalRequested
	DeviceName string
}

func (e SigningEvent) IsTerminal() bool {
	return e.Kind.IsTerminal()
}

func NewSignedEvent(signed []byte) SigningEvent {
	return SigningEvent{Kind: SigningEventSigned, SignedTransaction: signed}
}

func NewFailedEvent(err *SignError) SigningEvent {
	return SigningEvent{Kind: SigningEventFailed, Err: err}
}

func NewApprovalRequestedEvent(deviceName string) SigningEvent {
	return SigningEvent{Kind: SigningEventHardwareApprovalRequested, DeviceName: deviceName}
}
