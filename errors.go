package tock

// ErrorCode is the driver-level error taxonomy. Every command returns one of
// these synchronously; no error ever travels on the callback path.
type ErrorCode int

// The possible values of ErrorCode.
const (
	ErrNoDevice        ErrorCode = iota + 1 // driver not present on this board (permanent)
	ErrBusy                                 // the single sampling engine is already engaged (transient)
	ErrInvalidArgument                      // bad channel index or out-of-range frequency (caller error)
	ErrOutOfMemory                          // required buffer slot(s) not yet allowed
	ErrHardwareFault                        // engine-reported fault, surfaced as-is
)

func (e ErrorCode) Error() string {
	switch e {
	case ErrNoDevice:
		return "NoDevice: no sampling engine is attached"
	case ErrBusy:
		return "Busy: a sampling session is already active"
	case ErrInvalidArgument:
		return "InvalidArgument: bad channel index or frequency"
	case ErrOutOfMemory:
		return "OutOfMemory: required buffer slot has not been allowed"
	case ErrHardwareFault:
		return "HardwareFault: the sampling engine reported a fault"
	}
	return "unknown ADC error"
}
