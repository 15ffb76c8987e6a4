package errors

// ErrorCode identifies a failure class. Codes are stable strings so the
// control API and the event log can report them verbatim.
type ErrorCode string

// Error is a coded error. Packages declare their own codes next to the
// code that returns them, such as session_not_running or peer_adapter_enable_failed.
type Error interface {
	error
	Code() ErrorCode
	// WithMessage replaces the default text looked up for Code.
	WithMessage(msg string) Error
	// WithData attaches the value that triggered the failure, for example a
	// rejected window capacity or a refused request Origin.
	WithData(data any) Error
	// GetData returns what WithData attached, or nil.
	GetData() any
	// Unwrap returns the radio, D-Bus or I/O error this one wraps, if any.
	Unwrap() error
}

// Factory builds coded errors. Each package holds one in errFactory.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
