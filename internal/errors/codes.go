package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"
	ErrAlreadyRunning  ErrorCode = "already_running"
	ErrForbidden       ErrorCode = "forbidden"
	ErrUnsupportedType ErrorCode = "unsupported_media_type"

	// Configuration errors
	ErrInvalidConfig    ErrorCode = "invalid_configuration"
	ErrReadConfig       ErrorCode = "read_config_failed"
	ErrBindFlags        ErrorCode = "bind_flags_failed"
	ErrInvalidInterval  ErrorCode = "invalid_interval"
	ErrInvalidThreshold ErrorCode = "invalid_threshold"
	ErrInvalidPreset    ErrorCode = "invalid_preset"
	ErrInvalidLogLevel  ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Proximity pipeline errors
	ErrNotReady        ErrorCode = "not_ready"
	ErrInvalidCapacity ErrorCode = "invalid_capacity"
	ErrActuatorFailure ErrorCode = "actuator_failure"
	ErrPeerUnavailable ErrorCode = "peer_unavailable"

	// Lifecycle errors
	ErrSessionAlreadyRunning ErrorCode = "session_already_running"
	ErrSessionNotRunning     ErrorCode = "session_not_running"
	ErrRadioUnavailable      ErrorCode = "radio_unavailable"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:              "Internal error occurred",
	ErrInvalidArgument:       "Invalid argument provided",
	ErrUnavailable:           "Service unavailable",
	ErrAlreadyRunning:        "Another instance is already running",
	ErrForbidden:             "Cross-site request refused",
	ErrUnsupportedType:       "Content-Type must be application/json",
	ErrInvalidConfig:         "Invalid configuration",
	ErrReadConfig:            "Failed to read config file",
	ErrBindFlags:             "Failed to bind flags",
	ErrInvalidInterval:       "Invalid interval value",
	ErrInvalidThreshold:      "Invalid threshold value",
	ErrInvalidPreset:         "Unknown preset",
	ErrInvalidLogLevel:       "Invalid log level",
	ErrInitFailed:            "Initialization failed",
	ErrShutdownFailed:        "Shutdown failed",
	ErrNotReady:              "Not enough samples",
	ErrInvalidCapacity:       "Window capacity must be positive",
	ErrActuatorFailure:       "Lock actuation failed",
	ErrPeerUnavailable:       "Peer connection not established",
	ErrSessionAlreadyRunning: "Sampling session already running",
	ErrSessionNotRunning:     "Sampling session not running",
	ErrRadioUnavailable:      "Bluetooth radio unavailable",
	ErrOperationFailed:       "Operation failed",
	ErrTimeout:               "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
