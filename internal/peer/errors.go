package peer

import "codeberg.org/mutker/proxlock/internal/errors"

const (
	ErrAdapterEnable  = errors.ErrorCode("peer_adapter_enable_failed")
	ErrScanFailed     = errors.ErrorCode("peer_scan_failed")
	ErrConnectFailed  = errors.ErrorCode("peer_connect_failed")
	ErrDisconnect     = errors.ErrorCode("peer_disconnect_failed")
	ErrInvalidAddress = errors.ErrorCode("peer_invalid_address")
)
