package common

import "errors"

var (
	// repository-level errors
	ErrorNotFound = errors.New("not found")

	// service-level errors (generic/internal flow control)
	ErrorInternal = errors.New("internal error")

	// validation errors
	ErrorInvalidField  = errors.New("field is not editable")
	ErrorInvalidRecord = errors.New("invalid record")

	// ErrOffline is returned by operations that require connectivity when
	// the remote endpoint is currently unreachable.
	ErrOffline = errors.New("server unreachable")
)
