package apis

import (
	"errors"
)

const (
	// HTTP Request Fields
	IfMatch = "If-Match"

	// HTTP Response Fields
	ETag = "ETag"

	// Self-defined Fields
	RequestID = "X-Request-Id"
	Filter    = "filter"
)

var (
	ErrMismatch      = errors.New("resource mismatch")
	ErrInternal      = errors.New("internal error")
	ErrInvalidValue  = errors.New("invalid value")
	ErrWriteConflict = errors.New("write conflict")
)
