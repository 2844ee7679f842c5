package bridge

import (
	"errors"
	"time"
)

const (
	DefaultAddress = ":5533"
	DefaultTimeout = 15 * time.Second

	bufferSize = 1024
	// upgrade commands are json documents carrying a "type" member, the
	// bridge never answers them
	noReplyMarker = "type"
)

var (
	ErrNotConnected = errors.New("can bridge not connected")
	ErrLinkClosed   = errors.New("can bridge link closed")
	ErrStarted      = errors.New("can bridge link already started")
)
