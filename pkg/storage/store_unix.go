package storage

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

const DefaultStorePath = "/var/lib/ems-gateway"

func isEphemeralError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EAGAIN, unix.EBUSY, unix.EINTR:
			return true
		}
	}
	return false
}
