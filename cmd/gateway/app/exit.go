package app

import (
	"fmt"
)

// Exit codes of a failed boot, one per stage.
const (
	ExitCLI     = -1
	ExitConfig  = -2
	ExitStorage = -3
	ExitSerial  = -4
	ExitIP      = -5
	ExitDeploy  = -6
)

// ExitError carries the process exit code of a boot failure.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit %d: %v", e.Code, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exit(code int, err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: code, Err: err}
}
