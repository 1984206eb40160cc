package cli

import (
	"errors"

	"virome-runner/config"
	"virome-runner/paths"
	"virome-runner/tools"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// ExitCode maps a command error to the process exit status: 2 when nothing
// ran because the invocation or configuration was wrong, 1 for any other
// failure.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var (
		ue *usageError
		ce *config.Error
		pe *paths.Error
		te *tools.Error
	)
	switch {
	case errors.As(err, &ue), errors.As(err, &ce), errors.As(err, &pe), errors.As(err, &te):
		return exitConfig
	default:
		return exitFailed
	}
}
