package cmd

import (
	"fmt"

	tandemerrors "github.com/Iron-Ham/tandem/internal/errors"
)

// ExitError ends the process with Code. It carries the exit status of the
// application child out of the dev command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("application exited with status %d", e.Code)
}

// exitStatus maps a child exit status to the command result.
func exitStatus(code int) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}

// ErrorMessage renders a command failure for the console. Errors that are not
// marked safe to show are reported as internal errors, and critical ones point
// at debug logging.
func ErrorMessage(err error) string {
	msg := err.Error()
	if !tandemerrors.IsUserFacing(err) {
		msg = "internal error: " + msg
	}
	if tandemerrors.GetSeverity(err) == tandemerrors.SeverityCritical {
		msg += "\n  rerun with --log-level=debug for details"
	}
	return msg
}
