package cli

import (
	"errors"
	"fmt"
)

// ExitError carries the process exit code out of a command's RunE, so
// commands can fail without calling os.Exit and stay testable.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError reports the code of an ExitError anywhere in err's chain.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
