package domain

import (
	"errors"
	"fmt"
)

// LintError marks a chart that failed validation. The chart is skipped
// and the batch continues.
type LintError struct {
	Chart string
	Err   error
}

func (e *LintError) Error() string {
	return fmt.Sprintf("chart %s failed validation: %s", e.Chart, e.Err)
}

func (e *LintError) Unwrap() error { return e.Err }

// IsLintError reports whether err is (or wraps) a LintError.
func IsLintError(err error) bool {
	var le *LintError
	return errors.As(err, &le)
}

// SetupError marks a batch-level failure (working directory creation,
// release host authentication). It aborts the whole run.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("release setup failed: %s", e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// IsSetupError reports whether err is (or wraps) a SetupError.
func IsSetupError(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}
