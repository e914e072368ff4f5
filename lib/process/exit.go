// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

// ExitError carries a specific exit status out of run(). The CLI uses
// it so a denied authorization exits 2 rather than 1.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// Fatal writes "error: err" to stderr and exits. The status is 1 unless
// err wraps an [ExitError]. Call it from main() with the error from
// run(), where the structured logger may not exist.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(ExitCode(err))
}

// ExitCode returns the status Fatal would exit with.
func ExitCode(err error) int {
	var exitError *ExitError
	if errors.As(err, &exitError) && exitError.Code != 0 {
		return exitError.Code
	}
	return 1
}
