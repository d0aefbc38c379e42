// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitCoder is implemented by errors that select the process exit code
// and whose command already printed its own output.
type ExitCoder interface {
	ExitCode() int
}

// Fatal reports err and exits. See ExitCode for the code and output.
func Fatal(err error) {
	os.Exit(ExitCode(os.Stderr, err))
}

// ExitCode returns the exit status for err returned from run(). An
// ExitCoder anywhere in the chain selects its code silently; any other
// error is written to w as "error: err" and maps to 1. nil maps to 0.
func ExitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
