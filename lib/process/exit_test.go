// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

type codedError int

func (e codedError) Error() string { return fmt.Sprintf("exit %d", int(e)) }
func (e codedError) ExitCode() int { return int(e) }

func TestExitCode(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantOutput string
	}{
		{name: "nil", err: nil, wantCode: 0},
		{name: "plain", err: errors.New("connection refused"), wantCode: 1, wantOutput: "error: connection refused\n"},
		{name: "coded", err: codedError(3), wantCode: 3},
		{name: "wrapped coded", err: fmt.Errorf("search: %w", codedError(4)), wantCode: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buffer bytes.Buffer
			if got := ExitCode(&buffer, tt.err); got != tt.wantCode {
				t.Errorf("ExitCode() = %d, want %d", got, tt.wantCode)
			}
			if buffer.String() != tt.wantOutput {
				t.Errorf("output = %q, want %q", buffer.String(), tt.wantOutput)
			}
		})
	}
}
