// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/bureau-foundation/archivist/lib/block"
)

func TestDiagnostic(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{
			&os.PathError{Op: "open", Path: "/missing", Err: syscall.ENOENT},
			"error 2 (no such file or directory): open /missing: no such file or directory",
		},
		{
			fmt.Errorf("archive.blk: %w", &block.FormatError{Reason: "truncated"}),
			"error 5 (input/output error): archive.blk: malformed block: truncated",
		},
	}
	for _, test := range tests {
		if got := Diagnostic(test.err); got != test.want {
			t.Errorf("Diagnostic = %q, want %q", got, test.want)
		}
	}
}
