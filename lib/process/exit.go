// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint error handler for
// archivist commands.
//
// Diagnostics name the failing path, the numeric errno, and its
// description on one line, so scripts can match on the number and
// people can read the text.
package process

import (
	"fmt"
	"io"

	"github.com/bureau-foundation/archivist/lib/replica"
)

// Diagnostic formats err as "error N (description): message".
func Diagnostic(err error) string {
	errno := replica.Errno(err)
	return fmt.Sprintf("error %d (%s): %v", int(errno), errno.Error(), err)
}

// Report writes the diagnostic for err to w.
func Report(w io.Writer, err error) {
	fmt.Fprintln(w, Diagnostic(err))
}
