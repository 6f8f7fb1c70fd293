// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/bureau-foundation/archivist/lib/block"
)

// ErrInconsistent reports replicas that disagree in a pattern repair
// cannot resolve: some replicas have a block at an index and others do
// not, and replica 0 is not a healthy source to fill the gaps from.
var ErrInconsistent = errors.New("replicas inconsistent")

// ReplicaError attributes a failure to one replica and block offset.
type ReplicaError struct {
	Replica int
	Offset  int64
	Err     error
}

func (e *ReplicaError) Error() string {
	return fmt.Sprintf("replica %d at offset %d: %v", e.Replica, e.Offset, e.Err)
}

func (e *ReplicaError) Unwrap() error {
	return e.Err
}

// Errno maps an error from this package, [block], or the operating
// system to the errno reported to filesystem callers. Integrity,
// framing, and consistency failures are all I/O errors; a missing
// entropy source is transient. Errors carrying an errno keep it.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	if errors.Is(err, block.ErrEntropyUnavailable) {
		return syscall.EAGAIN
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}
