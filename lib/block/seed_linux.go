// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package block

import "golang.org/x/sys/unix"

// systemEntropy reads from getrandom(2) without GRND_NONBLOCK, so it
// blocks until the kernel pool is initialized rather than returning
// low-entropy bytes.
type systemEntropy struct{}

func (systemEntropy) Read(buffer []byte) (int, error) {
	for {
		n, err := unix.Getrandom(buffer, 0)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}
