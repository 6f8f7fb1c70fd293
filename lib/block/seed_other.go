// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package block

import "crypto/rand"

// systemEntropy falls back to crypto/rand where getrandom(2) does not
// exist.
type systemEntropy struct{}

func (systemEntropy) Read(buffer []byte) (int, error) {
	return rand.Read(buffer)
}
