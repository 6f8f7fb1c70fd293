// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package block

import (
	"errors"
	"fmt"
	"io"
)

// ErrEntropyUnavailable reports that the random source could not
// supply a full seed. It is surfaced rather than retried: a block
// created with a weak seed would quietly weaken its integrity check.
var ErrEntropyUnavailable = errors.New("entropy unavailable")

// NewSeed draws a fresh seed from the kernel's cryptographic random
// source.
func NewSeed() (Seed, error) {
	return ReadSeed(systemEntropy{})
}

// ReadSeed fills a seed from source. Any failure to produce all
// [SeedSize] bytes is reported as [ErrEntropyUnavailable].
func ReadSeed(source io.Reader) (Seed, error) {
	var seed Seed
	if _, err := io.ReadFull(source, seed[:]); err != nil {
		return Seed{}, fmt.Errorf("%w: %w", ErrEntropyUnavailable, err)
	}
	return seed, nil
}
