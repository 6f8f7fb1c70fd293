// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package layout maps between logical byte positions in a file and
// physical positions in a replica, accounting for the per-block header
// that precedes every payload.
//
// A logical offset L lives in block L/480, at physical block offset
// (L/480)*512, and at L%480 within that block's payload. Physical file
// sizes follow from the storage rule that only the last block is
// stored short (header plus its valid payload bytes).
package layout

import "github.com/bureau-foundation/archivist/lib/block"

// Position locates one logical byte in the block structure.
type Position struct {
	// Index is the zero-based block index.
	Index int64

	// BlockOffset is the physical byte offset of the block within a
	// replica: Index * block.Size.
	BlockOffset int64

	// Within is the offset into the block's payload.
	Within int
}

// ToPhysical maps a logical byte offset to its block position.
func ToPhysical(logical int64) Position {
	index := logical / block.PayloadSize
	return Position{
		Index:       index,
		BlockOffset: index * block.Size,
		Within:      int(logical % block.PayloadSize),
	}
}

// LogicalSize derives the logical file size from a replica's physical
// size without reading any block: every complete stride contributes a
// full payload, and a trailing partial stride contributes its length
// minus the header. A trailing fragment too short to hold a header
// contributes nothing.
func LogicalSize(physical int64) int64 {
	if physical <= 0 {
		return 0
	}
	size := (physical / block.Size) * block.PayloadSize
	if remainder := physical % block.Size; remainder > block.HeaderSize {
		size += remainder - block.HeaderSize
	}
	return size
}

// Truncation describes how a replica is cut to a new logical size.
type Truncation struct {
	// BlockOffset is the physical offset of the block that will hold
	// the new end of file.
	BlockOffset int64

	// Length is the new payload length of that block.
	Length int

	// PhysicalSize is the size every replica is truncated to.
	PhysicalSize int64
}

// TruncateTarget computes the rewrite and cut for a new logical size.
// A size that lands exactly on a payload boundary keeps an empty
// trailing block, so that the boundary block itself stays full. Zero
// is special-cased by callers: replicas are cut to zero directly.
func TruncateTarget(logical int64) Truncation {
	position := ToPhysical(logical)
	return Truncation{
		BlockOffset:  position.BlockOffset,
		Length:       position.Within,
		PhysicalSize: position.BlockOffset + int64(position.Within) + block.HeaderSize,
	}
}
