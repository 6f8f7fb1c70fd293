// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package block implements the on-disk block format shared by the
// replicated store and the standalone stream tools.
//
// A block is a fixed 512-byte record: a 32-byte header followed by a
// 480-byte payload buffer. The header carries, in order and with
// big-endian integers:
//
//	version  uint16   format tag, currently 1
//	length   uint16   valid payload bytes, 0..480
//	digest   [20]byte SHA-1 over seed || payload
//	seed     [8]byte  random, fixed when the block is created
//
// The digest always covers the full payload buffer, not just the
// first length bytes. Unused payload bytes must therefore be zero for
// a block to verify after a round trip through storage.
//
// Blocks are stored at a fixed stride of [Size] bytes, but only the
// first HeaderSize+length bytes of a block are written. Every block of
// a file except the last is full, so the stride is preserved; the last
// block is stored short. [Unmarshal] enforces this framing: the input
// must be exactly HeaderSize+length bytes.
//
// The digest is an integrity check, not an authentication token. The
// per-block seed makes identical payloads hash differently across
// blocks; it is drawn from the kernel's random source by [NewSeed].
package block
