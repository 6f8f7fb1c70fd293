// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package block

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// Format constants. These are on-disk protocol values: changing any of
// them breaks compatibility with existing replica trees and archives.
const (
	// Version is the only supported format version.
	Version = 1

	// DigestSize is the SHA-1 output size.
	DigestSize = sha1.Size

	// SeedSize is the size of the per-block random seed.
	SeedSize = 8

	// HeaderSize is version (2) + length (2) + digest + seed.
	HeaderSize = 4 + DigestSize + SeedSize

	// PayloadSize is the payload capacity of one block.
	PayloadSize = 480

	// Size is the on-disk stride of one block.
	Size = HeaderSize + PayloadSize
)

// Header field offsets within a serialized block.
const (
	versionOffset = 0
	lengthOffset  = 2
	digestOffset  = 4
	seedOffset    = digestOffset + DigestSize
)

// ErrIntegrity reports a block whose stored digest does not match the
// digest recomputed from its seed and payload.
var ErrIntegrity = errors.New("block digest mismatch")

// FormatError reports malformed block framing: a buffer too short to
// hold a header, a declared length beyond the payload capacity, or a
// byte count that disagrees with the declared length.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "malformed block: " + e.Reason
}

// Digest is a block integrity digest.
type Digest [DigestSize]byte

// String returns the hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Seed is the per-block random value mixed into the digest.
type Seed [SeedSize]byte

// Block is the in-memory form of one block. Integer fields are native;
// byte order only exists in the serialized form produced by
// [Block.Marshal] and consumed by [Unmarshal].
type Block struct {
	Version uint16
	Length  uint16
	Digest  Digest
	Seed    Seed
	Payload [PayloadSize]byte
}

// ComputeDigest hashes seed followed by the full payload buffer.
func ComputeDigest(seed Seed, payload *[PayloadSize]byte) Digest {
	hasher := sha1.New()
	hasher.Write(seed[:])
	hasher.Write(payload[:])
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// Verify reports whether the stored digest matches the content.
func (b *Block) Verify() bool {
	return ComputeDigest(b.Seed, &b.Payload) == b.Digest
}

// Seal stamps the current format version, zeroes the payload beyond
// Length, and recomputes the digest. Call it after every mutation and
// before serializing a block for storage.
func (b *Block) Seal() {
	b.Version = Version
	clear(b.Payload[b.Length:])
	b.Digest = ComputeDigest(b.Seed, &b.Payload)
}

// SetLength changes the number of valid payload bytes. Bytes beyond
// the new length are zeroed so that a shrunk block still verifies once
// its short stored form is read back.
func (b *Block) SetLength(length int) {
	if length < 0 || length > PayloadSize {
		panic(fmt.Sprintf("block: length %d out of range [0, %d]", length, PayloadSize))
	}
	b.Length = uint16(length)
	clear(b.Payload[length:])
}

// Bytes returns the valid payload bytes.
func (b *Block) Bytes() []byte {
	return b.Payload[:b.Length]
}

// StoredSize is the number of bytes this block occupies on disk:
// the header plus Length payload bytes.
func (b *Block) StoredSize() int {
	return HeaderSize + int(b.Length)
}

// Reset returns the block to its zero state.
func (b *Block) Reset() {
	*b = Block{}
}

// Marshal serializes the block into its full 512-byte image. Callers
// that store the block write the first [Block.StoredSize] bytes.
func (b *Block) Marshal() []byte {
	data := make([]byte, Size)
	b.MarshalTo(data)
	return data
}

// MarshalTo serializes the block into data, which must hold at least
// [Size] bytes.
func (b *Block) MarshalTo(data []byte) {
	_ = data[Size-1]
	binary.BigEndian.PutUint16(data[versionOffset:], b.Version)
	binary.BigEndian.PutUint16(data[lengthOffset:], b.Length)
	copy(data[digestOffset:seedOffset], b.Digest[:])
	copy(data[seedOffset:HeaderSize], b.Seed[:])
	copy(data[HeaderSize:Size], b.Payload[:])
}

// Unmarshal parses a stored block. The input must be exactly
// HeaderSize plus the declared length; anything else is a
// [FormatError]. Unmarshal does not check the digest.
func Unmarshal(data []byte) (*Block, error) {
	b := new(Block)
	if err := b.UnmarshalFrom(data); err != nil {
		return nil, err
	}
	return b, nil
}

// UnmarshalFrom parses a stored block into b, overwriting all fields.
// Payload bytes beyond the stored extent are zero.
func (b *Block) UnmarshalFrom(data []byte) error {
	if len(data) < HeaderSize {
		return &FormatError{Reason: fmt.Sprintf("%d bytes is shorter than the %d-byte header", len(data), HeaderSize)}
	}
	length := int(binary.BigEndian.Uint16(data[lengthOffset:]))
	if length > PayloadSize {
		return &FormatError{Reason: fmt.Sprintf("declared length %d exceeds payload capacity %d", length, PayloadSize)}
	}
	if len(data) != HeaderSize+length {
		return &FormatError{Reason: fmt.Sprintf("read %d bytes for a block declaring %d payload bytes", len(data), length)}
	}

	b.Version = binary.BigEndian.Uint16(data[versionOffset:])
	b.Length = uint16(length)
	copy(b.Digest[:], data[digestOffset:seedOffset])
	copy(b.Seed[:], data[seedOffset:HeaderSize])
	n := copy(b.Payload[:], data[HeaderSize:])
	clear(b.Payload[n:])
	return nil
}

// Check validates a parsed block: the version must be supported and
// the digest must match. Returns a [FormatError] or an error wrapping
// [ErrIntegrity].
func (b *Block) Check() error {
	if b.Version != Version {
		return &FormatError{Reason: fmt.Sprintf("unsupported version %d", b.Version)}
	}
	if !b.Verify() {
		return fmt.Errorf("stored digest %s: %w", b.Digest, ErrIntegrity)
	}
	return nil
}
