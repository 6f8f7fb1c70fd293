// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream converts between plain byte streams and single-copy
// block streams.
//
// A block stream is a sequence of blocks in the format of package
// [block], each stored at its extent: every block is full except the
// last. There is no redundancy, so any framing or digest failure is
// fatal and processing stops at the first bad block.
//
// Encode can wrap the block stream in a zstd or LZ4 frame; Decode and
// Verify detect and unwrap either transparently.
package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/archivist/lib/block"
)

// Summary describes a processed stream.
type Summary struct {
	// Blocks is the number of blocks.
	Blocks int64

	// LogicalBytes is the total payload length.
	LogicalBytes int64

	// PhysicalBytes is the total stored size of the blocks, before
	// any outer compression.
	PhysicalBytes int64

	// Compression is the outer frame that was written or detected.
	Compression Compression

	// Fingerprint is the BLAKE3 hash of the logical content. Two
	// streams with equal fingerprints decode to the same bytes,
	// regardless of their seeds.
	Fingerprint [32]byte
}

// BlockError attributes a stream failure to a block index.
type BlockError struct {
	Index int64
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %d: %v", e.Index, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// EncodeOptions configures Encode.
type EncodeOptions struct {
	// Compression wraps the output in an outer frame.
	Compression Compression

	// Entropy supplies block seeds. Nil uses the kernel random source.
	Entropy io.Reader
}

// Encode reads r to end of input in payload-sized chunks and writes one
// sealed block per chunk to w. Empty input produces an empty stream.
func Encode(r io.Reader, w io.Writer, options EncodeOptions) (Summary, error) {
	summary := Summary{Compression: options.Compression}
	output, err := compressor(w, options.Compression)
	if err != nil {
		return summary, err
	}
	hasher := blake3.New()

	var current block.Block
	var buffer [block.Size]byte
	for {
		n, readErr := io.ReadFull(r, current.Payload[:])
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			output.Close()
			return summary, &BlockError{Index: summary.Blocks, Err: fmt.Errorf("reading input: %w", readErr)}
		}
		if n == 0 {
			break
		}

		if options.Entropy != nil {
			current.Seed, err = block.ReadSeed(options.Entropy)
		} else {
			current.Seed, err = block.NewSeed()
		}
		if err != nil {
			output.Close()
			return summary, &BlockError{Index: summary.Blocks, Err: err}
		}
		current.SetLength(n)
		current.Seal()
		current.MarshalTo(buffer[:])
		extent := current.StoredSize()
		if _, err := output.Write(buffer[:extent]); err != nil {
			output.Close()
			return summary, &BlockError{Index: summary.Blocks, Err: fmt.Errorf("writing output: %w", err)}
		}
		hasher.Write(current.Bytes())

		summary.Blocks++
		summary.LogicalBytes += int64(n)
		summary.PhysicalBytes += int64(extent)
		if readErr != nil {
			break
		}
	}
	if err := output.Close(); err != nil {
		return summary, fmt.Errorf("finishing %s frame: %w", options.Compression, err)
	}
	copy(summary.Fingerprint[:], hasher.Sum(nil))
	return summary, nil
}

// Decode validates every block of the stream in r and writes the
// payloads to w. It stops at the first invalid block; bytes already
// written to w are not retracted.
func Decode(r io.Reader, w io.Writer) (Summary, error) {
	return scan(r, w)
}

// Verify validates every block of the stream in r and discards the
// payloads.
func Verify(r io.Reader) (Summary, error) {
	return scan(r, io.Discard)
}

func scan(r io.Reader, w io.Writer) (Summary, error) {
	var summary Summary
	buffered := bufio.NewReader(r)
	input, compression, release, err := decompressor(buffered)
	if err != nil {
		return summary, fmt.Errorf("reading input: %w", err)
	}
	defer release()
	summary.Compression = compression
	hasher := blake3.New()

	var current block.Block
	var buffer [block.Size]byte
	for {
		n, readErr := io.ReadFull(input, buffer[:])
		if readErr == io.EOF {
			break
		}
		if readErr != nil && readErr != io.ErrUnexpectedEOF {
			return summary, &BlockError{Index: summary.Blocks, Err: fmt.Errorf("reading input: %w", readErr)}
		}
		if err := current.UnmarshalFrom(buffer[:n]); err != nil {
			return summary, &BlockError{Index: summary.Blocks, Err: err}
		}
		if err := current.Check(); err != nil {
			return summary, &BlockError{Index: summary.Blocks, Err: err}
		}
		if _, err := w.Write(current.Bytes()); err != nil {
			return summary, &BlockError{Index: summary.Blocks, Err: fmt.Errorf("writing output: %w", err)}
		}
		hasher.Write(current.Bytes())

		summary.Blocks++
		summary.LogicalBytes += int64(current.Length)
		summary.PhysicalBytes += int64(n)
		if readErr != nil {
			break
		}
	}
	copy(summary.Fingerprint[:], hasher.Sum(nil))
	return summary, nil
}

// IsIntegrityError reports whether err is a digest or framing failure
// rather than an I/O failure.
func IsIntegrityError(err error) bool {
	var formatErr *block.FormatError
	return errors.Is(err, block.ErrIntegrity) || errors.As(err, &formatErr)
}
