// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects an optional frame wrapped around the whole block
// stream. The block stream inside the frame is unchanged, and readers
// detect the frame from its magic number.
type Compression uint8

const (
	// CompressionNone writes the block stream as is.
	CompressionNone Compression = iota

	// CompressionZstd wraps the stream in a zstd frame.
	CompressionZstd

	// CompressionLZ4 wraps the stream in an LZ4 frame.
	CompressionLZ4
)

// Frame magic numbers as they appear on the wire.
var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses a compression name as printed by String.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "none", "":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, zstd, or lz4)", name)
	}
}

// compressor wraps w according to c. Closing the result flushes the
// frame but does not close w.
func compressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionZstd:
		encoder, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		return encoder, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", c)
	}
}

// decompressor inspects the start of r and unwraps a zstd or LZ4 frame
// if one is present. The release function frees decoder resources.
func decompressor(r *bufio.Reader) (io.Reader, Compression, func(), error) {
	magic, err := r.Peek(len(zstdMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, 0, nil, err
	}
	switch {
	case bytes.Equal(magic, zstdMagic):
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		return decoder, CompressionZstd, decoder.Close, nil
	case bytes.Equal(magic, lz4Magic):
		return lz4.NewReader(r), CompressionLZ4, func() {}, nil
	default:
		return r, CompressionNone, func() {}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
