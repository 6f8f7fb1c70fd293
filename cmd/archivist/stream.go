// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/archivist/lib/cli"
	"github.com/bureau-foundation/archivist/lib/stream"
)

func encodeCommand(stdout io.Writer) *cli.Command {
	var compression string
	var summary bool
	return &cli.Command{
		Name:    "encode",
		Summary: "Encode a byte stream as blocks",
		Usage:   "archivist encode [flags] <input> <output>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("encode", pflag.ContinueOnError)
			flagSet.StringVar(&compression, "compress", "none", "outer compression: none, zstd, or lz4")
			flagSet.BoolVar(&summary, "summary", false, "print a summary of the encoded stream")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Encode a tarball with zstd framing", Command: "archivist encode --compress zstd backup.tar backup.blk"},
			{Description: "Encode from a pipe", Command: "tar c dir | archivist encode - dir.blk"},
		},
		Args: cli.ExactArgs(2),
		Run: func(args []string) error {
			parsed, err := stream.ParseCompression(compression)
			if err != nil {
				return err
			}
			input, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer input.Close()
			output, err := createOutput(args[1])
			if err != nil {
				return err
			}
			result, err := stream.Encode(input, output, stream.EncodeOptions{Compression: parsed})
			if err != nil {
				output.Close()
				return fmt.Errorf("encoding %s: %w", args[0], err)
			}
			if err := output.Close(); err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}
			if summary {
				// Stream data may be on stdout; keep the summary apart.
				target := stdout
				if args[1] == "-" {
					target = os.Stderr
				}
				printSummary(target, result)
			}
			return nil
		},
	}
}

func decodeCommand() *cli.Command {
	var fingerprint bool
	return &cli.Command{
		Name:    "decode",
		Summary: "Decode and verify a block stream",
		Usage:   "archivist decode [flags] <input> <output>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("decode", pflag.ContinueOnError)
			flagSet.BoolVar(&fingerprint, "fingerprint", false, "print the BLAKE3 fingerprint of the decoded content on stderr")
			return flagSet
		},
		Args: cli.ExactArgs(2),
		Run: func(args []string) error {
			input, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer input.Close()
			output, err := createOutput(args[1])
			if err != nil {
				return err
			}
			result, err := stream.Decode(input, output)
			if err != nil {
				output.Close()
				return fmt.Errorf("decoding %s: %w", args[0], err)
			}
			if err := output.Close(); err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}
			if fingerprint {
				fmt.Fprintln(os.Stderr, hex.EncodeToString(result.Fingerprint[:]))
			}
			return nil
		},
	}
}

func verifyCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "verify",
		Summary: "Check every block of a stream and print a summary",
		Usage:   "archivist verify <input>",
		Args:    cli.ExactArgs(1),
		Run: func(args []string) error {
			input, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer input.Close()
			result, err := stream.Verify(input)
			if err != nil {
				return fmt.Errorf("verifying %s: %w", args[0], err)
			}
			printSummary(stdout, result)
			return nil
		},
	}
}

func printSummary(w io.Writer, summary stream.Summary) {
	fmt.Fprintf(w, "blocks:         %d\n", summary.Blocks)
	fmt.Fprintf(w, "logical bytes:  %d\n", summary.LogicalBytes)
	fmt.Fprintf(w, "physical bytes: %d\n", summary.PhysicalBytes)
	fmt.Fprintf(w, "compression:    %s\n", summary.Compression)
	fmt.Fprintf(w, "fingerprint:    %s\n", hex.EncodeToString(summary.Fingerprint[:]))
}

// openInput opens path for reading, or stdin for "-".
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// createOutput creates or truncates path, or returns stdout for "-".
func createOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
