// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command archivist mounts a replicated block store as a FUSE
// filesystem and converts between plain files and block streams.
//
//	archivist mount <mountpoint> <replica-root>...
//	archivist encode [--compress none|zstd|lz4] <input> <output>
//	archivist decode [--fingerprint] <input> <output>
//	archivist verify <input>
//	archivist scrub [--report file.cbor] <replica-root>...
//	archivist report <file.cbor>
//
// For the stream commands, "-" is standard input or output. Failures
// print "error N (description): ..." on stderr and exit 1.
package main

import (
	"io"
	"os"

	"github.com/bureau-foundation/archivist/lib/cli"
	"github.com/bureau-foundation/archivist/lib/version"
)

func main() {
	os.Exit(cli.Main(root(os.Stdout), os.Args[1:]))
}

// root builds the command tree. Summaries and reports go to stdout.
func root(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "archivist",
		Summary: "Replicated, integrity-checked block store",
		Description: "archivist stores every file as a sequence of checksummed blocks,\n" +
			"mirrored across replica directories, and repairs damaged copies on read.",
		Subcommands: []*cli.Command{
			mountCommand(),
			encodeCommand(stdout),
			decodeCommand(),
			verifyCommand(stdout),
			scrubCommand(stdout),
			reportCommand(stdout),
			{
				Name:    "version",
				Summary: "Print version information",
				Args:    cli.ExactArgs(0),
				Run: func(args []string) error {
					_, err := io.WriteString(stdout, version.Full()+"\n")
					return err
				},
			},
		},
	}
}
