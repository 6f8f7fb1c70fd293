// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/archivist/lib/cli"
	"github.com/bureau-foundation/archivist/lib/codec"
	"github.com/bureau-foundation/archivist/lib/mirror"
	"github.com/bureau-foundation/archivist/lib/scrub"
)

func scrubCommand(stdout io.Writer) *cli.Command {
	var reportPath string
	var verbose bool
	var outputJSON bool
	return &cli.Command{
		Name:    "scrub",
		Summary: "Verify and repair every block of an unmounted replica set",
		Usage:   "archivist scrub [flags] <replica-root>...",
		Description: "Read every block of every file under the replica roots, repairing\n" +
			"damage the same way the mount does. Exits 1 if any block could not be\n" +
			"verified or repaired.",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("scrub", pflag.ContinueOnError)
			flagSet.StringVar(&reportPath, "report", "", "write the full report as CBOR to this file")
			flagSet.BoolVarP(&verbose, "verbose", "v", false, "log every repair on stderr")
			flagSet.BoolVar(&outputJSON, "json", false, "print the report as JSON")
			return flagSet
		},
		Args: cli.MinimumArgs(1),
		Run: func(args []string) error {
			tree, err := mirror.NewTree(args)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			options := scrub.Options{Tree: tree}
			if verbose {
				options.Logger = cli.NewCommandLogger()
			}
			report, err := scrub.Run(ctx, options)
			if err != nil {
				return err
			}

			if reportPath != "" {
				if err := codec.WriteFile(reportPath, report); err != nil {
					return fmt.Errorf("writing report: %w", err)
				}
			}
			if outputJSON {
				if err := cli.WriteJSON(stdout, report); err != nil {
					return err
				}
			} else {
				printReport(stdout, report)
			}
			if !report.Clean() {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func printReport(w io.Writer, report *scrub.Report) {
	fmt.Fprintf(w, "files:    %d\n", report.Files)
	fmt.Fprintf(w, "blocks:   %d\n", report.Blocks)
	fmt.Fprintf(w, "repaired: %d (corrupt %d, mismatch %d, missing %d)\n",
		report.Repairs.Total(), report.Repairs.Corrupt, report.Repairs.Mismatch, report.Repairs.Missing)
	fmt.Fprintf(w, "failures: %d\n", len(report.Failures))
	for _, failure := range report.Failures {
		if failure.Block < 0 {
			fmt.Fprintf(w, "  %s: %s\n", failure.Path, failure.Error)
			continue
		}
		fmt.Fprintf(w, "  %s block %d: %s\n", failure.Path, failure.Block, failure.Error)
	}
}

func reportCommand(stdout io.Writer) *cli.Command {
	var outputJSON bool
	var diagnostic bool
	return &cli.Command{
		Name:    "report",
		Summary: "Print a saved scrub report",
		Usage:   "archivist report [flags] <report.cbor>",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("report", pflag.ContinueOnError)
			flagSet.BoolVar(&outputJSON, "json", false, "print the report as JSON")
			flagSet.BoolVar(&diagnostic, "diag", false, "print CBOR diagnostic notation")
			return flagSet
		},
		Args: cli.ExactArgs(1),
		Run: func(args []string) error {
			if diagnostic {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				notation, err := codec.Diagnose(data)
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				_, err = fmt.Fprintln(stdout, notation)
				return err
			}
			var report scrub.Report
			if err := codec.ReadFile(args[0], &report); err != nil {
				return err
			}
			if outputJSON {
				return cli.WriteJSON(stdout, &report)
			}
			printReport(stdout, &report)
			return nil
		},
	}
}
