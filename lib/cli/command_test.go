// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string
	var receivedArgs []string
	root := &Command{
		Name: "archivist",
		Subcommands: []*Command{
			{Name: "encode", Run: func(args []string) error { called = "encode"; receivedArgs = args; return nil }},
			{Name: "decode", Run: func(args []string) error { called = "decode"; return nil }},
		},
	}
	if err := root.Execute([]string{"encode", "in", "out"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "encode" {
		t.Errorf("dispatched to %q, want %q", called, "encode")
	}
	if len(receivedArgs) != 2 || receivedArgs[0] != "in" || receivedArgs[1] != "out" {
		t.Errorf("args = %v, want [in out]", receivedArgs)
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var compression string
	var receivedArgs []string
	command := &Command{
		Name: "encode",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("encode", pflag.ContinueOnError)
			flagSet.StringVar(&compression, "compress", "none", "outer compression")
			return flagSet
		},
		Run: func(args []string) error { receivedArgs = args; return nil },
	}
	if err := command.Execute([]string{"--compress", "zstd", "-", "out.blk"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if compression != "zstd" {
		t.Errorf("compression = %q, want zstd", compression)
	}
	if len(receivedArgs) != 2 || receivedArgs[0] != "-" {
		t.Errorf("args = %v, want [- out.blk]", receivedArgs)
	}
}

func TestCommand_Execute_UnknownFlagSuggestion(t *testing.T) {
	command := &Command{
		Name: "encode",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("encode", pflag.ContinueOnError)
			flagSet.String("compress", "none", "outer compression")
			return flagSet
		},
		Run: func(args []string) error { return nil },
	}
	err := command.Execute([]string{"--compres", "zstd"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "did you mean --compress?") {
		t.Errorf("error = %q, want a --compress suggestion", err)
	}
}

func TestCommand_Execute_UnknownSubcommandSuggestion(t *testing.T) {
	root := &Command{
		Name:        "archivist",
		Subcommands: []*Command{{Name: "verify", Run: func([]string) error { return nil }}},
	}
	err := root.Execute([]string{"verfy"})
	if err == nil || !strings.Contains(err.Error(), `did you mean "verify"?`) {
		t.Errorf("error = %v, want a verify suggestion", err)
	}

	err = root.Execute([]string{"completely-different"})
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %v, want no suggestion", err)
	}
}

func TestCommand_Execute_NoArgsRequiresSubcommand(t *testing.T) {
	root := &Command{
		Name:        "archivist",
		Subcommands: []*Command{{Name: "verify", Run: func([]string) error { return nil }}},
	}
	if err := root.Execute(nil); err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("error = %v, want subcommand required", err)
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	root := &Command{
		Name:    "archivist",
		Summary: "Replicated block store",
		Subcommands: []*Command{
			{Name: "encode", Summary: "Encode a byte stream"},
			{Name: "verify", Summary: "Verify a block stream"},
		},
	}
	var buffer bytes.Buffer
	root.PrintHelp(&buffer)
	output := buffer.String()
	for _, want := range []string{
		"Replicated block store",
		"archivist <command> [flags]",
		"encode",
		"Verify a block stream",
		"Run 'archivist <command> --help'",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q:\n%s", want, output)
		}
	}
}

func TestCommand_PrintHelp_WithFlags(t *testing.T) {
	command := &Command{
		Name:  "scrub",
		Usage: "archivist scrub [flags] <replica-root>...",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("scrub", pflag.ContinueOnError)
			flagSet.String("report", "", "write a CBOR report to this path")
			return flagSet
		},
	}
	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	if !strings.Contains(buffer.String(), "--report") {
		t.Errorf("help output missing --report:\n%s", buffer.String())
	}
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantStderr string
	}{
		{"success", nil, 0, ""},
		{"exit error", &ExitError{Code: 3}, 3, ""},
		{
			"path error",
			&os.PathError{Op: "open", Path: "in.blk", Err: syscall.ENOENT},
			1,
			"error 2 (no such file or directory): open in.blk: no such file or directory\n",
		},
		{"plain error", errors.New("bad arguments"), 1, "error 5 (input/output error): bad arguments\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			command := &Command{Name: "archivist", Run: func([]string) error { return test.err }}
			var stderr bytes.Buffer
			if code := run(command, nil, &stderr); code != test.wantCode {
				t.Errorf("exit code = %d, want %d", code, test.wantCode)
			}
			if stderr.String() != test.wantStderr {
				t.Errorf("stderr = %q, want %q", stderr.String(), test.wantStderr)
			}
		})
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"mount", "mount", 0},
		{"mount", "muont", 2},
		{"verify", "verfy", 1},
		{"decode", "encode", 2},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
		if got := levenshtein(test.b, test.a); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.b, test.a, got, test.want)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buffer bytes.Buffer
	var empty []string
	if err := WriteJSON(&buffer, empty); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if got := buffer.String(); got != "[]\n" {
		t.Errorf("nil slice = %q, want %q", got, "[]\n")
	}

	buffer.Reset()
	if err := WriteJSON(&buffer, map[string]int{"blocks": 3}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if got, want := buffer.String(), "{\n  \"blocks\": 3\n}\n"; got != want {
		t.Errorf("map = %q, want %q", got, want)
	}
}

func TestCommand_Execute_ArgsValidation(t *testing.T) {
	ran := false
	root := &Command{
		Name: "archivist",
		Subcommands: []*Command{{
			Name:  "verify",
			Usage: "archivist verify <input>",
			Args:  ExactArgs(1),
			Run:   func([]string) error { ran = true; return nil },
		}},
	}
	err := root.Execute([]string{"verify"})
	var usage *UsageError
	if !errors.As(err, &usage) {
		t.Fatalf("error = %v, want *UsageError", err)
	}
	if ran {
		t.Error("Run called despite argument error")
	}
	if usage.Command != "archivist verify" {
		t.Errorf("Command = %q, want %q", usage.Command, "archivist verify")
	}
	if !errors.Is(err, syscall.EINVAL) {
		t.Errorf("usage error does not unwrap to EINVAL")
	}
	want := "archivist verify: expected 1 argument, got 0 (usage: archivist verify <input>)"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err, want)
	}

	if err := root.Execute([]string{"verify", "a.blk"}); err != nil || !ran {
		t.Errorf("Execute with one argument: err=%v ran=%v", err, ran)
	}
}

func TestMinimumArgs(t *testing.T) {
	check := MinimumArgs(2)
	if err := check([]string{"a"}); err == nil || err.Error() != "expected at least 2 arguments, got 1" {
		t.Errorf("MinimumArgs(2)([a]) = %v", err)
	}
	if err := check([]string{"a", "b", "c"}); err != nil {
		t.Errorf("MinimumArgs(2)([a b c]) = %v", err)
	}
}

func TestCommand_HelpOutputInherited(t *testing.T) {
	var buffer bytes.Buffer
	root := &Command{
		Name:       "archivist",
		HelpOutput: &buffer,
		Subcommands: []*Command{{
			Name:    "scrub",
			Summary: "Verify and repair every block",
			Run:     func([]string) error { return nil },
		}},
	}
	if err := root.Execute([]string{"scrub", "--help"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(buffer.String(), "archivist scrub [flags]") {
		t.Errorf("help output = %q", buffer.String())
	}
}

func TestRun_UsageErrorDiagnostic(t *testing.T) {
	command := &Command{Name: "archivist", Args: ExactArgs(0), Run: func([]string) error { return nil }}
	var stderr bytes.Buffer
	if code := run(command, []string{"extra"}, &stderr); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	want := "error 22 (invalid argument): archivist: expected 0 arguments, got 1 (usage: archivist [flags])\n"
	if stderr.String() != want {
		t.Errorf("stderr = %q, want %q", stderr.String(), want)
	}
}
