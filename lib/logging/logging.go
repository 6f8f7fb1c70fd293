// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the process log for the archivist filesystem.
//
// The log is a slog text log with three severities: INFO for every
// incoming operation, STATUS for an operation's successful result, and
// ERROR for a failure together with its errno. Lines carry a
// wall-clock time of day rather than a full timestamp, since a mount's
// log is truncated at startup.
//
// slog handlers serialize writes internally, so a single logger is
// shared by every goroutine the FUSE server dispatches to.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
)

// LevelStatus sits between INFO and WARN and marks the outcome of a
// completed operation.
const LevelStatus = slog.Level(2)

// TimeFormat is the layout of the time attribute.
const TimeFormat = "15:04:05"

// New returns a logger writing text lines to w at INFO and above.
func New(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       slog.LevelInfo,
		ReplaceAttr: replaceAttr,
	}))
}

// OpenFile creates or truncates the log file at path and returns a
// logger writing to it along with the file, which the caller closes
// at shutdown.
func OpenFile(path string) (*slog.Logger, *os.File, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return New(file), file, nil
}

func replaceAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		if t := attr.Value.Time(); !t.IsZero() {
			return slog.String(slog.TimeKey, t.Format(TimeFormat))
		}
	case slog.LevelKey:
		if level, ok := attr.Value.Any().(slog.Level); ok && level == LevelStatus {
			return slog.String(slog.LevelKey, "STATUS")
		}
	}
	return attr
}

// Info records an incoming operation.
func Info(logger *slog.Logger, op, path string, args ...any) {
	logger.Info(op, append([]any{"path", path}, args...)...)
}

// Status records an operation's successful outcome and returns rc so
// that call sites can return through it.
func Status(logger *slog.Logger, op, path string, rc int, args ...any) int {
	logger.Log(context.Background(), LevelStatus, op,
		append([]any{"path", path, "rc", rc}, args...)...)
	return rc
}

// Error records a failed operation with its errno and description and
// returns the errno.
func Error(logger *slog.Logger, op, path string, errno syscall.Errno, args ...any) syscall.Errno {
	logger.Error(op, append([]any{
		"path", path,
		"errno", int(errno),
		"error", errno.Error(),
	}, args...)...)
	return errno
}
