// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/archivist/lib/block"
	"github.com/bureau-foundation/archivist/lib/layout"
)

// Handle is one open replica file. *os.File satisfies it.
type Handle interface {
	io.ReaderAt
	io.WriterAt
	Truncate(size int64) error
	Stat() (os.FileInfo, error)
	Close() error
}

// Set is an open logical file: one handle per replica, the per-replica
// block buffers used during repair, and the canonical block produced
// by the last successful [Set.ReadBlock].
type Set struct {
	handles []Handle
	logger  *slog.Logger

	// copies[i] holds replica i's block during ReadBlock. After a
	// successful read every entry equals current.
	copies   []block.Block
	statuses []Status
	current  block.Block

	// scratch receives raw bytes from each replica.
	scratch [block.Size]byte

	// entropy, when set, supplies new-block seeds in place of the
	// system source.
	entropy io.Reader

	repairs Repairs
}

// NewSet wraps already open handles. Handle 0 is the authority
// replica. A nil logger discards repair messages.
func NewSet(handles []Handle, logger *slog.Logger) *Set {
	if len(handles) == 0 {
		panic("replica: NewSet requires at least one handle")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Set{
		handles:  handles,
		logger:   logger,
		copies:   make([]block.Block, len(handles)),
		statuses: make([]Status, len(handles)),
	}
}

// Open opens every path with flag and perm and returns them as a Set.
// If any open fails, the handles already opened are closed and the
// first failure is returned.
func Open(paths []string, flag int, perm os.FileMode, logger *slog.Logger) (*Set, error) {
	if len(paths) == 0 {
		return nil, errors.New("replica: no replica paths")
	}
	handles := make([]Handle, 0, len(paths))
	for _, path := range paths {
		file, err := os.OpenFile(path, flag, perm)
		if err != nil {
			for _, handle := range handles {
				handle.Close()
			}
			return nil, err
		}
		handles = append(handles, file)
	}
	return NewSet(handles, logger), nil
}

// Close closes every handle and returns the first error.
func (s *Set) Close() error {
	var first error
	for _, handle := range s.handles {
		if err := handle.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SetEntropy makes new blocks draw their seeds from source. A read
// failure is reported as [block.ErrEntropyUnavailable] and is not
// retried.
func (s *Set) SetEntropy(source io.Reader) {
	s.entropy = source
}

func (s *Set) newSeed() (block.Seed, error) {
	if s.entropy != nil {
		return block.ReadSeed(s.entropy)
	}
	return block.NewSeed()
}

// Len returns the number of replicas.
func (s *Set) Len() int {
	return len(s.handles)
}

// Block returns the canonical block. Callers mutate it between
// [Set.ReadBlock] and [Set.WriteBlock].
func (s *Set) Block() *block.Block {
	return &s.current
}

// Status returns replica i's classification from the last ReadBlock.
func (s *Set) Status(i int) Status {
	return s.statuses[i]
}

// Stats returns the repair counts accumulated since the Set was opened.
func (s *Set) Stats() Repairs {
	return s.repairs
}

// ReadBlock reads the block at physical offset from every replica,
// repairs what it can, and leaves the result in [Set.Block]. It
// returns the first unresolved per-replica error by index.
func (s *Set) ReadBlock(offset int64) error {
	for i := range s.handles {
		s.statuses[i] = s.load(i, offset)
	}

	s.repairCorrupt(offset)
	s.repairMismatch(offset)
	s.repairMissing(offset)

	endOfData := 0
	for _, status := range s.statuses {
		if status.Kind == EndOfData {
			endOfData++
		}
	}
	switch {
	case endOfData == len(s.statuses):
		seed, err := s.newSeed()
		if err != nil {
			return fmt.Errorf("creating block at offset %d: %w", offset, err)
		}
		for i := range s.copies {
			s.copies[i] = block.Block{Version: block.Version, Seed: seed}
			s.statuses[i] = Status{Kind: OK}
		}
	case endOfData > 0:
		// Some replicas end here and others do not: every replica
		// that is not known good is unresolvable.
		for i, status := range s.statuses {
			if status.Kind != OK {
				s.statuses[i] = Status{Kind: Error, Err: ErrInconsistent}
			}
		}
	}

	for i, status := range s.statuses {
		switch status.Kind {
		case OK:
		case Corrupt:
			return &ReplicaError{Replica: i, Offset: offset, Err: block.ErrIntegrity}
		default:
			return &ReplicaError{Replica: i, Offset: offset, Err: status.Err}
		}
	}

	s.current = s.copies[0]
	for i := range s.copies {
		s.copies[i] = s.current
	}
	return nil
}

// load reads and classifies replica i's copy of the block at offset.
func (s *Set) load(i int, offset int64) Status {
	n, err := s.handles[i].ReadAt(s.scratch[:], offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return Status{Kind: Error, Err: err}
	}
	if n == 0 {
		return Status{Kind: EndOfData}
	}
	if err := s.copies[i].UnmarshalFrom(s.scratch[:n]); err != nil {
		return Status{Kind: Error, Err: err}
	}
	if !s.copies[i].Verify() {
		return Status{Kind: Corrupt}
	}
	return Status{Kind: OK}
}

func (s *Set) repairCorrupt(offset int64) {
	for i, status := range s.statuses {
		if status.Kind != Corrupt {
			continue
		}
		source := -1
		for j, candidate := range s.statuses {
			if j != i && candidate.Kind == OK {
				source = j
				break
			}
		}
		if source < 0 {
			continue
		}
		if err := s.copyBlock(source, i, offset); err != nil {
			s.logger.Error("corrupt block repair failed",
				"replica", i, "source", source, "offset", offset, "error", err)
			continue
		}
		s.statuses[i] = Status{Kind: OK}
		s.repairs.Corrupt++
		s.logger.Info("repaired corrupt block",
			"replica", i, "source", source, "offset", offset)
	}
}

func (s *Set) repairMismatch(offset int64) {
	if s.statuses[0].Kind != OK {
		return
	}
	for i := 1; i < len(s.statuses); i++ {
		if s.statuses[i].Kind != OK || s.copies[i] == s.copies[0] {
			continue
		}
		if err := s.copyBlock(0, i, offset); err != nil {
			// The canonical block is still replica 0's; the divergent
			// copy is retried on the next read.
			s.logger.Error("mismatched block repair failed",
				"replica", i, "offset", offset, "error", err)
			continue
		}
		s.repairs.Mismatch++
		s.logger.Info("repaired mismatched block", "replica", i, "offset", offset)
	}
}

func (s *Set) repairMissing(offset int64) {
	if s.statuses[0].Kind != OK {
		return
	}
	for i := 1; i < len(s.statuses); i++ {
		if s.statuses[i].Kind != EndOfData {
			continue
		}
		if err := s.copyBlock(0, i, offset); err != nil {
			s.logger.Error("missing block repair failed",
				"replica", i, "offset", offset, "error", err)
			continue
		}
		s.statuses[i] = Status{Kind: OK}
		s.repairs.Missing++
		s.logger.Info("repaired missing block", "replica", i, "offset", offset)
	}
}

// copyBlock overwrites replica target's block at offset with replica
// source's verified copy. A short block is the last block of the
// source replica, so the target is cut after it; otherwise stale bytes
// from a longer copy would break the target's framing.
func (s *Set) copyBlock(source, target int, offset int64) error {
	s.copies[target] = s.copies[source]
	image := &s.copies[source]
	extent := image.StoredSize()
	var buffer [block.Size]byte
	image.MarshalTo(buffer[:])
	if err := writeFull(s.handles[target], buffer[:extent], offset); err != nil {
		return err
	}
	if extent < block.Size {
		return s.handles[target].Truncate(offset + int64(extent))
	}
	return nil
}

// WriteBlock seals the canonical block and writes its stored extent to
// every replica in index order. The first failing replica's error is
// returned and later replicas are not written.
func (s *Set) WriteBlock(offset int64) error {
	s.current.Seal()
	var buffer [block.Size]byte
	s.current.MarshalTo(buffer[:])
	data := buffer[:s.current.StoredSize()]
	for i, handle := range s.handles {
		if err := writeFull(handle, data, offset); err != nil {
			return &ReplicaError{Replica: i, Offset: offset, Err: err}
		}
		s.copies[i] = s.current
	}
	return nil
}

func writeFull(handle Handle, data []byte, offset int64) error {
	n, err := handle.WriteAt(data, offset)
	if err != nil {
		return err
	}
	if n != len(data) {
		return io.ErrShortWrite
	}
	return nil
}

// Size returns the logical size of the file, derived from replica 0's
// physical size.
func (s *Set) Size() (int64, error) {
	info, err := s.handles[0].Stat()
	if err != nil {
		return 0, err
	}
	return layout.LogicalSize(info.Size()), nil
}
