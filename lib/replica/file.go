// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replica

import (
	"github.com/bureau-foundation/archivist/lib/block"
	"github.com/bureau-foundation/archivist/lib/layout"
)

// Read fills dest from logical offset off, one block at a time. It
// stops early at the first block with no bytes left at the requested
// position, so a read past the end of the file returns a short count
// and no error.
func (s *Set) Read(dest []byte, off int64) (int, error) {
	total := 0
	for total < len(dest) {
		position := layout.ToPhysical(off + int64(total))
		if err := s.ReadBlock(position.BlockOffset); err != nil {
			return total, err
		}
		current := s.Block()
		if int(current.Length) <= position.Within {
			break
		}
		total += copy(dest[total:], current.Payload[position.Within:current.Length])
	}
	return total, nil
}

// Write stores data at logical offset off, growing the file as needed.
// Writing past the end of the file first fills the gap with zeros, so
// every block before the last stays full.
func (s *Set) Write(data []byte, off int64) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	size, err := s.Size()
	if err != nil {
		return 0, err
	}
	if off > size {
		if err := s.fill(size, off); err != nil {
			return 0, err
		}
	}
	return s.write(data, off)
}

func (s *Set) write(data []byte, off int64) (int, error) {
	total := 0
	for total < len(data) {
		position := layout.ToPhysical(off + int64(total))
		if err := s.ReadBlock(position.BlockOffset); err != nil {
			return total, err
		}
		current := s.Block()
		n := copy(current.Payload[position.Within:], data[total:])
		if end := position.Within + n; end > int(current.Length) {
			current.SetLength(end)
		}
		if err := s.WriteBlock(position.BlockOffset); err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// fill writes zeros over the logical range [from, to).
func (s *Set) fill(from, to int64) error {
	var zeros [block.PayloadSize]byte
	for from < to {
		chunk := min(to-from, int64(len(zeros)))
		n, err := s.write(zeros[:chunk], from)
		if err != nil {
			return err
		}
		from += int64(n)
	}
	return nil
}

// Truncate changes the logical size of the file. Shrinking rewrites
// the block holding the new end with its shorter length and then cuts
// every replica after it; growing appends zeros. Truncating to zero
// cuts every replica without reading.
func (s *Set) Truncate(size int64) error {
	if size == 0 {
		return s.truncateAll(0)
	}
	current, err := s.Size()
	if err != nil {
		return err
	}
	switch {
	case size == current:
		return nil
	case size > current:
		return s.fill(current, size)
	}

	target := layout.TruncateTarget(size)
	if err := s.ReadBlock(target.BlockOffset); err != nil {
		return err
	}
	s.Block().SetLength(target.Length)
	if err := s.WriteBlock(target.BlockOffset); err != nil {
		return err
	}
	return s.truncateAll(target.PhysicalSize)
}

// truncateAll cuts every replica to physical size, attempting all of
// them and returning the first error.
func (s *Set) truncateAll(physical int64) error {
	var first error
	for i, handle := range s.handles {
		if err := handle.Truncate(physical); err != nil && first == nil {
			first = &ReplicaError{Replica: i, Offset: physical, Err: err}
		}
	}
	return first
}
