// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replica

// Kind classifies one replica's copy of a block.
type Kind int

const (
	// OK is a copy that verified, or was repaired.
	OK Kind = iota

	// Corrupt is a well-framed copy whose digest does not match.
	Corrupt

	// EndOfData means the replica has no bytes at this block index.
	EndOfData

	// Error is an I/O or framing failure; Status.Err says which.
	Error
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case Corrupt:
		return "corrupt"
	case EndOfData:
		return "end-of-data"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Status is the outcome of reading one replica's copy of a block.
// Err is set only when Kind is Error.
type Status struct {
	Kind Kind
	Err  error
}

// Repairs counts blocks rewritten by each repair pass.
type Repairs struct {
	Corrupt  uint64 `json:"corrupt"`
	Mismatch uint64 `json:"mismatch"`
	Missing  uint64 `json:"missing"`
}

// Total is the number of repaired block copies of any kind.
func (r Repairs) Total() uint64 {
	return r.Corrupt + r.Mismatch + r.Missing
}

// Add accumulates other into r.
func (r *Repairs) Add(other Repairs) {
	r.Corrupt += other.Corrupt
	r.Mismatch += other.Mismatch
	r.Missing += other.Missing
}
