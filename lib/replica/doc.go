// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package replica manages one logical file stored as N identical
// replicas of a block sequence.
//
// Every block read goes through [Set.ReadBlock], which reads the block
// from all replicas, classifies each copy, and repairs what it can
// before returning a single canonical block. Repair runs in a fixed
// order:
//
//   - corrupt copies are overwritten from the first healthy replica
//   - healthy copies that disagree with replica 0 are overwritten from
//     replica 0
//   - replicas with no block at this index are populated from replica 0
//     when replica 0 is healthy
//   - if every replica is at end of data, the block is new and gets a
//     fresh seed shared by all replicas
//
// Replica 0 is the authority: when it is healthy, it wins every
// disagreement. When it is not healthy, repair proceeds from whichever
// replica is, but disagreement among the other replicas is only ever
// detected through replica 0.
//
// [Set.WriteBlock] seals the canonical block and writes it to every
// replica in index order, stopping at the first failure. A failed
// fan-out leaves replicas divergent; the next read repairs them.
//
// A Set is owned by one session and is not safe for concurrent use.
package replica
