// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal records searches to disk so they can be inspected
// after the game has moved on.
//
// A journal file starts with a fixed preamble: the four bytes "VAGJ",
// a format version byte and a [Compression] byte. The rest of the file
// is a CBOR sequence, optionally compressed as a single zstd or lz4
// frame stream: one [Header], then one record per probe, then at most
// one result record. A search interrupted by a channel error leaves a
// journal without a result record, which [Read] accepts.
//
// Each header carries a BLAKE3 digest of the portal placement (entry
// and exit origins and angles) so journals of the same setup can be
// grouped regardless of when they were recorded.
package journal
