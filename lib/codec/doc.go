// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR configuration used for probe journals.
//
// The game speaks JSON over IPC and that format is fixed. Everything
// vagsearch writes to disk for itself is CBOR: a journal is a CBOR
// sequence (RFC 8742) of a header followed by one record per probe. The
// encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the same
// search always produces identical bytes and journal digests are stable.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For streams:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// Journal types carry `cbor` tags with short keys; they are never
// rendered as JSON directly.
package codec
