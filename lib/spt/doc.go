// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package spt is the vocabulary of SPT console commands the search
// issues, and the decoding of the structured payloads SPT sends back
// over IPC.
//
// SPT reports entity state as a flat JSON object keyed by networked
// property name, with vector properties exploded into indexed entries:
//
//	{"type":"ent","entity":{"m_vecOrigin[0]":-128.5,"m_vecOrigin[1]":64,...}}
//
// [Entity] wraps that object and offers typed accessors. Entity handles
// (m_hLinkedPortal, m_hPortalEnvironment) encode an entity index in
// their low 11 bits; [HandleToIndex] recovers it.
package spt
