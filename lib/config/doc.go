// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for vagsearch.
//
// Configuration is loaded from a single file named by either the
// --config flag (via [LoadFile]) or the VAGSEARCH_CONFIG environment
// variable (via [Load]). When neither is set the caller uses [Default].
// There is no ~/.config discovery and no automatic file search.
//
// Values in the file are merged over [Default], so a file only needs
// the keys it changes. Variable expansion is performed on path fields
// after loading: ${VAR} and ${VAR:-default} patterns are expanded from
// the environment. No environment variable overrides a config value
// directly.
//
// Key exports:
//
//   - [Config] -- master struct with Peer, Console, Search, Debug
//   - [Default] -- returns a Config matching SPT's stock setup
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other vagsearch packages.
package config
