// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the keygate daemon's YAML configuration.
//
// The file is named by the --config flag ([LoadFile]) or the
// KEYGATE_CONFIG environment variable ([Load]). There is no search path
// and no fallback: a daemon without a config file does not start.
//
// A file may carry development, staging and production sections whose
// non-empty fields override the base values when [Config].Environment
// matches. Production without its own section switches logging to
// JSON.
//
// Path fields expand ${HOME}, ${VAR} and ${VAR:-default} after loading.
// No other environment variable overrides a configured value.
package config
