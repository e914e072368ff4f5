// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the keygate binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// For example:
//
//	go build -ldflags "-X github.com/bureau-foundation/keygate/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// [Info] formats these for --version output, and [Full] adds the Go
// version and platform. The status action of keygate-service reports
// [Short] so a client can tell which daemon it reached.
package version
