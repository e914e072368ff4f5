// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helper shared by the keygate
// binaries. [Fatal] is the one place a binary writes to stderr before
// its structured logger exists.
package process
