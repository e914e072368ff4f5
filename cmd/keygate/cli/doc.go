// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework for the keygate CLI: a tree of
// [Command] values with pflag flag sets, generated help, and
// did-you-mean suggestions for mistyped commands and flags.
//
// Commands write their results to the writer they were built with and
// return errors instead of exiting; main passes the error to
// process.Fatal. [NewCommandLogger] gives commands a structured logger
// for progress lines that should not mix with their output.
package cli
