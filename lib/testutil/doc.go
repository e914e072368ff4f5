// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds test helpers shared across keygate packages.
//
// [SocketDir] makes a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes; t.TempDir() paths can exceed
// that. [WaitForSocket] blocks until a server has created its socket.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests never hang. They are the only place tests use real
// wall-clock timeouts.
//
// Helpers fail the test with t.Fatalf rather than returning errors.
package testutil
