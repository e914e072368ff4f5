// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service hosts keygate's local APIs: a CBOR request-response
// protocol on a Unix socket, and a small HTTP server for operational
// endpoints.
//
// # Socket protocol
//
// Each connection carries one request and one response. The request is
// a CBOR map with an "action" key plus action-specific fields; the
// response is a [Response] envelope, {ok, error, data}. [SocketServer]
// routes requests to handlers registered with [SocketServer.Handle] or
// [SocketServer.HandleAuth]; [ServiceClient] is the matching client.
//
// # Caller identity
//
// The server never trusts identity claimed inside a request. For
// actions registered with HandleAuth it asks the kernel for the
// connecting process's credentials (SO_PEERCRED) and admits only UIDs
// listed in [AuthConfig.AllowedUIDs]. The handler receives the
// verified [Peer].
package service
