// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"errors"
	"fmt"
	"net"
	"slices"

	"golang.org/x/sys/unix"
)

// ErrPermissionDenied is the error sent to peers whose UID may not call
// a restricted action.
var ErrPermissionDenied = errors.New("permission denied")

// Peer is the kernel-reported identity of the process on the other end
// of a connection, captured when it connected.
type Peer struct {
	PID int32
	UID uint32
	GID uint32
}

// AuthConfig restricts actions registered with HandleAuth.
type AuthConfig struct {
	// AllowedUIDs lists the UIDs admitted to restricted actions. The
	// server's own UID is not implicitly allowed.
	AllowedUIDs []uint32
}

func (c *AuthConfig) allows(peer Peer) bool {
	return slices.Contains(c.AllowedUIDs, peer.UID)
}

// peerCredentials reads SO_PEERCRED from a Unix socket connection.
func peerCredentials(conn net.Conn) (Peer, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return Peer{}, fmt.Errorf("peer credentials: %T is not a Unix socket", conn)
	}
	rawConn, err := unixConn.SyscallConn()
	if err != nil {
		return Peer{}, fmt.Errorf("peer credentials: %w", err)
	}

	var (
		credentials *unix.Ucred
		sockoptErr  error
	)
	controlErr := rawConn.Control(func(fd uintptr) {
		credentials, sockoptErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err := errors.Join(controlErr, sockoptErr); err != nil {
		return Peer{}, fmt.Errorf("peer credentials: %w", err)
	}
	return Peer{PID: credentials.Pid, UID: credentials.Uid, GID: credentials.Gid}, nil
}
