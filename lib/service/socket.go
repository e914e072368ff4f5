// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/keygate/lib/codec"
)

// ActionFunc handles an open action. raw is the whole CBOR request,
// "action" field included; the handler decodes its own fields from it.
//
// A nil result produces {ok: true}. A non-nil result is CBOR-encoded
// into the response's data field. A returned error produces
// {ok: false, error: err.Error()}.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// AuthActionFunc handles a restricted action. peer has already been
// checked against the server's AuthConfig.
type AuthActionFunc func(ctx context.Context, peer Peer, raw []byte) (any, error)

// Response is the envelope of every socket response.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

type route struct {
	open       ActionFunc
	restricted AuthActionFunc
}

// SocketServer serves the one-request-per-connection CBOR protocol on a
// Unix socket. Register every action before calling Serve.
type SocketServer struct {
	socketPath string
	logger     *slog.Logger
	auth       *AuthConfig
	routes     map[string]route

	// active counts in-flight connections so Serve can drain them.
	active sync.WaitGroup
}

// NewSocketServer creates a server for socketPath. auth may be nil if
// no restricted actions will be registered.
func NewSocketServer(socketPath string, logger *slog.Logger, auth *AuthConfig) *SocketServer {
	return &SocketServer{
		socketPath: socketPath,
		logger:     logger,
		auth:       auth,
		routes:     make(map[string]route),
	}
}

// Handle registers an action any connecting process may call.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	s.register(action, route{open: handler})
}

// HandleAuth registers an action restricted to AllowedUIDs. Panics if
// the server was built without an AuthConfig.
func (s *SocketServer) HandleAuth(action string, handler AuthActionFunc) {
	if s.auth == nil {
		panic(fmt.Sprintf("service.SocketServer: HandleAuth(%q) requires an AuthConfig", action))
	}
	s.register(action, route{restricted: handler})
}

func (s *SocketServer) register(action string, r route) {
	if _, exists := s.routes[action]; exists {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
	s.routes[action] = r
}

// Serve listens on the socket path and dispatches requests until ctx is
// cancelled, then waits for in-flight requests before returning. A
// stale socket file is replaced; the socket file is removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	s.logger.Info("socket server listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.active.Wait()
	return nil
}

const (
	// readTimeout bounds how long a client may take to send its request.
	readTimeout = 30 * time.Second

	writeTimeout = 10 * time.Second

	// maxRequestSize caps a request. Policies are a few hundred bytes.
	maxRequestSize = 1024 * 1024
)

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeError(conn, "missing required field: action")
		return
	}
	r, exists := s.routes[header.Action]
	if !exists {
		s.writeError(conn, fmt.Sprintf("unknown action %q", header.Action))
		return
	}

	var (
		result any
		err    error
	)
	if r.restricted != nil {
		peer, peerErr := peerCredentials(conn)
		if peerErr != nil {
			s.logger.Warn("rejecting request without peer credentials", "action", header.Action, "error", peerErr)
			s.writeError(conn, ErrPermissionDenied.Error())
			return
		}
		if !s.auth.allows(peer) {
			s.logger.Warn("rejecting restricted action",
				"action", header.Action,
				"uid", peer.UID,
				"pid", peer.PID,
			)
			s.writeError(conn, fmt.Sprintf("%v: uid %d may not call %q", ErrPermissionDenied, peer.UID, header.Action))
			return
		}
		result, err = r.restricted(ctx, peer, []byte(raw))
	} else {
		result, err = r.open(ctx, []byte(raw))
	}
	if err != nil {
		s.logger.Debug("action failed", "action", header.Action, "error", err)
		s.writeError(conn, err.Error())
		return
	}
	s.writeSuccess(conn, result)
}

func (s *SocketServer) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{Error: message}); err != nil {
		s.logger.Debug("writing error response failed", "error", err)
	}
}

func (s *SocketServer) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, fmt.Sprintf("internal: encoding response: %v", err))
			return
		}
		response.Data = data
	}
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("writing response failed", "error", err)
	}
}
