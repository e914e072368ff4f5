// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/keygate/lib/authset"
	"github.com/bureau-foundation/keygate/lib/codec"
	"github.com/bureau-foundation/keygate/lib/enforcement"
	"github.com/bureau-foundation/keygate/lib/ledger"
	"github.com/bureau-foundation/keygate/lib/metrics"
	"github.com/bureau-foundation/keygate/lib/service"
	"github.com/bureau-foundation/keygate/lib/version"
)

// registerActions registers the socket API. status is open; everything
// that reveals or changes enforcement state requires an allowed peer.
func (ks *KeygateService) registerActions(server *service.SocketServer) {
	server.Handle("status", ks.handleStatus)

	server.HandleAuth("authorize-operation", ks.handleAuthorizeOperation)
	server.HandleAuth("authorize-rescope", ks.handleAuthorizeRescope)
	server.HandleAuth("record-user-auth", ks.handleRecordUserAuth)
	server.HandleAuth("key-info", ks.handleKeyInfo)
}

type statusResponse struct {
	UptimeSeconds float64 `cbor:"uptime_seconds"`
	Version       string  `cbor:"version"`
	TrackedKeys   int     `cbor:"tracked_keys"`

	// LastUserAuth is Unix seconds, 0 if no authentication has been
	// recorded since the daemon started.
	LastUserAuth int64 `cbor:"last_user_auth"`

	// TokenVerification reports whether record-user-auth requires a
	// verified auth token.
	TokenVerification bool `cbor:"token_verification"`
}

func (ks *KeygateService) handleStatus(ctx context.Context, raw []byte) (any, error) {
	stats := ks.enforcer.Stats()
	return statusResponse{
		UptimeSeconds:     uptimeSeconds(ks.clock.Now(), ks.startedAt),
		Version:           version.Short(),
		TrackedKeys:       stats.TrackedKeys,
		LastUserAuth:      unixOrZero(stats.LastUserAuthentication),
		TokenVerification: ks.verifier != nil,
	}, nil
}

type authorizeOperationRequest struct {
	Purpose uint32      `cbor:"purpose"`
	KeyID   uint64      `cbor:"key_id"`
	Policy  authset.Set `cbor:"policy"`

	// CallerUID defaults to the peer UID when absent.
	CallerUID *uint32 `cbor:"caller_uid"`

	ApplicationID []byte `cbor:"application_id"`
}

func (ks *KeygateService) handleAuthorizeOperation(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	var request authorizeOperationRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid authorize-operation request: %w", err)
	}
	if err := request.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid authorize-operation request: policy: %w", err)
	}
	callerUID := callerOrPeer(request.CallerUID, peer)
	operation := enforcement.Operation{
		Purpose:       authset.Purpose(request.Purpose),
		KeyID:         enforcement.KeyID(request.KeyID),
		Policy:        request.Policy,
		CallerUID:     callerUID,
		ApplicationID: request.ApplicationID,
	}
	result := ks.enforcer.AuthorizeOperation(operation)
	return ks.decide(metrics.OperationAuthorize, request.Policy, result,
		"key_id", request.KeyID,
		"purpose", operation.Purpose,
		"caller_uid", callerUID,
		"peer_uid", peer.UID,
	), nil
}

type authorizeRescopeRequest struct {
	KeyID     uint64      `cbor:"key_id"`
	OldPolicy authset.Set `cbor:"old_policy"`
	NewPolicy authset.Set `cbor:"new_policy"`
	CallerUID *uint32     `cbor:"caller_uid"`
}

func (ks *KeygateService) handleAuthorizeRescope(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	var request authorizeRescopeRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid authorize-rescope request: %w", err)
	}
	if err := request.OldPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid authorize-rescope request: old_policy: %w", err)
	}
	if err := request.NewPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid authorize-rescope request: new_policy: %w", err)
	}
	callerUID := callerOrPeer(request.CallerUID, peer)
	result := ks.enforcer.AuthorizeRescope(enforcement.Rescope{
		KeyID:     enforcement.KeyID(request.KeyID),
		OldPolicy: request.OldPolicy,
		NewPolicy: request.NewPolicy,
		CallerUID: callerUID,
	})
	return ks.decide(metrics.OperationRescope, request.OldPolicy, result,
		"key_id", request.KeyID,
		"new_policy", authset.Fingerprint(request.NewPolicy),
		"caller_uid", callerUID,
		"peer_uid", peer.UID,
	), nil
}

type recordUserAuthRequest struct {
	// Token is a 65-byte auth token. Required when token verification
	// is configured, rejected when it is not.
	Token []byte `cbor:"token"`
}

type recordUserAuthResponse struct {
	// AuthenticatedAt is the recorded time in Unix seconds.
	AuthenticatedAt int64 `cbor:"authenticated_at"`

	Verified        bool   `cbor:"verified"`
	AuthenticatorID uint32 `cbor:"authenticator_id,omitempty"`
}

var (
	errTokenRequired    = errors.New("record-user-auth requires an auth token")
	errTokenNotAccepted = errors.New("auth-token verification is not configured")
)

func (ks *KeygateService) handleRecordUserAuth(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	var request recordUserAuthRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid record-user-auth request: %w", err)
	}

	var response recordUserAuthResponse
	switch {
	case ks.verifier != nil && len(request.Token) == 0:
		ks.metrics.RecordUserAuth(metrics.AuthRejected)
		return nil, errTokenRequired
	case ks.verifier != nil:
		token, err := ks.verifier.Verify(request.Token)
		if err != nil {
			ks.metrics.RecordUserAuth(metrics.AuthRejected)
			ks.logger.Warn("rejected auth token", "peer_uid", peer.UID, "error", err)
			return nil, err
		}
		response.Verified = true
		response.AuthenticatorID = token.AuthenticatorID
		ks.metrics.RecordUserAuth(metrics.AuthAccepted)
	case len(request.Token) > 0:
		ks.metrics.RecordUserAuth(metrics.AuthRejected)
		return nil, errTokenNotAccepted
	default:
		ks.metrics.RecordUserAuth(metrics.AuthUnverified)
	}

	at := ks.enforcer.RecordUserAuthentication()
	response.AuthenticatedAt = at.Unix()
	ks.logger.Info("user authentication recorded",
		"verified", response.Verified,
		"authenticator_id", response.AuthenticatorID,
		"peer_uid", peer.UID,
	)
	return response, nil
}

type keyInfoRequest struct {
	KeyID uint64 `cbor:"key_id"`
}

type keyInfoResponse struct {
	KeyID uint64 `cbor:"key_id"`

	// LastAccess is Unix seconds of the last permitted operation, 0 if
	// the key has not been used since the daemon started.
	LastAccess int64 `cbor:"last_access"`
}

func (ks *KeygateService) handleKeyInfo(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	var request keyInfoRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid key-info request: %w", err)
	}
	return keyInfoResponse{
		KeyID:      request.KeyID,
		LastAccess: unixOrZero(ks.enforcer.LastAccess(enforcement.KeyID(request.KeyID))),
	}, nil
}

func callerOrPeer(callerUID *uint32, peer service.Peer) uint32 {
	if callerUID != nil {
		return *callerUID
	}
	return peer.UID
}

// unixOrZero maps a never-recorded time to 0.
func unixOrZero(t time.Time) int64 {
	if ledger.IsNever(t) {
		return 0
	}
	return t.Unix()
}
