// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/keygate/lib/authset"
	"github.com/bureau-foundation/keygate/lib/authtoken"
	"github.com/bureau-foundation/keygate/lib/codec"
	"github.com/bureau-foundation/keygate/lib/process"
	"github.com/bureau-foundation/keygate/lib/service"
	"github.com/bureau-foundation/keygate/lib/testutil"
)

// fakeDaemon answers every action with a canned response and keeps the
// last request it received for each action.
type fakeDaemon struct {
	socketPath string

	mu       sync.Mutex
	requests map[string]codec.RawMessage
}

func startFakeDaemon(t *testing.T, responses map[string]any) *fakeDaemon {
	t.Helper()
	daemon := &fakeDaemon{
		socketPath: filepath.Join(testutil.SocketDir(t), "keygate.sock"),
		requests:   make(map[string]codec.RawMessage),
	}
	server := service.NewSocketServer(daemon.socketPath, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	for action, response := range responses {
		server.Handle(action, func(ctx context.Context, raw []byte) (any, error) {
			daemon.mu.Lock()
			daemon.requests[action] = append(codec.RawMessage(nil), raw...)
			daemon.mu.Unlock()
			return response, nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErrors := make(chan error, 1)
	go func() { serveErrors <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, serveErrors, 5*time.Second, "waiting for Serve to return"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	testutil.WaitForSocket(t, daemon.socketPath)
	return daemon
}

// request decodes the last request received for action into target.
func (d *fakeDaemon) request(t *testing.T, action string, target any) {
	t.Helper()
	d.mu.Lock()
	raw, ok := d.requests[action]
	d.mu.Unlock()
	if !ok {
		t.Fatalf("no %s request received", action)
	}
	if err := codec.Unmarshal(raw, target); err != nil {
		t.Fatalf("decoding %s request: %v", action, err)
	}
}

func TestAuthorizeCommand(t *testing.T) {
	daemon := startFakeDaemon(t, map[string]any{
		"authorize-operation": decision{DecisionID: "d-1", Code: 0, CodeName: "OK"},
	})
	policyPath := writeFile(t, "signing.jsonc", testPolicy)

	output, err := execute(t, "authorize",
		"--socket", daemon.socketPath,
		"--policy", policyPath,
		"--purpose", "sign",
		"--key", "7",
		"--uid", "1000",
		"--app-id", "releaser",
	)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !strings.Contains(output, "OK") || !strings.Contains(output, "d-1") {
		t.Errorf("output = %q", output)
	}

	var request struct {
		Purpose       uint32      `cbor:"purpose"`
		KeyID         uint64      `cbor:"key_id"`
		Policy        authset.Set `cbor:"policy"`
		CallerUID     *uint32     `cbor:"caller_uid"`
		ApplicationID []byte      `cbor:"application_id"`
	}
	daemon.request(t, "authorize-operation", &request)
	if authset.Purpose(request.Purpose) != authset.PurposeSign || request.KeyID != 7 {
		t.Errorf("request = %+v", request)
	}
	if len(request.Policy) != 3 || request.Policy[0].Kind != authset.TagPurpose {
		t.Errorf("policy = %v", request.Policy)
	}
	if request.CallerUID == nil || *request.CallerUID != 1000 {
		t.Errorf("caller_uid = %v, want 1000", request.CallerUID)
	}
	if string(request.ApplicationID) != "releaser" {
		t.Errorf("application_id = %q", request.ApplicationID)
	}
}

func TestAuthorizeCommandOmitsUnsetCaller(t *testing.T) {
	daemon := startFakeDaemon(t, map[string]any{
		"authorize-operation": decision{DecisionID: "d-2", CodeName: "OK"},
	})
	policyPath := writeFile(t, "signing.jsonc", testPolicy)

	if _, err := execute(t, "authorize", "--socket", daemon.socketPath, "--policy", policyPath, "--purpose", "SIGN"); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	var request map[string]any
	daemon.request(t, "authorize-operation", &request)
	if _, present := request["caller_uid"]; present {
		t.Error("caller_uid sent without --uid")
	}
	if _, present := request["application_id"]; present {
		t.Error("application_id sent without --app-id")
	}
}

func TestAuthorizeCommandDenied(t *testing.T) {
	daemon := startFakeDaemon(t, map[string]any{
		"authorize-operation": decision{
			DecisionID: "d-3",
			Code:       -25,
			CodeName:   "KEY_EXPIRED",
			Tag:        "ORIGINATION_EXPIRE_DATETIME",
			Message:    "KEY_EXPIRED (ORIGINATION_EXPIRE_DATETIME)",
		},
	})
	policyPath := writeFile(t, "signing.jsonc", testPolicy)

	_, err := execute(t, "authorize", "--socket", daemon.socketPath, "--policy", policyPath, "--purpose", "SIGN")
	if err == nil {
		t.Fatal("denied authorization returned nil")
	}
	if code := process.ExitCode(err); code != exitDenied {
		t.Errorf("exit code = %d, want %d", code, exitDenied)
	}
	if !strings.Contains(err.Error(), "KEY_EXPIRED") || !strings.Contains(err.Error(), "d-3") {
		t.Errorf("error = %q", err)
	}
}

func TestAuthorizeCommandValidation(t *testing.T) {
	policyPath := writeFile(t, "signing.jsonc", testPolicy)
	if _, err := execute(t, "authorize", "--policy", policyPath); err == nil {
		t.Error("authorize without --purpose succeeded")
	}
	if _, err := execute(t, "authorize", "--policy", policyPath, "--purpose", "WRAP"); err == nil {
		t.Error("authorize with an unknown purpose succeeded")
	}
}

func TestRescopeCommand(t *testing.T) {
	daemon := startFakeDaemon(t, map[string]any{
		"authorize-rescope": decision{DecisionID: "r-1", Code: -42, CodeName: "INVALID_RESCOPING", Message: "INVALID_RESCOPING (USER_ID)"},
	})
	oldPath := writeFile(t, "old.jsonc", `{"tags": [{"tag": "PURPOSE", "value": "SIGN"}]}`)
	newPath := writeFile(t, "new.jsonc", testPolicy)

	output, err := execute(t, "rescope", "--socket", daemon.socketPath, "--old", oldPath, "--new", newPath, "--key", "3", "--json")
	if process.ExitCode(err) != exitDenied {
		t.Fatalf("rescope = %v, want exit %d", err, exitDenied)
	}
	if !strings.Contains(output, `"code_name": "INVALID_RESCOPING"`) {
		t.Errorf("JSON output = %q", output)
	}

	var request struct {
		KeyID     uint64      `cbor:"key_id"`
		OldPolicy authset.Set `cbor:"old_policy"`
		NewPolicy authset.Set `cbor:"new_policy"`
	}
	daemon.request(t, "authorize-rescope", &request)
	if request.KeyID != 3 || len(request.OldPolicy) != 1 || len(request.NewPolicy) != 3 {
		t.Errorf("request = %+v", request)
	}
}

func TestStatusCommand(t *testing.T) {
	daemon := startFakeDaemon(t, map[string]any{
		"status": statusResult{
			UptimeSeconds: 3600,
			Version:       "1.2.3",
			TrackedKeys:   4,
			LastUserAuth:  time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC).Unix(),
		},
	})

	output, err := execute(t, "status", "--socket", daemon.socketPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"1.2.3", "1h0m0s", "tracked keys        4", "2026-01-15T12:00:00Z", "disabled"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestKeyInfoCommand(t *testing.T) {
	daemon := startFakeDaemon(t, map[string]any{
		"key-info": keyInfoResult{KeyID: 9},
	})

	output, err := execute(t, "key-info", "--socket", daemon.socketPath, "--key", "9")
	if err != nil {
		t.Fatalf("key-info: %v", err)
	}
	if output != "key 9 last access never\n" {
		t.Errorf("output = %q", output)
	}
	var request keyInfoResult
	daemon.request(t, "key-info", &request)
	if request.KeyID != 9 {
		t.Errorf("requested key %d, want 9", request.KeyID)
	}
}

func TestAuthCommand(t *testing.T) {
	daemon := startFakeDaemon(t, map[string]any{
		"record-user-auth": authResult{AuthenticatedAt: 1000, Verified: true, AuthenticatorID: 4},
	})
	token := writeFile(t, "token", strings.Repeat("x", authtoken.Size))

	output, err := execute(t, "auth", "--socket", daemon.socketPath, "--token", token)
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	if !strings.Contains(output, "verified, authenticator 4") {
		t.Errorf("output = %q", output)
	}
	var request struct {
		Token []byte `cbor:"token"`
	}
	daemon.request(t, "record-user-auth", &request)
	if len(request.Token) != authtoken.Size {
		t.Errorf("sent %d token bytes, want %d", len(request.Token), authtoken.Size)
	}

	short := writeFile(t, "short", "xx")
	if _, err := execute(t, "auth", "--socket", daemon.socketPath, "--token", short); err == nil {
		t.Error("short token accepted")
	}
}

func TestDaemonUnreachable(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "absent.sock")
	if _, err := execute(t, "status", "--socket", socketPath); err == nil {
		t.Error("status against a missing socket succeeded")
	}
}
