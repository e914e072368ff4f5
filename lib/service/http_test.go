// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/bureau-foundation/keygate/lib/testutil"
)

func TestHTTPServerServesAndStops(t *testing.T) {
	server := NewHTTPServer(HTTPServerConfig{
		Address: "127.0.0.1:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "ok")
		}),
		Logger: testLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	serveErrors := make(chan error, 1)
	go func() { serveErrors <- server.Serve(ctx) }()
	testutil.RequireClosed(t, server.Ready(), 5*time.Second, "http server ready")

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	response, err := client.Get("http://" + server.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(response.Body)
	response.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	cancel()
	if err := testutil.RequireReceive(t, serveErrors, 5*time.Second, "waiting for Serve"); err != nil {
		t.Errorf("Serve: %v", err)
	}
}

func TestHTTPServerBindError(t *testing.T) {
	server := NewHTTPServer(HTTPServerConfig{
		Address: "256.0.0.1:0",
		Handler: http.NotFoundHandler(),
		Logger:  testLogger(),
	})
	if err := server.Serve(context.Background()); err == nil {
		t.Error("Serve on an invalid address succeeded")
	}
}

func TestNewHTTPServerRequiresFields(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewHTTPServer without Address did not panic")
		}
	}()
	NewHTTPServer(HTTPServerConfig{Handler: http.NotFoundHandler(), Logger: testLogger()})
}
