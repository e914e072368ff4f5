// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bureau-foundation/keygate/lib/enforcement"
)

func TestRecordDecision(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordDecision(OperationAuthorize, enforcement.OK)
	m.RecordDecision(OperationAuthorize, enforcement.OK)
	m.RecordDecision(OperationAuthorize, enforcement.TooManyOperations)
	m.RecordDecision(OperationRescope, enforcement.InvalidRescoping)

	tests := []struct {
		operation string
		code      enforcement.Code
		want      float64
	}{
		{OperationAuthorize, enforcement.OK, 2},
		{OperationAuthorize, enforcement.TooManyOperations, 1},
		{OperationRescope, enforcement.InvalidRescoping, 1},
		{OperationRescope, enforcement.OK, 0},
	}
	for _, test := range tests {
		got := testutil.ToFloat64(m.Decisions.WithLabelValues(test.operation, test.code.String()))
		if got != test.want {
			t.Errorf("decisions{%s,%s} = %v, want %v", test.operation, test.code, got, test.want)
		}
	}
}

func TestRecordUserAuthAndGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordUserAuth(AuthAccepted)
	m.RecordUserAuth(AuthRejected)
	m.RecordUserAuth(AuthRejected)
	m.SetLedgerKeys(12)

	if got := testutil.ToFloat64(m.UserAuthEvents.WithLabelValues(AuthRejected)); got != 2 {
		t.Errorf("rejected = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LedgerKeys); got != 12 {
		t.Errorf("ledger keys = %v, want 12", got)
	}
}

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	m.RecordDecision(OperationAuthorize, enforcement.OK)
	m.RecordUserAuth(AuthAccepted)
	m.SetLedgerKeys(1)
}

func TestRouter(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordDecision(OperationAuthorize, enforcement.KeyExpired)

	var unhealthy atomic.Bool
	server := httptest.NewServer(m.Router(func() error {
		if unhealthy.Load() {
			return errors.New("socket server stopped")
		}
		return nil
	}))
	defer server.Close()

	get := func(path string) (int, string) {
		t.Helper()
		response, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer response.Body.Close()
		body, _ := io.ReadAll(response.Body)
		return response.StatusCode, string(body)
	}

	status, body := get("/metrics")
	if status != http.StatusOK {
		t.Errorf("/metrics status = %d", status)
	}
	if !strings.Contains(body, `keygate_decisions_total{code="KEY_EXPIRED",operation="authorize"} 1`) {
		t.Errorf("/metrics missing decision counter:\n%s", body)
	}

	if status, body := get("/healthz"); status != http.StatusOK || body != "ok\n" {
		t.Errorf("/healthz = %d %q, want 200 ok", status, body)
	}

	unhealthy.Store(true)
	if status, body := get("/healthz"); status != http.StatusServiceUnavailable || !strings.Contains(body, "socket server stopped") {
		t.Errorf("/healthz unhealthy = %d %q", status, body)
	}

	if status, _ := get("/nope"); status != http.StatusNotFound {
		t.Errorf("/nope status = %d, want 404", status)
	}
}

func TestNewRegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	New(registry)
	// A second registration of the same names must fail.
	defer func() {
		if recover() == nil {
			t.Error("registering collectors twice did not panic")
		}
	}()
	New(registry)
}
