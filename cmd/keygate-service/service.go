// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/keygate/lib/authset"
	"github.com/bureau-foundation/keygate/lib/authtoken"
	"github.com/bureau-foundation/keygate/lib/clock"
	"github.com/bureau-foundation/keygate/lib/enforcement"
	"github.com/bureau-foundation/keygate/lib/metrics"
)

// KeygateService binds the enforcer to the socket actions.
type KeygateService struct {
	enforcer *enforcement.Enforcer

	// verifier checks record-user-auth tokens. Nil when no auth-token
	// key is configured.
	verifier *authtoken.Verifier

	metrics   *metrics.Metrics
	clock     clock.Clock
	startedAt time.Time
	logger    *slog.Logger
}

// decision is the response to authorize-operation and
// authorize-rescope.
type decision struct {
	DecisionID string `cbor:"decision_id"`

	// Code is the enforcement code, 0 when allowed.
	Code int32 `cbor:"code"`

	// CodeName is the symbolic name of Code, e.g. "KEY_EXPIRED".
	CodeName string `cbor:"code_name"`

	// Tag names the tag kind that caused a denial.
	Tag string `cbor:"tag,omitempty"`

	// ConflictsWith names the second tag of a contradictory pair.
	ConflictsWith string `cbor:"conflicts_with,omitempty"`

	// Message is the human-readable denial.
	Message string `cbor:"message,omitempty"`
}

// Allowed reports whether the decision permits the request.
func (d decision) Allowed() bool {
	return enforcement.Code(d.Code) == enforcement.OK
}

// decide turns an enforcer result into a decision, logs it and counts
// it. attributes are appended to the log line.
func (ks *KeygateService) decide(operation string, policy authset.Set, result error, attributes ...any) decision {
	code := enforcement.CodeOf(result)
	d := decision{
		DecisionID: uuid.NewString(),
		Code:       int32(code),
		CodeName:   code.String(),
	}
	if result != nil {
		d.Message = result.Error()
		var denial *enforcement.Denial
		if errors.As(result, &denial) {
			d.Tag = denial.Kind.String()
			if denial.ConflictsWith != 0 {
				d.ConflictsWith = denial.ConflictsWith.String()
			}
		}
	}

	ks.metrics.RecordDecision(operation, code)
	ks.logger.Info("authorization decision",
		append([]any{
			"decision_id", d.DecisionID,
			"operation", operation,
			"policy", authset.Fingerprint(policy),
			"code", d.CodeName,
			"tag", d.Tag,
		}, attributes...)...,
	)
	return d
}
