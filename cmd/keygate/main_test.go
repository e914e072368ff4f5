// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/bureau-foundation/keygate/cmd/keygate/cli"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// execute runs the keygate command tree with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	err := newApp(&stdout).root().Execute(args)
	return stdout.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// TestCommandTreeDocumented walks the command tree and requires every
// command to carry a summary for its parent's help listing.
func TestCommandTreeDocumented(t *testing.T) {
	walkCommands(newApp(&bytes.Buffer{}).root(), nil, func(command *cli.Command, path []string) {
		if len(path) > 1 && command.Summary == "" {
			t.Errorf("%s: missing Summary", strings.Join(path, " "))
		}
		if command.Run == nil && len(command.Subcommands) == 0 {
			t.Errorf("%s: neither Run nor Subcommands", strings.Join(path, " "))
		}
	})
}

func walkCommands(command *cli.Command, path []string, visit func(*cli.Command, []string)) {
	current := append(path[:len(path):len(path)], command.Name)
	visit(command, current)
	for _, sub := range command.Subcommands {
		walkCommands(sub, current, visit)
	}
}

func TestVersionCommand(t *testing.T) {
	output, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(output, "keygate ") {
		t.Errorf("output = %q", output)
	}
}
