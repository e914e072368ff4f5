// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"policy", "policy", 0},
		{"polcy", "policy", 1},
		{"kitten", "sitting", 3},
		{"rescope", "scope", 2},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
		if got := levenshtein(test.b, test.a); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.b, test.a, got, test.want)
		}
	}
}

func TestSuggestFlag(t *testing.T) {
	flagSet := pflag.NewFlagSet("authorize", pflag.ContinueOnError)
	flagSet.String("policy", "", "")
	flagSet.StringP("key", "k", "", "")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--polcy=x.jsonc"}, "--policy"},
		{[]string{"--policy", "x", "--kye", "7"}, "--key"},
		{[]string{"--policy", "x"}, ""},
		{[]string{"--", "--polcy"}, ""},
		{[]string{"--completely-different"}, ""},
	}
	for _, test := range tests {
		if got := suggestFlag(test.args, flagSet); got != test.want {
			t.Errorf("suggestFlag(%v) = %q, want %q", test.args, got, test.want)
		}
	}
}
