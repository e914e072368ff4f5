// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/keygate/cmd/keygate/cli"
	"github.com/bureau-foundation/keygate/lib/authset"
	"github.com/bureau-foundation/keygate/lib/policydef"
)

func (a *app) policyCommand() *cli.Command {
	return &cli.Command{
		Name:    "policy",
		Summary: "Check and fingerprint policy files",
		Description: `Work with policy files offline.

A policy file is JSONC:

  {
    "description": "signing key for release artifacts",
    "tags": [
      {"tag": "PURPOSE", "value": "SIGN"},
      {"tag": "USER_ID", "value": 0},
      {"tag": "ORIGINATION_EXPIRE_DATETIME", "value": "2027-01-01T00:00:00Z"}
    ]
  }`,
		Subcommands: []*cli.Command{
			a.policyCheckCommand(),
			a.policyFingerprintCommand(),
		},
	}
}

type policyTag struct {
	Index    int    `json:"index"`
	Tag      string `json:"tag"`
	Category string `json:"category"`
	Value    string `json:"value"`
}

type policyCheckResult struct {
	Description string      `json:"description,omitempty"`
	Fingerprint string      `json:"fingerprint"`
	Tags        []policyTag `json:"tags"`
}

func (a *app) policyCheckCommand() *cli.Command {
	var outputJSON bool
	return &cli.Command{
		Name:    "check",
		Summary: "Parse and validate a policy file",
		Usage:   "keygate policy check <file> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("check", pflag.ContinueOnError)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			path, err := onePath(args)
			if err != nil {
				return err
			}
			definition, err := policydef.ReadFile(path)
			if err != nil {
				return err
			}
			set, err := definition.Set()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			result := policyCheckResult{
				Description: definition.Description,
				Fingerprint: authset.Fingerprint(set),
				Tags:        make([]policyTag, len(set)),
			}
			for index, tag := range set {
				result.Tags[index] = policyTag{
					Index:    index,
					Tag:      tag.Kind.String(),
					Category: tag.Kind.Category().String(),
					Value:    tag.String(),
				}
			}
			if outputJSON {
				return cli.WriteJSON(a.stdout, result)
			}

			if result.Description != "" {
				fmt.Fprintf(a.stdout, "%s\n\n", result.Description)
			}
			writer := tabwriter.NewWriter(a.stdout, 2, 0, 2, ' ', 0)
			for _, tag := range result.Tags {
				fmt.Fprintf(writer, "  %d\t%s\t%s\n", tag.Index, tag.Category, tag.Value)
			}
			writer.Flush()
			_, err = fmt.Fprintf(a.stdout, "\nfingerprint %s\n", result.Fingerprint)
			return err
		},
	}
}

func (a *app) policyFingerprintCommand() *cli.Command {
	return &cli.Command{
		Name:    "fingerprint",
		Summary: "Print the fingerprint of a policy file",
		Description: `Print the fingerprint keygate-service logs for decisions made against this
policy. Two files with the same tags in the same order share a fingerprint.`,
		Usage: "keygate policy fingerprint <file>",
		Run: func(args []string) error {
			path, err := onePath(args)
			if err != nil {
				return err
			}
			set, err := policydef.LoadSet(path)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, authset.Fingerprint(set))
			return err
		},
	}
}

var errPathRequired = errors.New("policy file path required")

func onePath(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", errPathRequired
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("expected one policy file, got %d arguments", len(args))
	}
}
