// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/keygate/cmd/keygate/cli"
	"github.com/bureau-foundation/keygate/lib/config"
	"github.com/bureau-foundation/keygate/lib/process"
	"github.com/bureau-foundation/keygate/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	return newApp(os.Stdout).root().Execute(os.Args[1:])
}

// exitDenied is the exit status for a request the daemon refused.
const exitDenied = 2

// app carries what every command shares.
type app struct {
	stdout io.Writer
	ctx    context.Context
}

func newApp(stdout io.Writer) *app {
	return &app{stdout: stdout, ctx: context.Background()}
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:    "keygate",
		Summary: "Key-policy enforcement",
		Description: `Keygate decides whether a cryptographic operation on a key may proceed,
given the key's authorization policy, the caller, and the time.

Policy files are JSONC documents listing tags; see 'keygate policy --help'.
The daemon (keygate-service) keeps the per-key access ledger; commands that
ask for decisions talk to its socket.`,
		HelpOutput: os.Stderr,
		Examples: []cli.Example{
			{
				Description: "Validate a policy file",
				Command:     "keygate policy check signing.jsonc",
			},
			{
				Description: "Ask the daemon whether key 7 may sign",
				Command:     "keygate authorize --policy signing.jsonc --purpose SIGN --key 7",
			},
		},
		Subcommands: []*cli.Command{
			a.policyCommand(),
			a.authorizeCommand(),
			a.rescopeCommand(),
			a.statusCommand(),
			a.keyInfoCommand(),
			a.authCommand(),
			a.authkeyCommand(),
			a.versionCommand(),
		},
	}
}

func (a *app) versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			_, err := fmt.Fprintf(a.stdout, "keygate %s\n", version.Full())
			return err
		},
	}
}

// socketFlag adds --socket to flagSet, defaulting to the daemon's
// default socket path.
func socketFlag(flagSet *pflag.FlagSet, target *string) {
	flagSet.StringVar(target, "socket", config.Default().Service.SocketPath, "keygate-service socket path")
}

// noArgs rejects positional arguments for commands that take none.
func noArgs(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected argument %q", args[0])
	}
	return nil
}
