// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/keygate/cmd/keygate/cli"
	"github.com/bureau-foundation/keygate/lib/authtoken"
	"github.com/bureau-foundation/keygate/lib/sealed"
	"github.com/bureau-foundation/keygate/lib/secret"
)

// masterSecretSize is the length of a generated master secret.
const masterSecretSize = 32

func (a *app) authkeyCommand() *cli.Command {
	return &cli.Command{
		Name:    "authkey",
		Summary: "Manage the auth-token master secret",
		Description: `Create the key material keygate-service uses to verify auth tokens.

The daemon holds an age identity and a master secret sealed to that
identity. It derives the token MAC key from the master secret at startup.
Authenticators that mint tokens derive the same key from the same secret.`,
		Examples: []cli.Example{
			{
				Description: "Create an identity and a sealed master secret",
				Command: "keygate authkey keypair --identity /etc/keygate/identity\n" +
					"  keygate authkey seal --recipient age1... --output /etc/keygate/master.sealed",
			},
		},
		Subcommands: []*cli.Command{
			a.authkeyKeypairCommand(),
			a.authkeySealCommand(),
			a.authkeyMintTokenCommand(),
		},
	}
}

func (a *app) authkeyKeypairCommand() *cli.Command {
	var identityPath string
	return &cli.Command{
		Name:    "keypair",
		Summary: "Generate an age identity and print its recipient",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("keypair", pflag.ContinueOnError)
			flagSet.StringVar(&identityPath, "identity", "", "file to write the private identity to (required)")
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}
			if identityPath == "" {
				return errors.New("--identity is required")
			}
			keypair, err := sealed.GenerateKeypair()
			if err != nil {
				return err
			}
			defer keypair.Close()

			if err := writeNewFile(identityPath, []byte(keypair.Identity.String()+"\n"), 0o600); err != nil {
				return err
			}
			cli.NewCommandLogger().Info("wrote identity", "command", "authkey/keypair", "path", identityPath)
			_, err = fmt.Fprintln(a.stdout, keypair.Recipient)
			return err
		},
	}
}

func (a *app) authkeySealCommand() *cli.Command {
	var (
		recipients []string
		outputPath string
	)
	return &cli.Command{
		Name:    "seal",
		Summary: "Generate a master secret sealed to recipients",
		Description: `Generate a random master secret and seal it to every --recipient. The
secret itself is never written in the clear.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("seal", pflag.ContinueOnError)
			flagSet.StringArrayVar(&recipients, "recipient", nil, "age recipient (repeatable, at least one)")
			flagSet.StringVar(&outputPath, "output", "", "file to write the sealed secret to (default: stdout)")
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}
			for _, recipient := range recipients {
				if err := sealed.ParseRecipient(recipient); err != nil {
					return err
				}
			}

			master, err := secret.New(masterSecretSize)
			if err != nil {
				return err
			}
			defer master.Close()
			if _, err := rand.Read(master.Bytes()); err != nil {
				return fmt.Errorf("generating master secret: %w", err)
			}

			ciphertext, err := sealed.Encrypt(master.Bytes(), recipients)
			if err != nil {
				return err
			}
			if outputPath == "" {
				_, err = fmt.Fprintln(a.stdout, ciphertext)
				return err
			}
			if err := writeNewFile(outputPath, []byte(ciphertext+"\n"), 0o644); err != nil {
				return err
			}
			cli.NewCommandLogger().Info("wrote sealed master secret",
				"command", "authkey/seal",
				"path", outputPath,
				"recipients", len(recipients),
			)
			return nil
		},
	}
}

func (a *app) authkeyMintTokenCommand() *cli.Command {
	var (
		identityPath    string
		sealedPath      string
		outputPath      string
		challenge       uint64
		userID          uint64
		authenticatorID uint32
		timestamp       uint32
	)
	return &cli.Command{
		Name:    "mint-token",
		Summary: "Mint an auth token for testing an integration",
		Description: `Mint a 65-byte auth token signed with the key derived from the sealed
master secret. The daemon rejects a token whose timestamp is not newer than
the last one it accepted from the same authenticator.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("mint-token", pflag.ContinueOnError)
			flagSet.StringVar(&identityPath, "identity", "", "age identity file (required)")
			flagSet.StringVar(&sealedPath, "sealed", "", "sealed master secret file (required)")
			flagSet.StringVar(&outputPath, "output", "", "file to write the token to (required)")
			flagSet.Uint64Var(&challenge, "challenge", 0, "operation challenge")
			flagSet.Uint64Var(&userID, "user-id", 0, "authenticated user id")
			flagSet.Uint32Var(&authenticatorID, "authenticator-id", 0, "authenticator id")
			flagSet.Uint32Var(&timestamp, "timestamp", 0, "token timestamp (default: current Unix time)")
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}
			if identityPath == "" || sealedPath == "" || outputPath == "" {
				return errors.New("--identity, --sealed and --output are required")
			}
			if timestamp == 0 {
				timestamp = uint32(time.Now().Unix())
			}

			identity, err := secret.ReadFile(identityPath)
			if err != nil {
				return fmt.Errorf("reading identity: %w", err)
			}
			defer identity.Close()
			master, err := sealed.DecryptFile(sealedPath, identity)
			if err != nil {
				return err
			}
			defer master.Close()
			key, err := authtoken.DeriveKey(master.Bytes())
			if err != nil {
				return err
			}
			defer key.Close()

			token := authtoken.Mint(key.Bytes(), &authtoken.Token{
				Version:         authtoken.CurrentVersion,
				Challenge:       challenge,
				RootUserID:      userID,
				AuthenticatorID: authenticatorID,
				Timestamp:       timestamp,
			})
			if err := writeNewFile(outputPath, token, 0o600); err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "token for authenticator %d at %d written to %s\n",
				authenticatorID, timestamp, outputPath)
			return err
		},
	}
}

// writeNewFile writes data to a file that must not already exist.
func writeNewFile(path string, data []byte, mode os.FileMode) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}
