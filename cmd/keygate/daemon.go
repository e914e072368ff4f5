// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/keygate/cmd/keygate/cli"
	"github.com/bureau-foundation/keygate/lib/authset"
	"github.com/bureau-foundation/keygate/lib/authtoken"
	"github.com/bureau-foundation/keygate/lib/policydef"
	"github.com/bureau-foundation/keygate/lib/process"
	"github.com/bureau-foundation/keygate/lib/service"
)

// decision mirrors keygate-service's authorization response.
type decision struct {
	DecisionID    string `cbor:"decision_id" json:"decision_id"`
	Code          int32  `cbor:"code" json:"code"`
	CodeName      string `cbor:"code_name" json:"code_name"`
	Tag           string `cbor:"tag,omitempty" json:"tag,omitempty"`
	ConflictsWith string `cbor:"conflicts_with,omitempty" json:"conflicts_with,omitempty"`
	Message       string `cbor:"message,omitempty" json:"message,omitempty"`
}

// report prints the decision and turns a denial into an exit status
// of exitDenied.
func (a *app) report(result decision, outputJSON bool) error {
	if outputJSON {
		if err := cli.WriteJSON(a.stdout, result); err != nil {
			return err
		}
	} else if result.Code == 0 {
		fmt.Fprintf(a.stdout, "OK  decision %s\n", result.DecisionID)
	}
	if result.Code == 0 {
		return nil
	}
	return &process.ExitError{
		Code: exitDenied,
		Err:  fmt.Errorf("denied: %s (decision %s)", result.Message, result.DecisionID),
	}
}

func (a *app) authorizeCommand() *cli.Command {
	var (
		socketPath    string
		policyPath    string
		purposeName   string
		keyID         uint64
		callerUID     uint32
		applicationID string
		outputJSON    bool
	)
	return &cli.Command{
		Name:    "authorize",
		Summary: "Ask the daemon to authorize an operation",
		Description: `Ask keygate-service whether an operation with the given purpose may use
the key under the policy in --policy. A permitted operation is recorded in
the daemon's access ledger. Exits 2 when the daemon denies the operation.`,
		Usage: "keygate authorize --policy <file> --purpose <purpose> --key <id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Sign on behalf of uid 1000 with an application id",
				Command:     "keygate authorize --policy signing.jsonc --purpose SIGN --key 7 --uid 1000 --app-id releaser",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("authorize", pflag.ContinueOnError)
			socketFlag(flagSet, &socketPath)
			flagSet.StringVar(&policyPath, "policy", "", "policy file (required)")
			flagSet.StringVar(&purposeName, "purpose", "", "ENCRYPT, DECRYPT, SIGN or VERIFY (required)")
			flagSet.Uint64Var(&keyID, "key", 0, "key identifier")
			flagSet.Uint32Var(&callerUID, "uid", 0, "caller UID (default: this process's UID)")
			flagSet.StringVar(&applicationID, "app-id", "", "caller application id")
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}
			if policyPath == "" || purposeName == "" {
				return errors.New("--policy and --purpose are required")
			}
			purpose, err := authset.ParsePurpose(purposeName)
			if err != nil {
				return err
			}
			policy, err := policydef.LoadSet(policyPath)
			if err != nil {
				return err
			}

			fields := map[string]any{
				"purpose": uint32(purpose),
				"key_id":  keyID,
				"policy":  policy,
			}
			if callerUID != 0 {
				fields["caller_uid"] = callerUID
			}
			if applicationID != "" {
				fields["application_id"] = []byte(applicationID)
			}

			var result decision
			if err := service.NewServiceClient(socketPath).Call(a.ctx, "authorize-operation", fields, &result); err != nil {
				return err
			}
			return a.report(result, outputJSON)
		},
	}
}

func (a *app) rescopeCommand() *cli.Command {
	var (
		socketPath string
		oldPath    string
		newPath    string
		keyID      uint64
		callerUID  uint32
		outputJSON bool
	)
	return &cli.Command{
		Name:    "rescope",
		Summary: "Ask the daemon to authorize a policy change",
		Description: `Ask keygate-service whether the key's policy may change from --old to
--new. Every added, removed or modified tag must be granted by a
RESCOPING_ADD or RESCOPING_DEL tag in the old policy. Exits 2 when the
daemon denies the change.`,
		Usage: "keygate rescope --old <file> --new <file> --key <id> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("rescope", pflag.ContinueOnError)
			socketFlag(flagSet, &socketPath)
			flagSet.StringVar(&oldPath, "old", "", "current policy file (required)")
			flagSet.StringVar(&newPath, "new", "", "proposed policy file (required)")
			flagSet.Uint64Var(&keyID, "key", 0, "key identifier")
			flagSet.Uint32Var(&callerUID, "uid", 0, "caller UID (default: this process's UID)")
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}
			if oldPath == "" || newPath == "" {
				return errors.New("--old and --new are required")
			}
			oldPolicy, err := policydef.LoadSet(oldPath)
			if err != nil {
				return err
			}
			newPolicy, err := policydef.LoadSet(newPath)
			if err != nil {
				return err
			}

			fields := map[string]any{
				"key_id":     keyID,
				"old_policy": oldPolicy,
				"new_policy": newPolicy,
			}
			if callerUID != 0 {
				fields["caller_uid"] = callerUID
			}

			var result decision
			if err := service.NewServiceClient(socketPath).Call(a.ctx, "authorize-rescope", fields, &result); err != nil {
				return err
			}
			return a.report(result, outputJSON)
		},
	}
}

type statusResult struct {
	UptimeSeconds     float64 `cbor:"uptime_seconds" json:"uptime_seconds"`
	Version           string  `cbor:"version" json:"version"`
	TrackedKeys       int     `cbor:"tracked_keys" json:"tracked_keys"`
	LastUserAuth      int64   `cbor:"last_user_auth" json:"last_user_auth"`
	TokenVerification bool    `cbor:"token_verification" json:"token_verification"`
}

func (a *app) statusCommand() *cli.Command {
	var (
		socketPath string
		outputJSON bool
	)
	return &cli.Command{
		Name:    "status",
		Summary: "Show daemon status",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			socketFlag(flagSet, &socketPath)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}
			var status statusResult
			if err := service.NewServiceClient(socketPath).Call(a.ctx, "status", nil, &status); err != nil {
				return err
			}
			if outputJSON {
				return cli.WriteJSON(a.stdout, status)
			}
			verification := "disabled"
			if status.TokenVerification {
				verification = "enabled"
			}
			fmt.Fprintf(a.stdout, "version             %s\n", status.Version)
			fmt.Fprintf(a.stdout, "uptime              %s\n", time.Duration(status.UptimeSeconds)*time.Second)
			fmt.Fprintf(a.stdout, "tracked keys        %d\n", status.TrackedKeys)
			fmt.Fprintf(a.stdout, "last user auth      %s\n", formatUnix(status.LastUserAuth))
			_, err := fmt.Fprintf(a.stdout, "token verification  %s\n", verification)
			return err
		},
	}
}

type keyInfoResult struct {
	KeyID      uint64 `cbor:"key_id" json:"key_id"`
	LastAccess int64  `cbor:"last_access" json:"last_access"`
}

func (a *app) keyInfoCommand() *cli.Command {
	var (
		socketPath string
		keyID      uint64
		outputJSON bool
	)
	return &cli.Command{
		Name:    "key-info",
		Summary: "Show when a key was last used",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("key-info", pflag.ContinueOnError)
			socketFlag(flagSet, &socketPath)
			flagSet.Uint64Var(&keyID, "key", 0, "key identifier")
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}
			var info keyInfoResult
			if err := service.NewServiceClient(socketPath).Call(a.ctx, "key-info", map[string]any{"key_id": keyID}, &info); err != nil {
				return err
			}
			if outputJSON {
				return cli.WriteJSON(a.stdout, info)
			}
			_, err := fmt.Fprintf(a.stdout, "key %d last access %s\n", info.KeyID, formatUnix(info.LastAccess))
			return err
		},
	}
}

type authResult struct {
	AuthenticatedAt int64  `cbor:"authenticated_at" json:"authenticated_at"`
	Verified        bool   `cbor:"verified" json:"verified"`
	AuthenticatorID uint32 `cbor:"authenticator_id,omitempty" json:"authenticator_id,omitempty"`
}

func (a *app) authCommand() *cli.Command {
	var (
		socketPath string
		tokenPath  string
	)
	return &cli.Command{
		Name:    "auth",
		Summary: "Report a user authentication to the daemon",
		Description: `Tell keygate-service the user has just authenticated. When the daemon
verifies auth tokens, --token names a 65-byte token file (see 'keygate
authkey mint-token'); otherwise omit it.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("auth", pflag.ContinueOnError)
			socketFlag(flagSet, &socketPath)
			flagSet.StringVar(&tokenPath, "token", "", "auth token file")
			return flagSet
		},
		Run: func(args []string) error {
			if err := noArgs(args); err != nil {
				return err
			}
			var fields map[string]any
			if tokenPath != "" {
				token, err := os.ReadFile(tokenPath)
				if err != nil {
					return fmt.Errorf("reading token: %w", err)
				}
				if len(token) != authtoken.Size {
					return fmt.Errorf("%s: %w", tokenPath, authtoken.ErrWrongSize)
				}
				fields = map[string]any{"token": token}
			}
			var result authResult
			if err := service.NewServiceClient(socketPath).Call(a.ctx, "record-user-auth", fields, &result); err != nil {
				return err
			}
			state := "unverified"
			if result.Verified {
				state = fmt.Sprintf("verified, authenticator %d", result.AuthenticatorID)
			}
			_, err := fmt.Fprintf(a.stdout, "authentication recorded at %s (%s)\n", formatUnix(result.AuthenticatedAt), state)
			return err
		},
	}
}

func formatUnix(seconds int64) string {
	if seconds == 0 {
		return "never"
	}
	return time.Unix(seconds, 0).UTC().Format(time.RFC3339)
}
