// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/bureau-foundation/keygate/lib/authtoken"
	"github.com/bureau-foundation/keygate/lib/clock"
	"github.com/bureau-foundation/keygate/lib/config"
	"github.com/bureau-foundation/keygate/lib/enforcement"
	"github.com/bureau-foundation/keygate/lib/metrics"
	"github.com/bureau-foundation/keygate/lib/process"
	"github.com/bureau-foundation/keygate/lib/sealed"
	"github.com/bureau-foundation/keygate/lib/secret"
	"github.com/bureau-foundation/keygate/lib/service"
	"github.com/bureau-foundation/keygate/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flags := pflag.NewFlagSet("keygate-service", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to keygate.yaml (default: $KEYGATE_CONFIG)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("keygate-service %s\n", version.Full())
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	logger := newLogger(os.Stderr, cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var verifier *authtoken.Verifier
	if cfg.AuthToken.Enabled() {
		key, err := loadAuthTokenKey(cfg.AuthToken)
		if err != nil {
			return fmt.Errorf("loading auth-token key: %w", err)
		}
		defer key.Close()
		verifier = authtoken.NewVerifier(key)
		logger.Info("auth-token verification enabled",
			"sealed_master_file", cfg.AuthToken.SealedMasterFile,
		)
	} else {
		logger.Warn("auth-token verification disabled; record-user-auth trusts allowed peers")
	}

	registry := prometheus.NewRegistry()
	serviceClock := clock.Real()
	ks := &KeygateService{
		enforcer:  enforcement.New(enforcement.WithClock(serviceClock)),
		verifier:  verifier,
		metrics:   metrics.New(registry),
		clock:     serviceClock,
		startedAt: serviceClock.Now(),
		logger:    logger,
	}

	socketServer := service.NewSocketServer(cfg.Service.SocketPath, logger, &service.AuthConfig{
		AllowedUIDs: cfg.Service.AllowedUIDs,
	})
	ks.registerActions(socketServer)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return socketServer.Serve(groupCtx)
	})
	group.Go(func() error {
		return ks.reportLedger(groupCtx, cfg.Metrics.ReportInterval)
	})
	if cfg.Metrics.Listen != "" {
		httpServer := service.NewHTTPServer(service.HTTPServerConfig{
			Address: cfg.Metrics.Listen,
			Handler: ks.metrics.Router(socketHealth(cfg.Service.SocketPath)),
			Logger:  logger,
		})
		group.Go(func() error {
			return httpServer.Serve(groupCtx)
		})
	}

	logger.Info("keygate service running",
		"version", version.Info(),
		"environment", cfg.Environment,
		"socket", cfg.Service.SocketPath,
		"allowed_uids", cfg.Service.AllowedUIDs,
		"metrics", cfg.Metrics.Listen,
	)

	err = group.Wait()
	logger.Info("keygate service stopped")
	return err
}

// newLogger builds the daemon logger from the logging section. "auto"
// picks the text handler when w is a terminal.
func newLogger(w io.Writer, logging config.LoggingConfig) *slog.Logger {
	options := &slog.HandlerOptions{Level: logging.SlogLevel()}
	format := logging.Format
	if format == "auto" {
		format = "json"
		if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
			format = "text"
		}
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

// loadAuthTokenKey opens the sealed master secret with the configured
// identity and derives the token MAC key from it. Only the derived key
// outlives this function.
func loadAuthTokenKey(authToken config.AuthTokenConfig) (*secret.Buffer, error) {
	identity, err := secret.ReadFile(authToken.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("reading identity: %w", err)
	}
	defer identity.Close()

	master, err := sealed.DecryptFile(authToken.SealedMasterFile, identity)
	if err != nil {
		return nil, err
	}
	defer master.Close()

	return authtoken.DeriveKey(master.Bytes())
}

// socketHealth reports unhealthy while the socket file is missing,
// which covers both startup and a socket removed from under the daemon.
func socketHealth(socketPath string) func() error {
	return func() error {
		info, err := os.Stat(socketPath)
		if err != nil {
			return fmt.Errorf("socket %s: %w", socketPath, err)
		}
		if info.Mode().Type() != os.ModeSocket {
			return fmt.Errorf("%s is not a socket", socketPath)
		}
		return nil
	}
}

// uptimeSeconds is split out so status and tests agree on rounding.
func uptimeSeconds(now, startedAt time.Time) float64 {
	return now.Sub(startedAt).Truncate(time.Second).Seconds()
}
