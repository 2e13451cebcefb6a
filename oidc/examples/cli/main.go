// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-oidcclient/oidc"
	"github.com/hashicorp/go-oidcclient/oidc/browser"
	"github.com/hashicorp/go-oidcclient/oidc/vault"
	"github.com/redis/go-redis/v9"
)

func main() {
	configFile := flag.String("config", "", "optional yaml settings file")
	logout := flag.Bool("logout", false, "end the stored session")
	forceLogin := flag.Bool("login", false, "login even if a valid session is stored")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := hclog.Info
	if *verbose {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "oidc-cli",
		Level:  level,
		Output: os.Stderr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, logger, *configFile, *logout, *forceLogin); err != nil {
		logger.Error("failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger hclog.Logger, configFile string, logout, forceLogin bool) error {
	s, err := loadSettings(configFile)
	if err != nil {
		return err
	}

	endpoints, err := oidc.Discover(ctx, s.Authority, oidc.WithLogger(logger.Named("discovery")))
	if err != nil {
		return err
	}
	cfg, err := oidc.NewConfig(s.ClientID, oidc.ClientSecret(s.ClientSecret), s.Scope, s.redirectURL(), s.configOptions()...)
	if err != nil {
		return err
	}
	client, err := oidc.NewClient(cfg, endpoints, browser.NewLoopback(browser.WithLogger(logger.Named("browser"))), oidc.WithLogger(logger.Named("client")))
	if err != nil {
		return err
	}

	var v oidc.Vault
	if s.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		defer rc.Close()
		if v, err = vault.NewRedis(rc); err != nil {
			return err
		}
	} else {
		v = vault.NewKeyring()
	}
	mgr, err := oidc.NewSessionManager(client,
		oidc.WithVault(v),
		oidc.WithResourceName(s.Resource),
		oidc.WithLogger(logger.Named("session")),
	)
	if err != nil {
		return err
	}

	_, restoreErr := mgr.Restore(ctx)
	switch {
	case restoreErr != nil && !errors.Is(restoreErr, oidc.ErrNotFound):
		logger.Warn("unable to restore session", "error", restoreErr)
	case restoreErr == nil:
		logger.Debug("restored session")
	}

	if logout {
		mgr.Logout(ctx, false)
		fmt.Fprintln(os.Stderr, "logged out")
		return nil
	}

	if forceLogin || !mgr.IsAccessTokenValid() {
		// a stored provider session may allow a silent login
		r := mgr.Login(ctx, restoreErr == nil)
		if !r.Success {
			return fmt.Errorf("login failed: %s", r.Error)
		}
		if err := mgr.Store(ctx); err != nil {
			logger.Warn("unable to store session", "error", err)
		}
	}

	when, _ := mgr.AuthenticationTime()
	out := struct {
		Claims        []oidc.Claim `json:"claims"`
		Authenticated string       `json:"authenticated"`
		Expires       string       `json:"access_token_expires"`
	}{
		Claims:        mgr.Principal().Claims,
		Authenticated: when.String(),
		Expires:       mgr.Current().AccessTokenExpiration.String(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(&out)
}
