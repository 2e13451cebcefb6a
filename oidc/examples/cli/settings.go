// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-oidcclient/oidc"
	"gopkg.in/yaml.v3"
)

// Environment variables which override the settings file.
const (
	envClientID     = "OIDC_CLIENT_ID"
	envClientSecret = "OIDC_CLIENT_SECRET"
	envAuthority    = "OIDC_AUTHORITY"
	envPort         = "OIDC_PORT"
)

// settings configure the example relying party.
type settings struct {
	Authority    string        `yaml:"authority"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	Scope        string        `yaml:"scope"`
	Port         string        `yaml:"port"`
	Flow         string        `yaml:"flow"`
	ResponseMode string        `yaml:"response_mode"`
	PKCE         *bool         `yaml:"pkce"`
	LoadProfile  *bool         `yaml:"load_profile"`
	Timeout      time.Duration `yaml:"timeout"`
	Resource     string        `yaml:"resource"`
	RedisAddr    string        `yaml:"redis_addr"`
}

func defaultSettings() *settings {
	return &settings{
		Scope:        "openid profile",
		Port:         "8888",
		Flow:         string(oidc.HybridFlow),
		ResponseMode: string(oidc.FormPostResponseMode),
		Timeout:      2 * time.Minute,
		Resource:     oidc.DefaultResourceName,
	}
}

// loadSettings reads the optional yaml file, then applies the environment.
func loadSettings(path string) (*settings, error) {
	const op = "loadSettings"
	s := defaultSettings()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := yaml.Unmarshal(b, s); err != nil {
			return nil, fmt.Errorf("%s: unable to parse %s: %w", op, path, err)
		}
	}
	for env, field := range map[string]*string{
		envClientID:     &s.ClientID,
		envClientSecret: &s.ClientSecret,
		envAuthority:    &s.Authority,
		envPort:         &s.Port,
	} {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
	switch {
	case s.Authority == "":
		return nil, fmt.Errorf("%s: authority is empty (set %s)", op, envAuthority)
	case s.ClientID == "":
		return nil, fmt.Errorf("%s: client id is empty (set %s)", op, envClientID)
	}
	return s, nil
}

func (s *settings) redirectURL() string {
	return fmt.Sprintf("http://127.0.0.1:%s/callback", s.Port)
}

func (s *settings) configOptions() []oidc.Option {
	opts := []oidc.Option{
		oidc.WithFlow(oidc.Flow(s.Flow)),
		oidc.WithResponseMode(oidc.ResponseMode(s.ResponseMode)),
		oidc.WithInvokeTimeout(s.Timeout),
	}
	if s.PKCE != nil {
		opts = append(opts, oidc.WithPKCE(*s.PKCE))
	}
	if s.LoadProfile != nil {
		opts = append(opts, oidc.WithLoadProfile(*s.LoadProfile))
	}
	if s.ClientSecret == "" {
		// public clients must use PKCE
		opts = append(opts, oidc.WithPublicClient(), oidc.WithPKCE(true))
	}
	return opts
}
