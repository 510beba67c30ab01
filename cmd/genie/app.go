// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/genie/cmd/genie/config"
	"github.com/AleutianAI/genie/cmd/genie/internal/identity"
	"github.com/AleutianAI/genie/cmd/genie/internal/session"
	"github.com/AleutianAI/genie/cmd/genie/internal/store"
	"github.com/AleutianAI/genie/cmd/genie/internal/submit"
	"github.com/AleutianAI/genie/cmd/genie/internal/supervisor"
	"github.com/AleutianAI/genie/pkg/logging"
	"github.com/AleutianAI/genie/pkg/telemetry"
	"github.com/AleutianAI/genie/pkg/ux"
)

// =============================================================================
// Options
// =============================================================================

// appOptions are the command-line overrides shared by every command. Empty
// values leave the config file's setting alone.
type appOptions struct {
	ConfigPath  string
	BaseURL     string
	Transport   string
	StatusAddr  string
	Personality string
	LogLevel    string
	Ephemeral   bool
}

// resolveConfig loads the config file and applies flag overrides on top of
// it. Flags beat environment variables, which beat the file.
func resolveConfig(opts appOptions) (config.GenieConfig, error) {
	var cfg config.GenieConfig
	if opts.ConfigPath != "" {
		loaded, err := config.LoadFrom(opts.ConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	} else {
		if err := config.Load(); err != nil {
			return cfg, err
		}
		cfg = config.Global
	}

	if opts.BaseURL != "" {
		cfg.Server.BaseURL = opts.BaseURL
	}
	if opts.Transport != "" {
		cfg.Server.Transport = opts.Transport
	}
	if opts.StatusAddr != "" {
		cfg.Status.Addr = opts.StatusAddr
	}
	if opts.Personality != "" {
		cfg.UI.Personality = opts.Personality
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// =============================================================================
// App
// =============================================================================

// app holds the process-wide resources a command needs: config, logger,
// telemetry and the local state store.
type app struct {
	cfg               config.GenieConfig
	logger            *logging.Logger
	store             *store.Store
	metrics           *telemetry.ClientMetrics
	telemetryShutdown func(context.Context) error
}

// newApp initializes logging, telemetry and the state store. The caller
// must Close the returned app.
func newApp(ctx context.Context, cfg config.GenieConfig, opts appOptions) (*app, error) {
	if opts.Personality != "" {
		ux.SetPersonalityLevel(ux.ParsePersonalityLevel(opts.Personality))
	} else {
		ux.InitPersonality(cfg.UI.Personality)
	}

	// Interactive output owns the terminal; logs go to the file only.
	quiet := ux.GetPersonality().Level != ux.PersonalityMachine
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "genie",
		JSON:    cfg.Logging.JSON,
		Quiet:   quiet,
	})

	a := &app{cfg: cfg, logger: logger}

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.TraceExporter = cfg.Telemetry.TraceExporter
	tcfg.MetricExporter = cfg.Telemetry.MetricExporter
	tcfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	tcfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
	} else {
		a.telemetryShutdown = shutdown
	}
	if metrics, err := telemetry.NewGlobalClientMetrics(); err != nil {
		logger.Warn("client metrics disabled", "error", err)
	} else {
		a.metrics = metrics
	}

	storeCfg := store.DefaultConfig(cfg.State.Dir)
	if opts.Ephemeral {
		storeCfg = store.InMemoryConfig()
	}
	storeCfg.Logger = logger.Slog()
	st, err := store.Open(storeCfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.store = st

	return a, nil
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close state store: %w", err))
		}
		a.store = nil
	}
	if a.telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.telemetryShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
		cancel()
		a.telemetryShutdown = nil
	}
	if err := a.logger.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// sessionID returns the persisted session identity, creating it on first
// use.
func (a *app) sessionID(ctx context.Context) (string, error) {
	return identity.Load(ctx, a.store)
}

// newDialer picks the push-channel transport.
func (a *app) newDialer() (supervisor.Dialer, error) {
	switch a.cfg.Server.Transport {
	case config.TransportSSE, "":
		return &supervisor.SSEDialer{BaseURL: a.cfg.Server.BaseURL, Client: &http.Client{}}, nil
	case config.TransportWebSocket:
		return &supervisor.WebSocketDialer{
			BaseURL: a.cfg.Server.BaseURL,
			Dialer:  &websocket.Dialer{HandshakeTimeout: a.cfg.Server.RequestTimeout},
		}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", a.cfg.Server.Transport)
	}
}

func (a *app) newSubmitter() (*submit.Client, error) {
	return submit.New(submit.Config{
		BaseURL: a.cfg.Server.BaseURL,
		Client:  &http.Client{Timeout: a.cfg.Server.RequestTimeout},
		Metadata: submit.Metadata{
			Platform: a.cfg.Client.Platform,
			Tier:     a.cfg.Client.Tier,
		},
		RatePerSecond: a.cfg.Client.SubmitRate,
		Burst:         a.cfg.Client.SubmitBurst,
		Logger:        a.logger.Slog(),
		Metrics:       a.metrics,
	})
}

// newController wires a session controller for sessionID that presents to
// presenter.
func (a *app) newController(sessionID string, presenter session.Presenter) (*session.Controller, error) {
	dialer, err := a.newDialer()
	if err != nil {
		return nil, err
	}
	submitter, err := a.newSubmitter()
	if err != nil {
		return nil, err
	}
	return session.New(
		session.Config{
			SessionID:      sessionID,
			ReconnectDelay: a.cfg.Server.ReconnectDelay,
		},
		session.Deps{
			Dialer:    dialer,
			Submitter: submitter,
			Presenter: presenter,
			Logger:    a.logger.Slog(),
			Metrics:   a.metrics,
		},
	)
}
