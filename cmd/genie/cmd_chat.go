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
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/genie/cmd/genie/internal/statusapi"
	"github.com/AleutianAI/genie/pkg/telemetry"
	"github.com/AleutianAI/genie/pkg/ux"
)

func runChatCommand(cmd *cobra.Command, args []string) error {
	// Set up graceful shutdown with signal handling
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := resolveConfig(globalOpts)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, globalOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	return runChat(ctx, a, chatIO{
		Input:  NewInteractiveInputReader(50),
		Output: cmd.OutOrStdout(),
	})
}

// chatIO is where a chat reads from and writes to.
type chatIO struct {
	Input  InputReader
	Output io.Writer
}

// runChat wires the controller, the renderer and the optional status
// endpoint, then runs the chat loop until it ends. The status endpoint
// stops with the chat.
func runChat(ctx context.Context, a *app, cio chatIO) error {
	logger := a.logger.Slog()

	sessionID, err := a.sessionID(ctx)
	if err != nil {
		return err
	}

	level := ux.GetPersonality().Level
	renderer := ux.NewTerminalChatRenderer(cio.Output, level)
	defer renderer.Finalize()

	ctrl, err := a.newController(sessionID, newRenderPresenter(renderer))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	runner, err := NewChatRunner(ChatRunnerConfig{
		Session:     ctrl,
		Input:       cio.Input,
		Renderer:    renderer,
		Output:      cio.Output,
		Personality: level,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	chatCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(chatCtx)

	if addr := a.cfg.Status.Addr; addr != "" {
		srv := statusapi.NewServer(addr, statusapi.NewRouter(ctrl, telemetry.MetricsHandler(), version), logger)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if err := ctrl.Start(gctx); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}

	g.Go(func() error {
		defer cancel()
		return runner.Run(gctx)
	})

	err = g.Wait()
	logger.Info("chat ended", "session_id", sessionID)
	return quietCancel(err)
}

// quietCancel drops the cancellation error the chat loop returns when the
// user interrupts.
func quietCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
