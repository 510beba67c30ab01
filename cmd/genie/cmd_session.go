// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/genie/cmd/genie/internal/identity"
	"github.com/AleutianAI/genie/pkg/ux"
)

func runSessionShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return showSession(ctx, cmd.OutOrStdout(), a.store)
}

func showSession(ctx context.Context, w io.Writer, kv identity.KV) error {
	id, ok, err := identity.Peek(ctx, kv)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(w, "no session yet; one is created on the first chat")
		return nil
	}
	fmt.Fprintln(w, id)
	return nil
}

func runSessionReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	yes, _ := cmd.Flags().GetBool("yes")

	if !yes {
		if !ux.IsInteractive() {
			return fmt.Errorf("refusing to reset without a terminal; pass --yes")
		}
		confirmed, err := confirmReset()
		if err != nil {
			return err
		}
		if !confirmed {
			ux.Info("Session kept.")
			return nil
		}
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := identity.Reset(ctx, a.store)
	if err != nil {
		return err
	}
	ux.Success("New session " + id)
	return nil
}

// confirmReset asks before the assistant forgets the user's profile.
func confirmReset() (bool, error) {
	var confirmed bool
	err := huh.NewConfirm().
		Title("Start over as a new user?").
		Description("Genie will forget your profile and conversation.").
		Affirmative("Reset").
		Negative("Keep").
		Value(&confirmed).
		Run()
	if err != nil {
		return false, err
	}
	return confirmed, nil
}

// openApp resolves config and opens the app for a non-chat command.
func openApp(ctx context.Context) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := resolveConfig(globalOpts)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, appOptions{Personality: globalOpts.Personality})
}
