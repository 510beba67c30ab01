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
	"fmt"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	globalOpts appOptions

	rootCmd = &cobra.Command{
		Use:   "genie",
		Short: "Chat with the Genie study advisor from your terminal",
		Long: `Genie keeps a live connection to the study advisor, streams its answers
as they are written, and builds up your study profile as you talk.`,
		SilenceUsage: true,
	}

	// --- Chat ---
	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE:  runChatCommand, // Defined in cmd_chat.go
	}

	// --- Sessions ---
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Manage the local session identity",
	}
	sessionShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the session id the assistant knows you by",
		Args:  cobra.NoArgs,
		RunE:  runSessionShow, // Defined in cmd_session.go
	}
	sessionResetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Forget the current session and start as a new user",
		Args:  cobra.NoArgs,
		RunE:  runSessionReset, // Defined in cmd_session.go
	}

	// --- Utilities ---
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the genie version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "genie %s\n", version)
		},
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globalOpts.ConfigPath, "config", "", "Config file (default ~/.genie/genie.yaml)")
	pf.StringVar(&globalOpts.BaseURL, "base-url", "", "Assistant base URL, e.g. http://127.0.0.1:4110/chat-bot")
	pf.StringVar(&globalOpts.Personality, "personality", "",
		"Output style: full, standard, minimal, machine")
	pf.StringVar(&globalOpts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&globalOpts.Transport, "transport", "", "Push channel: sse or websocket")
	chatCmd.Flags().StringVar(&globalOpts.StatusAddr, "status-addr", "",
		"Serve /healthz, /profile and /metrics on this address, e.g. 127.0.0.1:9411")
	chatCmd.Flags().BoolVar(&globalOpts.Ephemeral, "ephemeral", false,
		"Keep no local state: a fresh session id that is forgotten on exit")

	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionResetCmd)
	sessionResetCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(versionCmd)
}
