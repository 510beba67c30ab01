// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"time"
)

// CurrentConfigVersion is written into new config files.
const CurrentConfigVersion = "1"

// Transports accepted by server.transport.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
)

type GenieConfig struct {
	// Meta: file format version
	Meta MetaConfig `yaml:"meta"`

	// Server: where the assistant lives and how to reach its push stream
	Server ServerConfig `yaml:"server"`

	// Client: metadata and throttling for outbound messages
	Client ClientConfig `yaml:"client"`

	// State: local persisted state (session identity)
	State StateConfig `yaml:"state"`

	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Status: optional local HTTP status endpoint, off when addr is empty
	Status StatusConfig `yaml:"status"`

	UI UIConfig `yaml:"ui"`
}

type MetaConfig struct {
	Version string `yaml:"version"`
}

type ServerConfig struct {
	BaseURL        string        `yaml:"base_url" validate:"required,url"`         // e.g. http://127.0.0.1:4110/chat-bot
	Transport      string        `yaml:"transport" validate:"oneof=sse websocket"` // push channel kind
	ReconnectDelay time.Duration `yaml:"reconnect_delay" validate:"gt=0"`          // fixed, no backoff
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"gt=0"`          // outbound POST timeout
}

type ClientConfig struct {
	Platform    string  `yaml:"platform" validate:"required"`
	Tier        string  `yaml:"tier" validate:"required"`
	SubmitRate  float64 `yaml:"submit_rate" validate:"gte=0"` // messages per second, 0 = unlimited
	SubmitBurst int     `yaml:"submit_burst" validate:"gte=0"`
}

type StateConfig struct {
	Dir string `yaml:"dir" validate:"required"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" validate:"omitempty,oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"omitempty,oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
}

type StatusConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

type UIConfig struct {
	// Personality: full, standard, minimal, machine
	Personality string `yaml:"personality"`
}

// Dir is the genie home directory, ~/.genie.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".genie"
	}
	return filepath.Join(home, ".genie")
}

func DefaultConfig() GenieConfig {
	dir := Dir()
	return GenieConfig{
		Meta: MetaConfig{Version: CurrentConfigVersion},
		Server: ServerConfig{
			BaseURL:        "http://127.0.0.1:4110/chat-bot",
			Transport:      TransportSSE,
			ReconnectDelay: 3 * time.Second,
			RequestTimeout: 30 * time.Second,
		},
		Client: ClientConfig{
			Platform:    "genie-pro-v3",
			Tier:        "premium",
			SubmitRate:  1,
			SubmitBurst: 3,
		},
		State: StateConfig{
			Dir: filepath.Join(dir, "state"),
		},
		Logging: LoggingConfig{
			Level: "warn",
			Dir:   filepath.Join(dir, "logs"),
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			OTLPEndpoint:   "localhost:4317",
			OTLPInsecure:   true,
		},
		Status: StatusConfig{},
		UI: UIConfig{
			Personality: "full",
		},
	}
}
