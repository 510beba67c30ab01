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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/genie/cmd/genie/config"
	"github.com/AleutianAI/genie/cmd/genie/internal/supervisor"
	"github.com/AleutianAI/genie/pkg/ux"
)

// =============================================================================
// Test Server
// =============================================================================

// lockedBuffer is written by the controller goroutine and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type submission struct {
	SessionID string            `json:"session_id"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata"`
}

// chatBackend answers every POST /chat by pushing one scripted turn down
// the session's event stream.
type chatBackend struct {
	frames chan string

	mu          sync.Mutex
	submissions []submission
	streamPaths []string
}

func newChatBackend() *chatBackend {
	return &chatBackend{frames: make(chan string, 32)}
}

func (b *chatBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/chat":
		var s submission
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.submissions = append(b.submissions, s)
		b.mu.Unlock()
		for _, f := range scriptedTurn {
			b.frames <- f
		}
		w.WriteHeader(http.StatusAccepted)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, supervisor.StreamPath):
		b.mu.Lock()
		b.streamPaths = append(b.streamPaths, r.URL.Path)
		b.mu.Unlock()

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()
		for {
			select {
			case f := <-b.frames:
				fmt.Fprintf(w, "data: %s\n\n", f)
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}

	default:
		http.NotFound(w, r)
	}
}

func (b *chatBackend) recorded() ([]submission, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]submission(nil), b.submissions...), append([]string(nil), b.streamPaths...)
}

var scriptedTurn = []string{
	`{"type":"processing_started"}`,
	`{"type":"status_update","data":{"message":"Searching programs"}}`,
	`{"type":"content_chunk","data":{"text":"Here is one option.\n"}}`,
	`{"type":"ai_response_completed","data":{"text":"Here is one option.\n","entities":{"desiredLocation":"Canada"},"items":[{"name":"MSc AI","institution":{"name":"UBC"},"approxAnnualFee":"42000","currency":"CAD"}]}}`,
}

func testConfig(t *testing.T, baseURL string) config.GenieConfig {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.BaseURL = baseURL
	cfg.Server.ReconnectDelay = 50 * time.Millisecond
	cfg.State.Dir = filepath.Join(t.TempDir(), "state")
	cfg.Logging.Dir = ""
	cfg.Telemetry.TraceExporter = "none"
	cfg.Telemetry.MetricExporter = "none"
	cfg.Status.Addr = ""
	return cfg
}

func keepPersonality(t *testing.T) {
	t.Helper()
	prev := ux.GetPersonality()
	t.Cleanup(func() { ux.SetPersonality(prev) })
}

// =============================================================================
// runChat Tests
// =============================================================================

func TestRunChat_EndToEnd(t *testing.T) {
	keepPersonality(t)
	backend := newChatBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := newApp(ctx, testConfig(t, srv.URL), appOptions{Ephemeral: true, Personality: "machine"})
	require.NoError(t, err)
	defer a.Close()

	var out lockedBuffer
	err = runChat(ctx, a, chatIO{Input: NewMockInputReader([]string{"hello"}), Output: &out})
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "SESSION: ")
	assert.Contains(t, got, "USER: hello")
	assert.Contains(t, got, "CONNECTION: Connected")
	assert.Contains(t, got, "ANSWER: Here is one option.")
	assert.Contains(t, got, "CARD: MSc AI")
	assert.Contains(t, got, "DONE")
	assert.Less(t, strings.Index(got, "USER: hello"), strings.Index(got, "DONE"))

	subs, paths := backend.recorded()
	require.Len(t, subs, 1)
	assert.Equal(t, "hello", subs[0].Message)
	assert.Equal(t, "genie-pro-v3", subs[0].Metadata["platform"])
	require.NotEmpty(t, paths)
	assert.Equal(t, supervisor.StreamPath+subs[0].SessionID, paths[0])
}

func TestRunChat_SessionIDIsStable(t *testing.T) {
	keepPersonality(t)
	backend := newChatBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := newApp(ctx, testConfig(t, srv.URL), appOptions{Ephemeral: true, Personality: "machine"})
	require.NoError(t, err)
	defer a.Close()

	first, err := a.sessionID(ctx)
	require.NoError(t, err)
	second, err := a.sessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestApp_NewDialer(t *testing.T) {
	a := &app{cfg: config.DefaultConfig()}

	d, err := a.newDialer()
	require.NoError(t, err)
	assert.IsType(t, &supervisor.SSEDialer{}, d)

	a.cfg.Server.Transport = config.TransportWebSocket
	d, err = a.newDialer()
	require.NoError(t, err)
	assert.IsType(t, &supervisor.WebSocketDialer{}, d)

	a.cfg.Server.Transport = "carrier-pigeon"
	_, err = a.newDialer()
	assert.Error(t, err)
}

func TestQuietCancel(t *testing.T) {
	assert.NoError(t, quietCancel(context.Canceled))
	assert.NoError(t, quietCancel(nil))
	assert.Error(t, quietCancel(fmt.Errorf("boom")))
}

// =============================================================================
// resolveConfig Tests
// =============================================================================

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvPersonality, "")
	path := filepath.Join(t.TempDir(), "genie.yaml")

	cfg, err := resolveConfig(appOptions{
		ConfigPath:  path,
		BaseURL:     "http://advisor.example:9000/chat-bot",
		Transport:   config.TransportWebSocket,
		Personality: "minimal",
		LogLevel:    "debug",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://advisor.example:9000/chat-bot", cfg.Server.BaseURL)
	assert.Equal(t, config.TransportWebSocket, cfg.Server.Transport)
	assert.Equal(t, "minimal", cfg.UI.Personality)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestResolveConfig_InvalidOverride(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "")
	path := filepath.Join(t.TempDir(), "genie.yaml")

	_, err := resolveConfig(appOptions{ConfigPath: path, Transport: "smoke-signals"})
	assert.Error(t, err)
}
