// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/AleutianAI/genie/cmd/genie/internal/protocol"
	"github.com/AleutianAI/genie/pkg/telemetry"
)

// StreamPath is the per-session push endpoint under the base URL.
const StreamPath = "/chat-stream/"

// SSEDialer opens the stream as Server-Sent Events.
type SSEDialer struct {
	BaseURL string

	// Client must not set a total Timeout; the stream is long-lived.
	Client *http.Client
}

// Transport returns "sse".
func (d *SSEDialer) Transport() string { return "sse" }

// StreamURL is the endpoint for sessionID.
func (d *SSEDialer) StreamURL(sessionID string) string {
	return strings.TrimRight(d.BaseURL, "/") + StreamPath + url.PathEscape(sessionID)
}

// Dial issues the GET and checks the response status.
func (d *SSEDialer) Dial(ctx context.Context, sessionID string) (Channel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.StreamURL(sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	telemetry.InjectContext(ctx, req.Header)

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("stream endpoint returned %s", resp.Status)
	}

	return &sseChannel{
		body:    resp.Body,
		scanner: protocol.NewEventScanner(resp.Body),
	}, nil
}

type sseChannel struct {
	body    io.ReadCloser
	scanner *protocol.EventScanner

	closeOnce sync.Once
	closeErr  error
}

// Next returns the data of the next message event. Named events and empty
// data are skipped. A clean end of stream is ErrStreamClosed.
func (c *sseChannel) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ev, err := c.scanner.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrStreamClosed
			}
			return nil, err
		}
		if !ev.IsMessage() || ev.Data == "" {
			continue
		}
		return []byte(ev.Data), nil
	}
}

func (c *sseChannel) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.body.Close()
	})
	return c.closeErr
}
