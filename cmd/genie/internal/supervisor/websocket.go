// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/genie/pkg/telemetry"
)

// SocketPath is the per-session WebSocket endpoint under the base URL.
const SocketPath = "/chat-ws/"

// WebSocketDialer opens the stream as a WebSocket. Each text or binary
// message is one frame payload.
type WebSocketDialer struct {
	BaseURL string
	Dialer  *websocket.Dialer
}

// Transport returns "websocket".
func (d *WebSocketDialer) Transport() string { return "websocket" }

// SocketURL maps the http(s) base URL onto ws(s).
func (d *WebSocketDialer) SocketURL(sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(d.BaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	return u.String() + SocketPath + url.PathEscape(sessionID), nil
}

func (d *WebSocketDialer) Dial(ctx context.Context, sessionID string) (Channel, error) {
	target, err := d.SocketURL(sessionID)
	if err != nil {
		return nil, err
	}
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := http.Header{}
	telemetry.InjectContext(ctx, header)

	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake: %s: %w", resp.Status, err)
		}
		return nil, err
	}
	return &wsChannel{conn: conn}, nil
}

type wsChannel struct {
	conn *websocket.Conn

	closeOnce sync.Once
	closeErr  error
}

// Next returns the next message. A normal close from the server is
// ErrStreamClosed.
func (c *wsChannel) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, payload, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, ErrStreamClosed
		}
		return nil, err
	}
	return payload, nil
}

func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
