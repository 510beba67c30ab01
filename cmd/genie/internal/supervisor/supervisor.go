// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package supervisor owns the server-push channel: it connects, reads
// frames, detects failure, and reconnects after a fixed delay.
//
// # State Machine
//
//	Disconnected ──EnsureConnected──▶ Connecting ──dial ok──▶ Connected
//	     ▲                               │                       │
//	     │ Close                    dial error              read error
//	     │                               ▼                       ▼
//	     └────────────────────── FailedPendingRetry ◀────────────┘
//	                                     │
//	                              delay elapses
//	                                     ▼
//	                                 Connecting
//
// Reconnection is unconditional: a fixed delay, no growth, no ceiling. A
// server-initiated close is a failure like any other. Close is the only way
// to stop the cycle.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Handler callbacks run
// on the read goroutine, one at a time per connection, and never while the
// supervisor's lock is held.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/genie/pkg/telemetry"
)

// DefaultReconnectDelay is the fixed pause before every reconnect attempt.
const DefaultReconnectDelay = 3 * time.Second

// ErrClosed is returned by EnsureConnected after Close.
var ErrClosed = errors.New("supervisor closed")

// ErrStreamClosed is reported when the server ends the stream.
var ErrStreamClosed = errors.New("stream closed by server")

// =============================================================================
// Interfaces
// =============================================================================

// Channel is one open push channel.
type Channel interface {
	// Next blocks until the next frame payload arrives.
	Next(ctx context.Context) ([]byte, error)

	// Close releases the channel and unblocks a pending Next.
	Close() error
}

// Dialer opens a channel for a session.
type Dialer interface {
	Dial(ctx context.Context, sessionID string) (Channel, error)

	// Transport names the transport for logs and metrics.
	Transport() string
}

// Handler receives channel lifecycle events and frames.
type Handler interface {
	OnConnected()
	OnFrame(payload []byte)
	OnDisconnected(err error)
}

// =============================================================================
// State
// =============================================================================

// State is the connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailedPendingRetry
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailedPendingRetry:
		return "failed_pending_retry"
	default:
		return "unknown"
	}
}

// =============================================================================
// Supervisor
// =============================================================================

// Config configures a Supervisor. Dialer, Handler and SessionID are
// required.
type Config struct {
	SessionID      string
	Dialer         Dialer
	Handler        Handler
	Scheduler      Scheduler
	ReconnectDelay time.Duration
	Logger         *slog.Logger
	Metrics        *telemetry.ClientMetrics
}

// Supervisor is the connection supervisor.
type Supervisor struct {
	sessionID string
	dialer    Dialer
	handler   Handler
	scheduler Scheduler
	delay     time.Duration
	logger    *slog.Logger
	metrics   *telemetry.ClientMetrics

	mu       sync.Mutex
	state    State
	gen      uint64
	channel  Channel
	cancel   context.CancelFunc
	timer    Timer
	closed   bool
	attempts uint64

	wg sync.WaitGroup
}

// New validates cfg and returns a disconnected supervisor.
func New(cfg Config) (*Supervisor, error) {
	if cfg.Dialer == nil {
		return nil, errors.New("supervisor: dialer is required")
	}
	if cfg.Handler == nil {
		return nil, errors.New("supervisor: handler is required")
	}
	if cfg.SessionID == "" {
		return nil, errors.New("supervisor: session id is required")
	}

	s := &Supervisor{
		sessionID: cfg.SessionID,
		dialer:    cfg.Dialer,
		handler:   cfg.Handler,
		scheduler: cfg.Scheduler,
		delay:     cfg.ReconnectDelay,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
	if s.scheduler == nil {
		s.scheduler = RealScheduler{}
	}
	if s.delay <= 0 {
		s.delay = DefaultReconnectDelay
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.logger = s.logger.With("component", "supervisor", "transport", s.dialer.Transport())
	return s, nil
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts is the number of connection attempts started so far.
func (s *Supervisor) Attempts() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// EnsureConnected opens a channel unless one is open or being opened. A
// pending retry is cancelled and replaced by an immediate attempt.
func (s *Supervisor) EnsureConnected() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state == StateConnecting || s.state == StateConnected {
		return nil
	}
	s.connectLocked()
	return nil
}

// Close stops the supervisor: it cancels any pending retry, closes the open
// channel, and waits for the read goroutine to exit. The handler is not
// told about a disconnect it asked for. Idempotent.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	var err error
	if s.channel != nil {
		err = s.channel.Close()
		s.channel = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

// connectLocked starts a new connection generation. Caller holds s.mu.
func (s *Supervisor) connectLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.attempts++
	s.state = StateConnecting

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	gen := s.gen
	s.wg.Add(1)
	go s.run(ctx, gen)
}

// run dials and then reads until the channel fails or the generation is
// superseded.
func (s *Supervisor) run(ctx context.Context, gen uint64) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("read loop panic", "panic", r)
			s.fail(gen, fmt.Errorf("read loop panic: %v", r))
		}
	}()

	ctx, span := telemetry.StartSpan(ctx, "supervisor.connect")
	ch, err := s.dialer.Dial(ctx, s.sessionID)
	if err != nil {
		telemetry.RecordError(span, err)
		span.End()
		s.fail(gen, fmt.Errorf("dial: %w", err))
		return
	}
	telemetry.SetSpanOK(span)
	span.End()

	if !s.attach(gen, ch) {
		_ = ch.Close()
		return
	}
	s.logger.Info("stream connected")
	s.metrics.RecordConnect(ctx, s.dialer.Transport())
	s.handler.OnConnected()

	for {
		payload, err := ch.Next(ctx)
		if err != nil {
			s.fail(gen, err)
			return
		}
		if !s.current(gen) {
			return
		}
		s.handler.OnFrame(payload)
	}
}

func (s *Supervisor) attach(gen uint64, ch Channel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return false
	}
	s.channel = ch
	s.state = StateConnected
	return true
}

func (s *Supervisor) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && gen == s.gen
}

// fail tears down generation gen, tells the handler, then schedules exactly
// one retry. The state stays Connecting/Connected while the handler runs so
// a concurrent EnsureConnected cannot start a connection whose OnConnected
// would overtake this OnDisconnected.
func (s *Supervisor) fail(gen uint64, cause error) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.logger.Warn("stream lost, reconnect scheduled",
		"error", cause,
		"delay_ms", s.delay.Milliseconds(),
	)
	s.metrics.RecordDisconnect(context.Background(), s.dialer.Transport())
	s.handler.OnDisconnected(cause)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	s.state = StateFailedPendingRetry
	s.timer = s.scheduler.AfterFunc(s.delay, func() { s.retry(gen) })
}

func (s *Supervisor) retry(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || s.state != StateFailedPendingRetry {
		return
	}
	s.timer = nil
	s.logger.Debug("reconnecting")
	s.connectLocked()
}
