// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/genie/cmd/genie/internal/profile"
	"github.com/AleutianAI/genie/cmd/genie/internal/progress"
	"github.com/AleutianAI/genie/cmd/genie/internal/router"
	"github.com/AleutianAI/genie/cmd/genie/internal/submit"
	"github.com/AleutianAI/genie/cmd/genie/internal/supervisor"
	"github.com/AleutianAI/genie/pkg/telemetry"
)

// DefaultInboxSize bounds the trigger queue between producers and the loop.
const DefaultInboxSize = 256

var (
	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("session closed")

	// ErrBusy is returned by Submit while a turn is in flight.
	ErrBusy = errors.New("a message is already being answered")

	// ErrNotStarted is returned by Submit before Start.
	ErrNotStarted = errors.New("session not started")
)

// =============================================================================
// Collaborators
// =============================================================================

// Presenter consumes normalized events. Present is called from the event
// loop goroutine, one event at a time, in order.
type Presenter interface {
	Present(ev router.Event)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ev router.Event)

func (f PresenterFunc) Present(ev router.Event) { f(ev) }

// Submitter sends one message. *submit.Client implements it.
type Submitter interface {
	Send(ctx context.Context, sessionID, message string) error
}

// Config holds the controller's settings.
type Config struct {
	// SessionID is required.
	SessionID string

	ReconnectDelay time.Duration
	InboxSize      int
}

// Deps are the controller's collaborators. Dialer, Submitter and Presenter
// are required.
type Deps struct {
	Dialer    supervisor.Dialer
	Submitter Submitter
	Presenter Presenter
	Scheduler supervisor.Scheduler
	Profile   *profile.Accumulator
	NewTurnID func() string
	Logger    *slog.Logger
	Metrics   *telemetry.ClientMetrics
}

// State is a read-only view of the controller for other goroutines.
type State struct {
	Connection   supervisor.State
	InputEnabled bool
	InFlight     bool
	Timeline     progress.Timeline
}

// =============================================================================
// Triggers
// =============================================================================

type trigger interface{ isTrigger() }

type frameTrigger struct{ payload []byte }
type connectedTrigger struct{}
type disconnectedTrigger struct{ err error }
type submitStartTrigger struct {
	text  string
	reply chan error
}
type submitFailedTrigger struct{ err error }

func (frameTrigger) isTrigger()        {}
func (connectedTrigger) isTrigger()    {}
func (disconnectedTrigger) isTrigger() {}
func (submitStartTrigger) isTrigger()  {}
func (submitFailedTrigger) isTrigger() {}

// =============================================================================
// Controller
// =============================================================================

// Controller is the streaming session controller.
type Controller struct {
	sessionID string
	router    *router.Router
	profile   *profile.Accumulator
	sup       *supervisor.Supervisor
	submitter Submitter
	presenter Presenter
	logger    *slog.Logger

	inbox chan trigger
	done  chan struct{}
	wg    sync.WaitGroup

	started   atomic.Bool
	closeOnce sync.Once

	state atomic.Pointer[State]

	readyMu sync.Mutex
	ready   chan struct{}
}

// New wires a controller. Nothing runs until Start.
func New(cfg Config, deps Deps) (*Controller, error) {
	if cfg.SessionID == "" {
		return nil, errors.New("session: session id is required")
	}
	if deps.Submitter == nil {
		return nil, errors.New("session: submitter is required")
	}
	if deps.Presenter == nil {
		return nil, errors.New("session: presenter is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	acc := deps.Profile
	if acc == nil {
		acc = profile.NewAccumulator()
	}
	size := cfg.InboxSize
	if size <= 0 {
		size = DefaultInboxSize
	}

	c := &Controller{
		sessionID: cfg.SessionID,
		profile:   acc,
		submitter: deps.Submitter,
		presenter: deps.Presenter,
		logger:    logger.With("component", "session"),
		inbox:     make(chan trigger, size),
		done:      make(chan struct{}),
		ready:     make(chan struct{}),
	}
	close(c.ready)

	c.router = router.New(router.Options{
		Profile:   acc,
		NewTurnID: deps.NewTurnID,
		Logger:    logger,
		Metrics:   deps.Metrics,
	})

	sup, err := supervisor.New(supervisor.Config{
		SessionID:      cfg.SessionID,
		Dialer:         deps.Dialer,
		Handler:        streamHandler{c: c},
		Scheduler:      deps.Scheduler,
		ReconnectDelay: cfg.ReconnectDelay,
		Logger:         logger,
		Metrics:        deps.Metrics,
	})
	if err != nil {
		return nil, err
	}
	c.sup = sup
	c.publish()
	return c, nil
}

// Start launches the event loop and opens the stream. ctx scopes telemetry
// for the session; cancel it or call Close to stop.
func (c *Controller) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("session: nil context")
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}

	c.wg.Add(1)
	go c.loop(ctx)

	c.logger.Info("session started", "session_id", c.sessionID)
	return c.sup.EnsureConnected()
}

// Close stops the supervisor (closing the channel and cancelling any
// pending reconnect), then the event loop. Idempotent.
func (c *Controller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.sup.Close()
		close(c.done)
		c.wg.Wait()
		c.logger.Info("session closed")
	})
	return err
}

// Reconnect asks for an immediate connection attempt. A no-op while
// connected or connecting.
func (c *Controller) Reconnect() error {
	if err := c.sup.EnsureConnected(); err != nil {
		if errors.Is(err, supervisor.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// SessionID returns the routing key for this session.
func (c *Controller) SessionID() string { return c.sessionID }

// Profile returns the latest profile snapshot.
func (c *Controller) Profile() profile.Snapshot { return c.profile.Current() }

// State returns the latest published view.
func (c *Controller) State() State {
	st := *c.state.Load()
	st.Connection = c.sup.State()
	return st
}

// Submit sends text as the user's next message.
//
// Blank input returns submit.ErrEmptyMessage with no visible effect. While
// a turn is in flight Submit returns ErrBusy. Otherwise the user message is
// echoed, input is disabled, and the POST is made; a transport failure is
// surfaced as an Error event and returned.
func (c *Controller) Submit(ctx context.Context, text string) error {
	message, err := submit.Normalize(text)
	if err != nil {
		return err
	}
	if !c.started.Load() {
		return ErrNotStarted
	}

	reply := make(chan error, 1)
	if err := c.post(submitStartTrigger{text: message, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		if err != nil {
			return err
		}
	case <-c.done:
		return ErrClosed
	}

	if err := c.submitter.Send(ctx, c.sessionID, message); err != nil {
		_ = c.post(submitFailedTrigger{err: err})
		return fmt.Errorf("submit message: %w", err)
	}
	return nil
}

// WaitReady blocks until input is enabled again.
func (c *Controller) WaitReady(ctx context.Context) error {
	c.readyMu.Lock()
	ready := c.ready
	c.readyMu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// =============================================================================
// Event Loop
// =============================================================================

func (c *Controller) post(t trigger) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.inbox <- t:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) loop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case t := <-c.inbox:
			c.process(ctx, t)
		case <-c.done:
			return
		}
	}
}

// process applies one trigger, presents its events, then publishes the new
// state. Events are presented before the ready signal fires so a caller
// woken by WaitReady sees the whole turn.
func (c *Controller) process(ctx context.Context, t trigger) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("event processing panic", "panic", r)
			if st, ok := t.(submitStartTrigger); ok {
				select {
				case st.reply <- fmt.Errorf("event processing panic: %v", r):
				default:
				}
			}
			c.publish()
		}
	}()

	switch tr := t.(type) {
	case frameTrigger:
		c.presentAll(c.router.HandlePayload(ctx, tr.payload))
	case connectedTrigger:
		c.presentAll(c.router.ConnectionOpened())
	case disconnectedTrigger:
		c.logger.Debug("stream lost", "error", tr.err)
		c.presentAll(c.router.ConnectionLost(ctx))
	case submitStartTrigger:
		if !c.router.InputEnabled() {
			tr.reply <- ErrBusy
			return
		}
		c.presentAll(c.router.BeginSubmission(tr.text))
		c.publish()
		tr.reply <- nil
		return
	case submitFailedTrigger:
		c.presentAll(c.router.SubmissionFailed(tr.err))
	}
	c.publish()
}

// presentAll hands events to the presenter. A panicking presenter loses
// that one event; the loop keeps going.
func (c *Controller) presentAll(events []router.Event) {
	for _, ev := range events {
		c.present(ev)
	}
}

func (c *Controller) present(ev router.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("presenter panic", "event", fmt.Sprintf("%T", ev), "panic", r)
		}
	}()
	c.presenter.Present(ev)
}

// publish refreshes the cross-goroutine view and the ready signal. Called
// only from the loop goroutine, and once from New.
func (c *Controller) publish() {
	st := &State{
		InputEnabled: c.router.InputEnabled(),
		InFlight:     c.router.InFlight(),
		Timeline:     c.router.Timeline(),
	}
	c.state.Store(st)

	c.readyMu.Lock()
	defer c.readyMu.Unlock()
	select {
	case <-c.ready:
		if !st.InputEnabled {
			c.ready = make(chan struct{})
		}
	default:
		if st.InputEnabled {
			close(c.ready)
		}
	}
}

// =============================================================================
// Supervisor Handler
// =============================================================================

// streamHandler forwards supervisor callbacks into the inbox.
type streamHandler struct {
	c *Controller
}

func (h streamHandler) OnConnected()             { _ = h.c.post(connectedTrigger{}) }
func (h streamHandler) OnFrame(payload []byte)   { _ = h.c.post(frameTrigger{payload: payload}) }
func (h streamHandler) OnDisconnected(err error) { _ = h.c.post(disconnectedTrigger{err: err}) }
