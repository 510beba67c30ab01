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
	"sync"
	"time"
)

// =============================================================================
// Manual Scheduler
// =============================================================================

type manualTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{delay: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// pending returns the timers that have neither fired nor been stopped.
func (s *manualScheduler) pending() []*manualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*manualTimer
	for _, t := range s.timers {
		t.mu.Lock()
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
		t.mu.Unlock()
	}
	return out
}

func (s *manualScheduler) scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// fire runs every pending timer as if its delay elapsed.
func (s *manualScheduler) fire() int {
	n := 0
	for _, t := range s.pending() {
		t.mu.Lock()
		if t.stopped || t.fired {
			t.mu.Unlock()
			continue
		}
		t.fired = true
		t.mu.Unlock()
		t.fn()
		n++
	}
	return n
}

// =============================================================================
// Fake Dialer and Channel
// =============================================================================

type fakeChannel struct {
	frames chan []byte
	fail   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		frames: make(chan []byte, 16),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeChannel) Next(ctx context.Context) ([]byte, error) {
	select {
	case p := <-c.frames:
		return p, nil
	case err := <-c.fail:
		return nil, err
	case <-c.closed:
		return nil, errors.New("use of closed channel")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeChannel) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeChannel) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu       sync.Mutex
	dials    int
	channels []*fakeChannel
	errs     []error
}

func (d *fakeDialer) Transport() string { return "fake" }

// failNext makes the next dial fail with err.
func (d *fakeDialer) failNext(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, err)
}

func (d *fakeDialer) Dial(ctx context.Context, sessionID string) (Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		return nil, err
	}
	ch := newFakeChannel()
	d.channels = append(d.channels, ch)
	return ch, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) last() *fakeChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.channels) == 0 {
		return nil
	}
	return d.channels[len(d.channels)-1]
}

// =============================================================================
// Recording Handler
// =============================================================================

type recordingHandler struct {
	mu      sync.Mutex
	log     []string
	frames  [][]byte
	lastErr error
	onFrame func([]byte)
}

func (h *recordingHandler) OnConnected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.log = append(h.log, "connected")
}

func (h *recordingHandler) OnFrame(payload []byte) {
	h.mu.Lock()
	h.log = append(h.log, "frame")
	h.frames = append(h.frames, payload)
	hook := h.onFrame
	h.mu.Unlock()
	if hook != nil {
		hook(payload)
	}
}

func (h *recordingHandler) OnDisconnected(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.log = append(h.log, "disconnected")
	h.lastErr = err
}

func (h *recordingHandler) events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.log...)
}

func (h *recordingHandler) count(name string) int {
	n := 0
	for _, e := range h.events() {
		if e == name {
			n++
		}
	}
	return n
}

func (h *recordingHandler) payloads() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.frames))
	for i, f := range h.frames {
		out[i] = string(f)
	}
	return out
}

func (h *recordingHandler) err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}
