// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package supervisor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

type harness struct {
	sup       *Supervisor
	dialer    *fakeDialer
	handler   *recordingHandler
	scheduler *manualScheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		dialer:    &fakeDialer{},
		handler:   &recordingHandler{},
		scheduler: &manualScheduler{},
	}
	sup, err := New(Config{
		SessionID: "genie-user-test",
		Dialer:    h.dialer,
		Handler:   h.handler,
		Scheduler: h.scheduler,
	})
	require.NoError(t, err)
	h.sup = sup
	t.Cleanup(func() { _ = sup.Close() })
	return h
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.sup.State() == want }, waitFor, tick,
		"state never became %s (is %s)", want, h.sup.State())
}

// =============================================================================
// Construction
// =============================================================================

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Handler: &recordingHandler{}, SessionID: "s"})
	assert.Error(t, err)

	_, err = New(Config{Dialer: &fakeDialer{}, SessionID: "s"})
	assert.Error(t, err)

	_, err = New(Config{Dialer: &fakeDialer{}, Handler: &recordingHandler{}})
	assert.Error(t, err)

	sup, err := New(Config{Dialer: &fakeDialer{}, Handler: &recordingHandler{}, SessionID: "s"})
	require.NoError(t, err)
	assert.Equal(t, DefaultReconnectDelay, sup.delay)
	assert.Equal(t, StateDisconnected, sup.State())
}

// =============================================================================
// Connect and Read
// =============================================================================

func TestSupervisor_ConnectsAndDeliversFramesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)

	require.NoError(t, h.sup.EnsureConnected())
	h.waitState(t, StateConnected)

	ch := h.dialer.last()
	for _, p := range []string{"a", "b", "c"} {
		ch.frames <- []byte(p)
	}

	require.Eventually(t, func() bool { return len(h.handler.payloads()) == 3 }, waitFor, tick)
	assert.Equal(t, []string{"a", "b", "c"}, h.handler.payloads())
	assert.Equal(t, "connected", h.handler.events()[0])

	require.NoError(t, h.sup.Close())
}

func TestSupervisor_EnsureConnectedIsIdempotent(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.sup.EnsureConnected())
	require.NoError(t, h.sup.EnsureConnected())
	h.waitState(t, StateConnected)
	require.NoError(t, h.sup.EnsureConnected())

	assert.Equal(t, 1, h.dialer.dialCount())
	assert.Equal(t, uint64(1), h.sup.Attempts())
}

// =============================================================================
// Failure and Reconnect
// =============================================================================

func TestSupervisor_FailureSchedulesExactlyOneRetry(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sup.EnsureConnected())
	h.waitState(t, StateConnected)

	first := h.dialer.last()
	first.fail <- errors.New("connection reset")
	h.waitState(t, StateFailedPendingRetry)

	assert.True(t, first.isClosed(), "failed channel is discarded")
	assert.Equal(t, 1, h.handler.count("disconnected"))
	require.Len(t, h.scheduler.pending(), 1)
	assert.Equal(t, DefaultReconnectDelay, h.scheduler.pending()[0].delay)
	assert.Equal(t, 1, h.dialer.dialCount(), "no reconnect before the delay")

	assert.Equal(t, 1, h.scheduler.fire())
	h.waitState(t, StateConnected)
	assert.Equal(t, 2, h.dialer.dialCount())
	assert.Empty(t, h.scheduler.pending())
}

func TestSupervisor_RetriesIndefinitely(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sup.EnsureConnected())

	const failures = 25
	for i := 0; i < failures; i++ {
		h.waitState(t, StateConnected)
		h.dialer.last().fail <- ErrStreamClosed
		h.waitState(t, StateFailedPendingRetry)
		require.Len(t, h.scheduler.pending(), 1, "failure %d", i)
		h.scheduler.fire()
	}
	h.waitState(t, StateConnected)

	assert.Equal(t, failures+1, h.dialer.dialCount())
	assert.Equal(t, failures, h.scheduler.scheduled())
	assert.Equal(t, failures, h.handler.count("disconnected"))
	assert.Equal(t, failures+1, h.handler.count("connected"))
}

func TestSupervisor_DialFailureRetries(t *testing.T) {
	h := newHarness(t)
	h.dialer.failNext(errors.New("connection refused"))

	require.NoError(t, h.sup.EnsureConnected())
	h.waitState(t, StateFailedPendingRetry)

	assert.ErrorContains(t, h.handler.err(), "connection refused")
	assert.Equal(t, 0, h.handler.count("connected"))

	h.scheduler.fire()
	h.waitState(t, StateConnected)
}

func TestSupervisor_ExplicitConnectCancelsPendingRetry(t *testing.T) {
	h := newHarness(t)
	h.dialer.failNext(errors.New("refused"))
	require.NoError(t, h.sup.EnsureConnected())
	h.waitState(t, StateFailedPendingRetry)
	timer := h.scheduler.pending()[0]

	require.NoError(t, h.sup.EnsureConnected())
	h.waitState(t, StateConnected)

	assert.False(t, timer.Stop(), "timer was already stopped")
	assert.Equal(t, 0, h.scheduler.fire())
	assert.Equal(t, 2, h.dialer.dialCount())
}

func TestSupervisor_HandlerPanicIsAFailure(t *testing.T) {
	h := newHarness(t)
	h.handler.onFrame = func(p []byte) {
		if string(p) == "boom" {
			panic("renderer exploded")
		}
	}
	require.NoError(t, h.sup.EnsureConnected())
	h.waitState(t, StateConnected)

	h.dialer.last().frames <- []byte("boom")
	h.waitState(t, StateFailedPendingRetry)

	assert.ErrorContains(t, h.handler.err(), "renderer exploded")
	h.scheduler.fire()
	h.waitState(t, StateConnected)
}

// =============================================================================
// Close
// =============================================================================

func TestSupervisor_CloseStopsEverything(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	h.dialer.failNext(errors.New("refused"))
	require.NoError(t, h.sup.EnsureConnected())
	h.waitState(t, StateFailedPendingRetry)

	require.NoError(t, h.sup.Close())
	require.NoError(t, h.sup.Close())

	assert.Equal(t, 0, h.scheduler.fire(), "pending retry cancelled")
	assert.Equal(t, 1, h.dialer.dialCount())
	assert.Equal(t, StateDisconnected, h.sup.State())
	assert.ErrorIs(t, h.sup.EnsureConnected(), ErrClosed)
}

func TestSupervisor_CloseWhileConnected(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	h := newHarness(t)
	require.NoError(t, h.sup.EnsureConnected())
	h.waitState(t, StateConnected)
	ch := h.dialer.last()

	require.NoError(t, h.sup.Close())

	assert.True(t, ch.isClosed())
	assert.Equal(t, 0, h.handler.count("disconnected"), "intentional close is not a loss")
	assert.Empty(t, h.scheduler.pending())
}

func TestSupervisor_StaleTimerAfterCloseIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.dialer.failNext(errors.New("refused"))
	require.NoError(t, h.sup.EnsureConnected())
	h.waitState(t, StateFailedPendingRetry)
	timer := h.scheduler.pending()[0]

	require.NoError(t, h.sup.Close())
	timer.fn()

	assert.Equal(t, 1, h.dialer.dialCount())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "failed_pending_retry", StateFailedPendingRetry.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "unknown", State(99).String())
}
