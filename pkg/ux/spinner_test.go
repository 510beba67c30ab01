// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner_MachineModePrintsOnce(t *testing.T) {
	withPersonality(t, PersonalityMachine, func() {
		var buf syncBuffer
		s := NewSpinnerTo(&buf, "Connecting")
		s.Start()
		s.Start()
		s.Stop()

		if buf.String() != "PROGRESS: Connecting\n" {
			t.Errorf("unexpected output %q", buf.String())
		}
	})
}

func TestSpinner_AnimatesAndClears(t *testing.T) {
	withPersonality(t, PersonalityFull, func() {
		var buf syncBuffer
		s := NewSpinnerTo(&buf, "Analyzing").WithType(SpinnerOrbit)
		s.Start()
		if !s.Running() {
			t.Fatal("expected running spinner")
		}

		deadline := time.Now().Add(2 * time.Second)
		for !strings.Contains(buf.String(), "Analyzing") && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		s.UpdateMessage("Retrieving")
		s.Stop()

		out := buf.String()
		if !strings.Contains(out, "Analyzing") {
			t.Errorf("expected a frame with the message, got %q", out)
		}
		if !strings.HasSuffix(out, "\r\033[K") {
			t.Errorf("expected the line to be cleared on stop, got %q", out)
		}
		if s.Running() {
			t.Error("expected stopped spinner")
		}
	})
}

func TestSpinner_StopWithoutStart(t *testing.T) {
	s := NewSpinnerTo(&bytes.Buffer{}, "idle")
	s.Stop()
	s.Stop()
}

func TestWithSpinner(t *testing.T) {
	withPersonality(t, PersonalityMachine, func() {
		var called bool
		out := captureStdout(func() {
			if err := WithSpinner("Opening state", func() error {
				called = true
				return nil
			}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
		if !called {
			t.Error("fn not called")
		}
		if !strings.Contains(out, "OK: Opening state") {
			t.Errorf("unexpected output %q", out)
		}

		wantErr := errors.New("locked")
		stderr := captureStderr(func() {
			captureStdout(func() {
				if err := WithSpinner("Opening state", func() error { return wantErr }); !errors.Is(err, wantErr) {
					t.Errorf("expected %v, got %v", wantErr, err)
				}
			})
		})
		if !strings.Contains(stderr, "ERROR: Opening state: locked") {
			t.Errorf("unexpected stderr %q", stderr)
		}
	})
}
