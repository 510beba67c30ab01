// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package answer assembles a streamed answer from ordered text deltas.
package answer

import "strings"

// Assembler accumulates deltas for one in-flight turn. The zero value is
// an empty assembler ready to use. Not safe for concurrent use.
type Assembler struct {
	turnID  string
	buf     strings.Builder
	started bool
	deltas  int
}

// New returns an assembler bound to turnID.
func New(turnID string) *Assembler {
	return &Assembler{turnID: turnID}
}

// TurnID identifies the turn this assembler belongs to.
func (a *Assembler) TurnID() string { return a.turnID }

// Append adds delta in arrival order and returns the full text so far.
// Repeated deltas are kept; an empty delta still marks the turn started.
func (a *Assembler) Append(delta string) string {
	a.started = true
	a.deltas++
	a.buf.WriteString(delta)
	return a.buf.String()
}

// Snapshot returns the full text so far.
func (a *Assembler) Snapshot() string { return a.buf.String() }

// Started reports whether any delta arrived.
func (a *Assembler) Started() bool { return a.started }

// Deltas is the number of Append calls.
func (a *Assembler) Deltas() int { return a.deltas }

// Len is the byte length of the assembled text.
func (a *Assembler) Len() int { return a.buf.Len() }

// Final returns the answer to show when the turn completes: the assembled
// text, or fallback when nothing was assembled. The second result reports
// whether fallback was used.
func (a *Assembler) Final(fallback string) (string, bool) {
	if a == nil || a.buf.Len() == 0 {
		if fallback != "" {
			return fallback, true
		}
		return "", false
	}
	return a.buf.String(), false
}
