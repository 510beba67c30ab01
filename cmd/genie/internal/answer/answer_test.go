// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package answer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssembler_PrefixSnapshots(t *testing.T) {
	deltas := []string{"Here are ", "some ", "", "options.", "options."}
	a := New("turn-1")

	var prefix strings.Builder
	for _, d := range deltas {
		prefix.WriteString(d)
		got := a.Append(d)
		if got != prefix.String() {
			t.Fatalf("Append(%q) = %q, want %q", d, got, prefix.String())
		}
		assert.Equal(t, got, a.Snapshot())
	}

	assert.Equal(t, "Here are some options.options.", a.Snapshot())
	assert.Equal(t, 5, a.Deltas())
	assert.Equal(t, "turn-1", a.TurnID())
	assert.Equal(t, len(a.Snapshot()), a.Len())
}

func TestAssembler_ZeroValue(t *testing.T) {
	var a Assembler
	assert.False(t, a.Started())
	assert.Equal(t, "", a.Snapshot())

	a.Append("")
	assert.True(t, a.Started())
}

func TestAssembler_Final(t *testing.T) {
	tests := []struct {
		name         string
		deltas       []string
		fallback     string
		want         string
		wantFallback bool
	}{
		{name: "assembled wins", deltas: []string{"a", "b"}, fallback: "full", want: "ab"},
		{name: "fallback when empty", fallback: "full", want: "full", wantFallback: true},
		{name: "empty deltas use fallback", deltas: []string{""}, fallback: "full", want: "full", wantFallback: true},
		{name: "nothing at all", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New("t")
			for _, d := range tt.deltas {
				a.Append(d)
			}
			got, usedFallback := a.Final(tt.fallback)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFallback, usedFallback)
		})
	}
}

func TestAssembler_FinalOnNil(t *testing.T) {
	var a *Assembler
	got, usedFallback := a.Final("full")
	assert.Equal(t, "full", got)
	assert.True(t, usedFallback)
}

func TestAssembler_LongAnswer(t *testing.T) {
	a := New("t")
	for i := 0; i < 10000; i++ {
		a.Append("x")
	}
	assert.Equal(t, 10000, a.Len())
}
