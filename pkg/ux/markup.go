// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"io"
	"regexp"
	"strings"
	"sync"
)

// =============================================================================
// Markup
// =============================================================================

var (
	boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)
	linkPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
)

// Markup renders the assistant's lightweight markup for a terminal.
//
// Supported forms:
//
//	**bold**      -> bold text (plain text when styled is false)
//	[text](url)   -> "text (url)"
//	* item        -> "• item" at the start of a line
//
// Anything else passes through unchanged. Markup never fails: malformed
// forms such as an unclosed "**" are left as typed.
func Markup(text string, styled bool) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = markupLine(line, styled)
	}
	return strings.Join(lines, "\n")
}

func markupLine(line string, styled bool) string {
	trimmed := strings.TrimLeft(line, " \t")
	if strings.HasPrefix(trimmed, "* ") {
		indent := line[:len(line)-len(trimmed)]
		line = indent + string(IconBullet) + " " + trimmed[2:]
	}

	line = linkPattern.ReplaceAllStringFunc(line, func(m string) string {
		parts := linkPattern.FindStringSubmatch(m)
		if styled {
			return parts[1] + " (" + Styles.Link.Render(parts[2]) + ")"
		}
		return parts[1] + " (" + parts[2] + ")"
	})

	return boldPattern.ReplaceAllStringFunc(line, func(m string) string {
		inner := boldPattern.FindStringSubmatch(m)[1]
		if styled {
			return Styles.Bold.Render(inner)
		}
		return inner
	})
}

// =============================================================================
// LineWriter
// =============================================================================

// LineWriter renders streamed text one complete line at a time.
//
// Answer text arrives in fragments that can split a "**bold**" or a link in
// half, so markup is only applied once a newline closes the line. The
// unfinished tail is held until more text arrives or Flush is called.
//
// Thread Safety:
//
//	Safe for concurrent use.
type LineWriter struct {
	mu      sync.Mutex
	out     io.Writer
	styled  bool
	pending strings.Builder
	written int
}

// NewLineWriter returns a LineWriter writing rendered lines to w.
func NewLineWriter(w io.Writer, styled bool) *LineWriter {
	return &LineWriter{out: w, styled: styled}
}

// WriteString appends a fragment and writes out every line it completes.
func (lw *LineWriter) WriteString(fragment string) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	lw.pending.WriteString(fragment)
	buffered := lw.pending.String()
	cut := strings.LastIndexByte(buffered, '\n')
	if cut < 0 {
		return len(fragment), nil
	}

	complete, rest := buffered[:cut+1], buffered[cut+1:]
	lw.pending.Reset()
	lw.pending.WriteString(rest)

	rendered := Markup(strings.TrimSuffix(complete, "\n"), lw.styled) + "\n"
	n, err := io.WriteString(lw.out, rendered)
	lw.written += n
	if err != nil {
		return len(fragment), err
	}
	return len(fragment), nil
}

// Flush writes any held partial line followed by a newline. A writer with
// nothing held writes nothing.
func (lw *LineWriter) Flush() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.pending.Len() == 0 {
		return nil
	}
	rendered := Markup(lw.pending.String(), lw.styled) + "\n"
	lw.pending.Reset()
	n, err := io.WriteString(lw.out, rendered)
	lw.written += n
	return err
}

// Pending returns the text held back waiting for a newline.
func (lw *LineWriter) Pending() string {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.pending.String()
}

// Reset drops any held text without writing it.
func (lw *LineWriter) Reset() {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.pending.Reset()
}
