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
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// =============================================================================
// Chat Renderer Interface
// =============================================================================

// ChatRenderer puts a live chat session on an output destination.
//
// Each method handles exactly one kind of display change. Renderers only
// render: they hold no session state beyond what they need to draw, and
// they never talk to the network.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent calls. The session loop
//	calls them from one goroutine, but the CLI writes connection notices
//	and errors from another.
//
// Lifecycle:
//
//  1. Create the renderer with New*ChatRenderer()
//  2. Call On* methods as display changes arrive
//  3. Call Finalize() when the chat ends (always, even on error)
//  4. Call Transcript() to inspect what was shown
type ChatRenderer interface {
	// OnUserMessage echoes a message the user just sent.
	OnUserMessage(text string)

	// OnStage shows the progress timeline. In interactive modes a non-idle
	// timeline drives the spinner; an idle one stops it.
	OnStage(view TimelineView)

	// OnAnswer appends a fragment of the assistant's answer. Interactive
	// modes print complete lines as they form; machine mode buffers until
	// OnTurnDone.
	OnAnswer(delta string)

	// OnCard shows one recommendation card.
	OnCard(card Card)

	// OnProfile shows the profile panel.
	OnProfile(lines []ProfileLine, placeholder string)

	// OnTurnDone closes the current answer. answer is the full text.
	OnTurnDone(answer string)

	// OnError shows a user-facing error message and closes any open answer.
	OnError(message string)

	// OnConnection shows the connection badge. interrupted is set when a
	// partially shown answer was dropped because the connection failed.
	OnConnection(online bool, interrupted bool)

	// Finalize stops spinners and flushes output. Safe to call more than
	// once.
	Finalize()

	// Transcript returns a copy of everything rendered so far.
	Transcript() *Transcript
}

// =============================================================================
// Transcript
// =============================================================================

// Message roles in a Transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleError     = "error"
)

// Message is one entry of the conversation as displayed.
type Message struct {
	Role string
	Text string
}

// Transcript is the displayed state of a chat. Cards are most recent first.
type Transcript struct {
	Messages []Message
	Cards    []Card
	Profile  []ProfileLine
	Status   string
	Online   bool
}

// LastAnswer returns the most recent assistant message, or "".
func (t *Transcript) LastAnswer() string {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == RoleAssistant {
			return t.Messages[i].Text
		}
	}
	return ""
}

// transcriptRecorder accumulates a Transcript. Callers hold their own lock.
type transcriptRecorder struct {
	t         Transcript
	answer    strings.Builder
	answering bool
}

func (r *transcriptRecorder) user(text string) {
	r.t.Messages = append(r.t.Messages, Message{Role: RoleUser, Text: text})
}

func (r *transcriptRecorder) delta(text string) {
	r.answering = true
	r.answer.WriteString(text)
}

// closeAnswer records the answer. full wins over the accumulated deltas
// when non-empty.
func (r *transcriptRecorder) closeAnswer(full string) {
	text := full
	if text == "" {
		text = r.answer.String()
	}
	if text != "" {
		r.t.Messages = append(r.t.Messages, Message{Role: RoleAssistant, Text: text})
	}
	r.dropAnswer()
}

func (r *transcriptRecorder) dropAnswer() {
	r.answer.Reset()
	r.answering = false
}

func (r *transcriptRecorder) err(message string) {
	r.t.Messages = append(r.t.Messages, Message{Role: RoleError, Text: message})
}

func (r *transcriptRecorder) card(c Card) {
	r.t.Cards = append([]Card{c}, r.t.Cards...)
}

func (r *transcriptRecorder) profile(lines []ProfileLine) {
	r.t.Profile = append([]ProfileLine(nil), lines...)
}

func (r *transcriptRecorder) snapshot() *Transcript {
	out := Transcript{
		Messages: append([]Message(nil), r.t.Messages...),
		Cards:    append([]Card(nil), r.t.Cards...),
		Profile:  append([]ProfileLine(nil), r.t.Profile...),
		Status:   r.t.Status,
		Online:   r.t.Online,
	}
	return &out
}

// =============================================================================
// Terminal Chat Renderer
// =============================================================================

// terminalChatRenderer renders a chat to an interactive terminal.
//
// Features:
//   - Spinner showing the progress timeline while the assistant works
//   - Line-by-line answer streaming with markup applied per line
//   - Boxed recommendation cards and profile panel (full personality)
//   - KEY: value lines for scripting (machine personality)
//
// Thread Safety:
//
//	All methods are protected by a mutex.
type terminalChatRenderer struct {
	writer      io.Writer
	personality PersonalityLevel
	spinner     *Spinner
	lines       *LineWriter
	rec         transcriptRecorder
	mu          sync.Mutex
	finalized   bool
}

// NewTerminalChatRenderer creates a renderer for interactive terminal
// output. A nil writer means os.Stdout.
//
// Example:
//
//	renderer := NewTerminalChatRenderer(os.Stdout, GetPersonality().Level)
//	defer renderer.Finalize()
func NewTerminalChatRenderer(w io.Writer, personality PersonalityLevel) ChatRenderer {
	if w == nil {
		w = os.Stdout
	}
	return &terminalChatRenderer{
		writer:      w,
		personality: personality,
		lines:       NewLineWriter(w, personality != PersonalityMachine && personality != PersonalityMinimal),
	}
}

func (r *terminalChatRenderer) OnUserMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.rec.user(text)

	if r.personality == PersonalityMachine {
		fmt.Fprintf(r.writer, "USER: %s\n", text)
		return
	}
	r.stopSpinner()
	fmt.Fprintf(r.writer, "%s %s\n", Styles.User.Render("You:"), text)
}

func (r *terminalChatRenderer) OnStage(view TimelineView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.rec.t.Status = view.Status

	if r.personality == PersonalityMachine {
		fmt.Fprintln(r.writer, RenderTimeline(view, r.personality))
		return
	}

	if view.Idle {
		r.stopSpinner()
		return
	}

	line := RenderTimeline(view, r.personality)
	if r.spinner == nil {
		r.spinner = NewSpinnerTo(r.writer, line).WithType(SpinnerLamp)
		r.spinner.Start()
		return
	}
	r.spinner.UpdateMessage(line)
}

func (r *terminalChatRenderer) OnAnswer(delta string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}

	first := !r.rec.answering
	r.rec.delta(delta)

	if r.personality == PersonalityMachine {
		return
	}

	r.stopSpinner()
	if first {
		fmt.Fprintln(r.writer, Styles.Assistant.Render("Genie:"))
	}
	_, _ = r.lines.WriteString(delta)
}

func (r *terminalChatRenderer) OnCard(card Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.rec.card(card)

	r.stopSpinner()
	_ = r.lines.Flush()
	fmt.Fprintln(r.writer, RenderCard(card, r.personality))
}

func (r *terminalChatRenderer) OnProfile(lines []ProfileLine, placeholder string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.rec.profile(lines)

	r.stopSpinner()
	_ = r.lines.Flush()
	fmt.Fprintln(r.writer, RenderProfile(lines, placeholder, r.personality))
}

func (r *terminalChatRenderer) OnTurnDone(answer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.stopSpinner()

	if r.personality == PersonalityMachine {
		text := answer
		if text == "" {
			text = r.rec.answer.String()
		}
		if text != "" {
			fmt.Fprintf(r.writer, "ANSWER: %s\n", strings.ReplaceAll(text, "\n", "\\n"))
		}
		fmt.Fprintln(r.writer, "DONE")
	} else {
		_ = r.lines.Flush()
	}
	r.rec.closeAnswer(answer)
}

func (r *terminalChatRenderer) OnError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.stopSpinner()
	_ = r.lines.Flush()
	r.rec.closeAnswer("")
	r.rec.err(message)

	switch r.personality {
	case PersonalityMachine:
		fmt.Fprintf(r.writer, "ERROR: %s\n", message)
	case PersonalityMinimal:
		fmt.Fprintf(r.writer, "%s %s\n", IconError.Render(), message)
	default:
		fmt.Fprintf(r.writer, "%s %s\n", IconError.Render(), Styles.Error.Render(message))
	}
}

func (r *terminalChatRenderer) OnConnection(online bool, interrupted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.rec.t.Online = online
	r.stopSpinner()

	if interrupted {
		r.lines.Reset()
		if r.rec.answering && r.personality != PersonalityMachine {
			fmt.Fprintln(r.writer)
		}
		r.rec.dropAnswer()
		if r.personality == PersonalityMachine {
			fmt.Fprintln(r.writer, "INTERRUPTED")
		} else {
			fmt.Fprintf(r.writer, "%s %s\n", IconWarning.Render(), Styles.Warning.Render("Response interrupted"))
		}
	}
	fmt.Fprintln(r.writer, ConnectionBadge(online, r.personality))
}

func (r *terminalChatRenderer) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.finalized = true
	r.stopSpinner()
	_ = r.lines.Flush()
}

func (r *terminalChatRenderer) Transcript() *Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.snapshot()
}

// stopSpinner must be called with r.mu held.
func (r *terminalChatRenderer) stopSpinner() {
	if r.spinner == nil {
		return
	}
	r.spinner.Stop()
	r.spinner = nil
}

// =============================================================================
// Buffer Chat Renderer (for testing)
// =============================================================================

// bufferChatRenderer records display changes without producing output.
type bufferChatRenderer struct {
	mu        sync.Mutex
	rec       transcriptRecorder
	stages    []TimelineView
	finalized bool
}

// NewBufferChatRenderer creates a renderer that only records. Use it in
// tests and anywhere a chat runs headless.
func NewBufferChatRenderer() ChatRenderer {
	return &bufferChatRenderer{}
}

func (r *bufferChatRenderer) OnUserMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finalized {
		r.rec.user(text)
	}
}

func (r *bufferChatRenderer) OnStage(view TimelineView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finalized {
		r.rec.t.Status = view.Status
		r.stages = append(r.stages, view)
	}
}

func (r *bufferChatRenderer) OnAnswer(delta string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finalized {
		r.rec.delta(delta)
	}
}

func (r *bufferChatRenderer) OnCard(card Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finalized {
		r.rec.card(card)
	}
}

func (r *bufferChatRenderer) OnProfile(lines []ProfileLine, placeholder string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finalized {
		r.rec.profile(lines)
	}
}

func (r *bufferChatRenderer) OnTurnDone(answer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finalized {
		r.rec.closeAnswer(answer)
	}
}

func (r *bufferChatRenderer) OnError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finalized {
		r.rec.closeAnswer("")
		r.rec.err(message)
	}
}

func (r *bufferChatRenderer) OnConnection(online bool, interrupted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalized {
		return
	}
	r.rec.t.Online = online
	if interrupted {
		r.rec.dropAnswer()
	}
}

func (r *bufferChatRenderer) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized = true
}

func (r *bufferChatRenderer) Transcript() *Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.snapshot()
}

// Stages returns every timeline the buffer renderer was shown, in order.
// It returns nil for renderers that are not buffer renderers.
func Stages(r ChatRenderer) []TimelineView {
	b, ok := r.(*bufferChatRenderer)
	if !ok {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]TimelineView(nil), b.stages...)
}

var (
	_ ChatRenderer = (*terminalChatRenderer)(nil)
	_ ChatRenderer = (*bufferChatRenderer)(nil)
)
