// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// This file holds the interactive chat loop and its input readers.
//
// Architecture:
//
//	cmd_chat.go → ChatRunner → chatSession (session.Controller)
//	                         → InputReader (stdin abstraction)
//	                         → ux.ChatRenderer (via the controller's presenter)
//
// The runner only reads lines and hands them to the session. Everything the
// user sees about a turn arrives through the presenter.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/genie/cmd/genie/internal/profile"
	"github.com/AleutianAI/genie/cmd/genie/internal/session"
	"github.com/AleutianAI/genie/cmd/genie/internal/submit"
	"github.com/AleutianAI/genie/pkg/ux"
)

// =============================================================================
// InputReader Interface
// =============================================================================

// InputReader abstracts reading user input for testability.
//
// ReadLine blocks until a full line is available and returns it trimmed.
// It returns io.EOF when input ends.
type InputReader interface {
	ReadLine() (string, error)
}

// PromptingInputReader is implemented by readers that draw their own
// prompt (the bubbletea reader). The runner checks for it to avoid
// double-prompting.
type PromptingInputReader interface {
	InputReader
	SetPrompt(prompt string)
}

// =============================================================================
// StdinReader Implementation
// =============================================================================

// StdinReader reads lines from a plain reader, os.Stdin in production.
//
// Not thread-safe. No line editing or history.
type StdinReader struct {
	reader *bufio.Reader
}

// NewStdinReader creates a StdinReader wrapping os.Stdin.
func NewStdinReader() *StdinReader {
	return newLineReader(os.Stdin)
}

func newLineReader(r io.Reader) *StdinReader {
	return &StdinReader{reader: bufio.NewReader(r)}
}

// ReadLine reads a single line. A final line without a newline is still
// returned; io.EOF follows on the next call.
func (r *StdinReader) ReadLine() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// =============================================================================
// InteractiveInputReader Implementation (with history)
// =============================================================================

// InteractiveInputReader reads lines through a bubbletea textinput with
// up/down history navigation and line editing.
//
// History is in-memory only; nothing the user types is persisted.
type InteractiveInputReader struct {
	history    []string
	maxHistory int
	prompt     string
}

// inputModel is the bubbletea model for one ReadLine call.
type inputModel struct {
	textInput    textinput.Model
	history      []string
	historyIndex int
	currentInput string // Stores current input when navigating history
	done         bool
	eof          bool
}

// NewInteractiveInputReader returns an InteractiveInputReader when stdin is
// a terminal and a StdinReader otherwise (piped input, CI).
func NewInteractiveInputReader(maxHistory int) InputReader {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return NewStdinReader()
	}
	return &InteractiveInputReader{
		history:    make([]string, 0, maxHistory),
		maxHistory: maxHistory,
		prompt:     "> ",
	}
}

// SetPrompt implements PromptingInputReader.
func (r *InteractiveInputReader) SetPrompt(prompt string) {
	r.prompt = prompt
}

// ReadLine runs the textinput until Enter (line), Ctrl+C (empty line) or
// Ctrl+D on an empty line (io.EOF).
func (r *InteractiveInputReader) ReadLine() (string, error) {
	ti := textinput.New()
	ti.Prompt = r.prompt
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = 80

	m := newInputModel(ti, r.history)

	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	result, ok := finalModel.(inputModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type from bubbletea: %T", finalModel)
	}
	if result.eof {
		return "", io.EOF
	}

	input := strings.TrimSpace(result.textInput.Value())
	if input != "" {
		r.addToHistory(input)
	}
	return input, nil
}

// addToHistory appends input, skipping repeats of the latest entry.
func (r *InteractiveInputReader) addToHistory(input string) {
	if len(r.history) > 0 && r.history[len(r.history)-1] == input {
		return
	}
	r.history = append(r.history, input)
	if len(r.history) > r.maxHistory {
		r.history = r.history[1:]
	}
}

func newInputModel(ti textinput.Model, history []string) inputModel {
	return inputModel{
		textInput:    ti,
		history:      history,
		historyIndex: -1,
	}
}

// Init initializes the bubbletea model.
func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles key presses. History is walked with Up/Down; the line
// being typed is kept aside while browsing and restored past the newest
// entry.
func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit

		case tea.KeyCtrlC:
			m.textInput.SetValue("")
			m.done = true
			return m, tea.Quit

		case tea.KeyCtrlD:
			if m.textInput.Value() == "" {
				m.eof = true
				m.done = true
				return m, tea.Quit
			}
			return m, nil

		case tea.KeyUp:
			if len(m.history) == 0 {
				return m, nil
			}
			if m.historyIndex == -1 {
				m.currentInput = m.textInput.Value()
				m.historyIndex = len(m.history) - 1
			} else if m.historyIndex > 0 {
				m.historyIndex--
			}
			m.textInput.SetValue(m.history[m.historyIndex])
			m.textInput.CursorEnd()
			return m, nil

		case tea.KeyDown:
			if m.historyIndex == -1 {
				return m, nil
			}
			if m.historyIndex < len(m.history)-1 {
				m.historyIndex++
				m.textInput.SetValue(m.history[m.historyIndex])
			} else {
				m.historyIndex = -1
				m.textInput.SetValue(m.currentInput)
			}
			m.textInput.CursorEnd()
			return m, nil
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// View renders the input prompt.
func (m inputModel) View() string {
	if m.done {
		return ""
	}
	return m.textInput.View()
}

// =============================================================================
// MockInputReader Implementation (for testing)
// =============================================================================

// MockInputReader returns predetermined inputs in order, then io.EOF.
type MockInputReader struct {
	inputs []string
	index  int
}

// NewMockInputReader creates a MockInputReader.
func NewMockInputReader(inputs []string) *MockInputReader {
	return &MockInputReader{inputs: inputs}
}

// ReadLine returns the next predetermined input.
func (m *MockInputReader) ReadLine() (string, error) {
	if m.index >= len(m.inputs) {
		return "", io.EOF
	}
	line := m.inputs[m.index]
	m.index++
	return line, nil
}

// =============================================================================
// ChatRunner
// =============================================================================

// chatSession is what the runner needs from the controller.
type chatSession interface {
	SessionID() string
	Submit(ctx context.Context, text string) error
	WaitReady(ctx context.Context) error
	Reconnect() error
	Profile() profile.Snapshot
}

// Chat commands understood at the prompt. Anything else is sent.
const (
	chatCmdProfile   = "/profile"
	chatCmdReconnect = "/reconnect"
	chatCmdHelp      = "/help"
)

// ChatRunnerConfig configures a ChatRunner.
type ChatRunnerConfig struct {
	Session     chatSession
	Input       InputReader
	Renderer    ux.ChatRenderer
	Output      io.Writer
	Personality ux.PersonalityLevel
	Logger      *slog.Logger
}

// ChatRunner drives one interactive chat: prompt, read, submit, wait for
// the answer to finish, repeat.
type ChatRunner struct {
	session     chatSession
	input       InputReader
	renderer    ux.ChatRenderer
	out         io.Writer
	personality ux.PersonalityLevel
	logger      *slog.Logger
}

// NewChatRunner builds a runner. Session and Input are required.
func NewChatRunner(cfg ChatRunnerConfig) (*ChatRunner, error) {
	if cfg.Session == nil {
		return nil, errors.New("chat runner: session is required")
	}
	if cfg.Input == nil {
		return nil, errors.New("chat runner: input is required")
	}
	r := &ChatRunner{
		session:     cfg.Session,
		input:       cfg.Input,
		renderer:    cfg.Renderer,
		out:         cfg.Output,
		personality: cfg.Personality,
		logger:      cfg.Logger,
	}
	if r.renderer == nil {
		r.renderer = ux.NewBufferChatRenderer()
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.personality == "" {
		r.personality = ux.GetPersonality().Level
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r, nil
}

// Run loops until input ends, the user types exit, the session closes, or
// ctx is cancelled. Only ctx cancellation is reported as an error.
func (r *ChatRunner) Run(ctx context.Context) error {
	r.printWelcome()

	for {
		if err := r.session.WaitReady(ctx); err != nil {
			if errors.Is(err, session.ErrClosed) {
				return nil
			}
			return err
		}

		line, err := r.readLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch {
		case line == "":
			continue
		case isExitCommand(line):
			return nil
		case line == chatCmdProfile:
			r.renderer.OnProfile(profileLines(r.session.Profile()), profile.Placeholder)
			continue
		case line == chatCmdReconnect:
			if err := r.session.Reconnect(); err != nil {
				r.renderer.OnError(fmt.Sprintf("reconnect: %v", err))
			}
			continue
		case line == chatCmdHelp:
			r.printHelp()
			continue
		}

		if err := r.session.Submit(ctx, line); err != nil {
			switch {
			case errors.Is(err, submit.ErrEmptyMessage):
			case errors.Is(err, session.ErrClosed):
				return nil
			case errors.Is(err, session.ErrBusy):
				r.renderer.OnError("Still answering the previous message.")
			default:
				// The controller already surfaced the failure as an Error event.
				r.logger.Debug("submission failed", "error", err)
			}
		}
	}
}

// readLine prompts and reads one line without blocking past ctx. A read
// abandoned by cancellation finishes in the background.
func (r *ChatRunner) readLine(ctx context.Context) (string, error) {
	prompt := "> "
	if r.personality != ux.PersonalityMachine {
		prompt = ux.Styles.User.Render("> ")
	}
	if p, ok := r.input.(PromptingInputReader); ok {
		p.SetPrompt(prompt)
	} else if r.personality != ux.PersonalityMachine {
		fmt.Fprint(r.out, prompt)
	}

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.input.ReadLine()
		ch <- result{line: line, err: err}
	}()

	select {
	case res := <-ch:
		return res.line, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *ChatRunner) printWelcome() {
	if r.personality == ux.PersonalityMachine {
		fmt.Fprintf(r.out, "SESSION: %s\n", r.session.SessionID())
		return
	}
	fmt.Fprintln(r.out, ux.Styles.Title.Render(string(ux.IconLamp)+" Genie study advisor"))
	fmt.Fprintln(r.out, ux.Styles.Muted.Render("Session "+r.session.SessionID()))
	if ux.GetPersonality().ShowTips {
		fmt.Fprintln(r.out, ux.Styles.Muted.Render("Type /help for commands, exit to leave."))
	}
}

func (r *ChatRunner) printHelp() {
	lines := []string{
		chatCmdProfile + "    show what Genie knows about you",
		chatCmdReconnect + "  reconnect the live stream now",
		"exit          leave the chat",
	}
	for _, l := range lines {
		fmt.Fprintln(r.out, l)
	}
}

func isExitCommand(input string) bool {
	return input == "exit" || input == "quit"
}
