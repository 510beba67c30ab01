// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the genie CLI: the color
// palette, markup rendering, recommendation cards, the profile panel, the
// progress timeline, and the chat renderers that put them on screen.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Genie color palette - warm lamp golds over midnight purples
var (
	ColorGold       = lipgloss.Color("#F5C542") // Gold - highlights, brand
	ColorAmber      = lipgloss.Color("#E0A526") // Amber - interactive elements
	ColorViolet     = lipgloss.Color("#8E6BD8") // Violet - assistant text accents
	ColorIndigo     = lipgloss.Color("#5B47A8") // Indigo - borders
	ColorMidnight   = lipgloss.Color("#2A2140") // Midnight - muted backgrounds
	ColorSlate      = lipgloss.Color("#6B6580") // Slate - muted text
	ColorSuccess    = lipgloss.Color("#3DD68C") // Green for connected, complete
	ColorWarning    = lipgloss.Color("#F4D03F") // Amber for warnings
	ColorError      = lipgloss.Color("#E74C3C") // Red for errors, offline
	ColorMuted      = lipgloss.Color("#6B6580")
	ColorUserAccent = lipgloss.Color("#4FB3F6") // Blue for the user's own messages
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	// Text styles
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Link      lipgloss.Style

	// Box styles
	Box        lipgloss.Style
	CardBox    lipgloss.Style
	ProfileBox lipgloss.Style
	ErrorBox   lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorGold),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorViolet),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorGold).Bold(true),
	User:      lipgloss.NewStyle().Foreground(ColorUserAccent).Bold(true),
	Assistant: lipgloss.NewStyle().Foreground(ColorViolet).Bold(true),
	Link:      lipgloss.NewStyle().Foreground(ColorAmber).Underline(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorIndigo).
		Padding(0, 1),
	CardBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAmber).
		Padding(0, 1).
		Width(60),
	ProfileBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorViolet).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess  Icon = "✓"
	IconWarning  Icon = "⚠"
	IconError    Icon = "✗"
	IconPending  Icon = "○"
	IconActive   Icon = "●"
	IconArrow    Icon = "→"
	IconBullet   Icon = "•"
	IconLamp     Icon = "🪔"
	IconSparkles Icon = "✨"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	case IconActive:
		return Styles.Highlight.Render(string(i))
	default:
		return string(i)
	}
}

// Print helpers that respect personality level

// Title prints a styled title
func Title(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func Success(text string) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stdout, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func Warning(text string) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message
func Error(text string) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconError.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func Info(text string) {
	p := GetPersonality()
	switch p.Level {
	case PersonalityMachine:
		fmt.Println(text)
	default:
		fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
	}
}

// Muted prints muted/secondary text
func Muted(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// Box prints text in a rounded box
func Box(title, content string) {
	FBox(os.Stdout, title, content)
}

// FBox is Box with an explicit writer.
func FBox(w io.Writer, title, content string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(w, "%s: %s\n", title, content)
		return
	}
	boxStyle := Styles.Box.Width(60)
	titleLine := Styles.Title.Render(title)
	fmt.Fprintln(w, boxStyle.Render(titleLine+"\n"+content))
}

// KeyValue prints an aligned "key: value" line.
func KeyValue(key, value string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Printf("%s=%s\n", strings.ToLower(strings.ReplaceAll(key, " ", "_")), value)
		return
	}
	fmt.Printf("%s %s\n", Styles.Muted.Render(fmt.Sprintf("%-12s", key+":")), value)
}
