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
	"testing"
)

func TestParsePersonalityLevel(t *testing.T) {
	tests := []struct {
		input string
		want  PersonalityLevel
	}{
		{"full", PersonalityFull},
		{"F", PersonalityFull},
		{"standard", PersonalityStandard},
		{"std", PersonalityStandard},
		{"minimal", PersonalityMinimal},
		{" min ", PersonalityMinimal},
		{"machine", PersonalityMachine},
		{"quiet", PersonalityMachine},
		{"q", PersonalityMachine},
		{"", PersonalityStandard},
		{"loud", PersonalityStandard},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParsePersonalityLevel(tt.input); got != tt.want {
				t.Errorf("ParsePersonalityLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDefaultPersonality(t *testing.T) {
	p := DefaultPersonality()
	if p.Level != PersonalityFull {
		t.Errorf("expected full, got %v", p.Level)
	}
	if !p.ShowTips {
		t.Error("expected tips on by default")
	}
}

func TestSetPersonality_RoundTrip(t *testing.T) {
	old := GetPersonality()
	defer SetPersonality(old)

	SetPersonality(Personality{Level: PersonalityMinimal, ShowTips: false})
	got := GetPersonality()
	if got.Level != PersonalityMinimal || got.ShowTips {
		t.Errorf("unexpected personality %+v", got)
	}

	SetPersonalityLevel(PersonalityMachine)
	if GetPersonality().Level != PersonalityMachine {
		t.Error("SetPersonalityLevel did not apply")
	}
	if GetPersonality().ShowTips {
		t.Error("SetPersonalityLevel should not touch ShowTips")
	}
}

func TestInitPersonality_EnvWins(t *testing.T) {
	old := GetPersonality()
	defer SetPersonality(old)

	t.Setenv(PersonalityEnv, "minimal")
	InitPersonality("full")
	if GetPersonality().Level != PersonalityMinimal {
		t.Errorf("expected env override, got %v", GetPersonality().Level)
	}
}

func TestInitPersonality_NonTerminalIsMachine(t *testing.T) {
	if isTerminal() {
		t.Skip("stdout is a terminal")
	}
	old := GetPersonality()
	defer SetPersonality(old)

	t.Setenv(PersonalityEnv, "")
	InitPersonality("full")
	if GetPersonality().Level != PersonalityMachine {
		t.Errorf("expected machine for non-tty stdout, got %v", GetPersonality().Level)
	}
	if IsInteractive() {
		t.Error("non-tty stdout must not be interactive")
	}
}

func TestShouldShow(t *testing.T) {
	old := GetPersonality()
	defer SetPersonality(old)

	SetPersonalityLevel(PersonalityMachine)
	if ShouldShowProgress() || ShouldShowColors() {
		t.Error("machine mode shows no progress or colors")
	}

	SetPersonalityLevel(PersonalityMinimal)
	if !ShouldShowProgress() || !ShouldShowColors() {
		t.Error("minimal mode shows progress and colors")
	}
}
