package main

import (
	"strings"
	"testing"
)

func TestGateFromFlagsResolvesImmediately(t *testing.T) {
	gate, err := gateFromFlags("timestamp", 9.5, "")
	if err != nil {
		t.Fatalf("gateFromFlags: %v", err)
	}
	if !gate.Resolved() {
		t.Fatal("gate left unresolved, publish would block")
	}
}

func TestGateFromFlagsDefaultsToAuto(t *testing.T) {
	gate, err := gateFromFlags("  ", 0, "")
	if err != nil {
		t.Fatalf("gateFromFlags: %v", err)
	}
	if !gate.Resolved() {
		t.Fatal("gate left unresolved")
	}
}

func TestGateFromFlagsRejectsInvalidCombination(t *testing.T) {
	if _, err := gateFromFlags("custom", 0, ""); err == nil {
		t.Fatal("expected error for custom strategy without an image")
	}
	if _, err := gateFromFlags("sideways", 0, ""); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{250 << 20, "250.0 MiB"},
		{5 << 30, "5.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.bytes); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestRenderTableIncludesHeadersAndRows(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Title"},
		[][]string{{"abc", "Keynote"}, {"def", "Demo"}},
	)
	for _, want := range []string{"ID", "Title", "abc", "Keynote", "def", "Demo"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestNewRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"publish", "status", "show", "resolve", "thumbnail", "test-notify", "config"} {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("root command missing %q subcommand", name)
		}
	}
}
