package parser

import (
	"strings"
	"testing"
)

func TestStripRunningHeaders(t *testing.T) {
	var lines []string
	for i := 0; i < 12; i++ {
		lines = append(lines, "  ACME Corp Annual Report 2024  ", "short", "unique body line number "+strings.Repeat("x", i))
		lines = append(lines, "filler", "filler")
	}
	out := StripRunningHeaders(strings.Join(lines, "\n"))

	if strings.Contains(out, "ACME Corp") {
		t.Error("expected repeated long line to be removed")
	}
	if strings.Count(out, "short") != 12 {
		t.Errorf("expected short repeated lines to stay, got %d", strings.Count(out, "short"))
	}
	if !strings.Contains(out, "unique body line number xxxxx") {
		t.Error("expected unique lines to stay")
	}
}

func TestStripRunningHeaders_ShortText(t *testing.T) {
	text := strings.Repeat("A long repeated header line here\n", 10)
	if got := StripRunningHeaders(text); got != text {
		t.Error("expected texts under 60 lines to be unchanged")
	}
}

func TestStripRunningHeaders_FourRepeatsKept(t *testing.T) {
	var lines []string
	for i := 0; i < 4; i++ {
		lines = append(lines, "Chapter heading repeated four times")
	}
	for i := 0; i < 60; i++ {
		lines = append(lines, strings.Repeat("y", i%7))
	}
	out := StripRunningHeaders(strings.Join(lines, "\n"))
	if strings.Count(out, "Chapter heading repeated four times") != 4 {
		t.Error("expected a line repeated 4 times to stay")
	}
}
