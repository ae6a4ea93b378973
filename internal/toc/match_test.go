package toc

import (
	"reflect"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		line  string
		kind  MatchKind
		title string
		page  string
	}{
		{"Introduction .......... 1", LeaderMatch, "Introduction", "1"},
		{"Chapter 1. Basics .......... 5", LeaderMatch, "Chapter 1. Basics", "5"},
		{"Глава 2. Основы . . . . 17", LeaderMatch, "Глава 2. Основы", "17"},
		{"Summary\t\t12", LeaderMatch, "Summary", "12"},
		{"Index____88", LeaderMatch, "Index", "88"},
		{"Results     104", LeaderMatch, "Results", "104"},
		{"6 About the author", NumberedHeading, "About the author", "6"},
		{"Chapter 3 Results 45", LooseMatch, "Chapter 3 Results", "45"},
		{"1.1 Overview 6", LooseMatch, "1.1 Overview", "6"},
		{"§ 4 Scope 30", LooseMatch, "§ 4 Scope", "30"},
		{"Just some body text", NoMatch, "", ""},
		{"23", NoMatch, "", ""},
		{"Chapter 1 Origins", NoMatch, "", ""},
	}
	for _, tt := range tests {
		m := Classify(tt.line)
		if m.Kind != tt.kind {
			t.Errorf("Classify(%q): expected kind %s, got %s", tt.line, tt.kind, m.Kind)
			continue
		}
		if m.Title != tt.title || m.Page != tt.page {
			t.Errorf("Classify(%q): expected (%q, %q), got (%q, %q)", tt.line, tt.title, tt.page, m.Title, m.Page)
		}
		if m.HasPage() != (tt.kind != NoMatch) {
			t.Errorf("Classify(%q): HasPage mismatch", tt.line)
		}
	}
}

func TestClassify_LeaderTakesPrecedence(t *testing.T) {
	// Both the leader and the loose pattern fit; the leader wins.
	m := Classify("Chapter 2 Growth .... 9")
	if m.Kind != LeaderMatch {
		t.Fatalf("expected leader match, got %s", m.Kind)
	}
	if m.Title != "Chapter 2 Growth" {
		t.Errorf("expected %q, got %q", "Chapter 2 Growth", m.Title)
	}
}

func TestGuessLevel(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Chapter 1. Basics", 1},
		{"Introduction", 1},
		{"Part Two", 1},
		{"Глава 3", 1},
		{"Об авторе", 1},
		{"2. Methods", 1},
		{"1.1 Overview", 2},
		{"Particle physics", 2},
		{"Appendix A", 2},
		{"Departments", 2},
	}
	for _, tt := range tests {
		if got := GuessLevel(tt.in); got != tt.want {
			t.Errorf("GuessLevel(%q): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

func TestIsStructuralStart(t *testing.T) {
	yes := []string{"Chapter 4", "§ 2 Scope", "3.2 Results", "IV. Return", "Appendix A", "2. Methods", "Введение", "Preface"}
	no := []string{"Particle", "Overview", "2024 was a year", "Chapters are long", "prefaced by"}
	for _, s := range yes {
		if !IsStructuralStart(s) {
			t.Errorf("expected %q to be a structural start", s)
		}
	}
	for _, s := range no {
		if IsStructuralStart(s) {
			t.Errorf("expected %q not to be a structural start", s)
		}
	}
}

func TestSplitRunTogether(t *testing.T) {
	got := splitRunTogether("Introduction 3.1 Packages 3.2 Modules")
	want := []string{"Introduction", "3.1 Packages", "3.2 Modules"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
	single := splitRunTogether("Chapter 3 Title")
	if len(single) != 1 || single[0] != "Chapter 3 Title" {
		t.Errorf("expected unchanged line, got %q", single)
	}
}
