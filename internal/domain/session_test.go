package domain

import (
	"slices"
	"testing"
	"time"
)

func TestNewSessionGeneratesID(t *testing.T) {
	a := NewSession("")
	b := NewSession("")

	if a.ID == "" || b.ID == "" {
		t.Fatalf("expected generated ids, got %q and %q", a.ID, b.ID)
	}
	if a.ID == b.ID {
		t.Fatalf("expected distinct ids, both %q", a.ID)
	}
	if a.CurrentStep != FirstStep {
		t.Fatalf("current step = %d, want %d", a.CurrentStep, FirstStep)
	}
	if a.Completed() {
		t.Fatalf("new session should not be completed")
	}
}

func TestNewSessionKeepsExplicitID(t *testing.T) {
	s := NewSession("fixed")
	if s.ID != "fixed" {
		t.Fatalf("id = %q, want fixed", s.ID)
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	s := NewSession("s1")
	s.Credentials.Skills = []string{"Go"}
	s.Projects = []Project{{ID: 1, Title: "A", Technologies: []string{"Go"}}}

	c := s.Clone()
	c.Credentials.Skills[0] = "Rust"
	c.Projects[0].Technologies[0] = "Rust"
	c.Projects[0].Title = "B"

	if s.Credentials.Skills[0] != "Go" {
		t.Errorf("skills aliased: %v", s.Credentials.Skills)
	}
	if s.Projects[0].Technologies[0] != "Go" || s.Projects[0].Title != "A" {
		t.Errorf("projects aliased: %+v", s.Projects[0])
	}
}

func TestDedupeSkills(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"empty", nil, []string{}},
		{"keeps order", []string{"Go", "SQL", "Docker"}, []string{"Go", "SQL", "Docker"}},
		{"drops repeats", []string{"Go", "SQL", "Go"}, []string{"Go", "SQL"}},
		{"trims and drops blanks", []string{" Go ", "", "  ", "Go"}, []string{"Go"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DedupeSkills(tt.input)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("DedupeSkills(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestClampStep(t *testing.T) {
	tests := []struct {
		in   int
		want Step
	}{
		{-3, StepPersonalInfo},
		{0, StepPersonalInfo},
		{2, StepProjects},
		{3, StepReview},
		{9, StepReview},
	}
	for _, tt := range tests {
		if got := ClampStep(tt.in); got != tt.want {
			t.Errorf("ClampStep(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIDGeneratorSameMillisecond(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewIDGenerator(func() time.Time { return fixed })

	first := g.Next()
	second := g.Next()
	third := g.Next()

	if first != fixed.UnixMilli() {
		t.Fatalf("first id = %d, want %d", first, fixed.UnixMilli())
	}
	if second <= first || third <= second {
		t.Fatalf("ids not strictly increasing: %d %d %d", first, second, third)
	}
}

func TestIDGeneratorObserve(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g := NewIDGenerator(func() time.Time { return fixed })

	existing := fixed.UnixMilli() + 50
	g.Observe([]Project{{ID: existing}, {ID: 7}})

	if got := g.Next(); got != existing+1 {
		t.Fatalf("next after observe = %d, want %d", got, existing+1)
	}
}

func TestParseTechnologies(t *testing.T) {
	got := ParseTechnologies(" Go, ,React ,, SQL ")
	want := []string{"Go", "React", "SQL"}
	if !slices.Equal(got, want) {
		t.Fatalf("ParseTechnologies = %v, want %v", got, want)
	}
	if got := ParseTechnologies(""); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}
