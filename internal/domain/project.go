package domain

import (
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	// Present marks a project that is still ongoing.
	Present = "Present"

	DateLayout = "2006-01-02"
)

type Project struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	URL          string   `json:"url,omitempty"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate,omitempty"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
}

func (p Project) Ongoing() bool {
	return p.EndDate == Present
}

func CloneProjects(projects []Project) []Project {
	if projects == nil {
		return nil
	}
	out := make([]Project, len(projects))
	for i, p := range projects {
		p.Technologies = slices.Clone(p.Technologies)
		out[i] = p
	}
	return out
}

// ParseTechnologies splits a comma separated list, dropping blank entries.
func ParseTechnologies(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IDGenerator hands out project ids derived from the wall clock in
// milliseconds. Ids are strictly increasing per generator, so two projects
// created within the same millisecond never share an id.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

func (g *IDGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// Observe raises the floor so later ids exceed every id already in use.
func (g *IDGenerator) Observe(projects []Project) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, p := range projects {
		if p.ID > g.last {
			g.last = p.ID
		}
	}
}

// ProjectDraft holds the raw values of the add-project form.
type ProjectDraft struct {
	Title        string `json:"title" yaml:"title"`
	URL          string `json:"url,omitempty" yaml:"url,omitempty"`
	StartDate    string `json:"startDate" yaml:"startDate"`
	EndDate      string `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	Current      bool   `json:"current,omitempty" yaml:"current,omitempty"`
	Description  string `json:"description" yaml:"description"`
	Technologies string `json:"technologies,omitempty" yaml:"technologies,omitempty"`
}

// Build turns a validated draft into a project with the given id.
func (d ProjectDraft) Build(id int64) Project {
	end := strings.TrimSpace(d.EndDate)
	if d.Current {
		end = Present
	}
	return Project{
		ID:           id,
		Title:        strings.TrimSpace(d.Title),
		URL:          strings.TrimSpace(d.URL),
		StartDate:    strings.TrimSpace(d.StartDate),
		EndDate:      end,
		Description:  strings.TrimSpace(d.Description),
		Technologies: ParseTechnologies(d.Technologies),
	}
}
