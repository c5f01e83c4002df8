package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AttachmentRef struct {
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	StorageKey   string `json:"storageKey"`
}

type PersonalInfo struct {
	FullName    string          `json:"fullName"`
	Email       string          `json:"email,omitempty"`
	PhoneNumber string          `json:"phoneNumber"`
	Documents   []AttachmentRef `json:"documents"`
}

// IsZero reports whether step 0 was never saved.
func (p PersonalInfo) IsZero() bool {
	return p.FullName == "" && p.PhoneNumber == "" && p.Email == "" && len(p.Documents) == 0
}

type Credentials struct {
	Skills         []string        `json:"skills"`
	Certifications []AttachmentRef `json:"certifications"`
}

func (c Credentials) IsZero() bool {
	return len(c.Skills) == 0 && len(c.Certifications) == 0
}

type Session struct {
	ID           string       `json:"id"`
	CurrentStep  Step         `json:"currentStep"`
	PersonalInfo PersonalInfo `json:"personalInfo"`
	Credentials  Credentials  `json:"credentials"`
	Projects     []Project    `json:"projects"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
}

// CompletedProfile is the record returned once a session is submitted.
type CompletedProfile struct {
	SessionID    string       `json:"sessionId"`
	PersonalInfo PersonalInfo `json:"personalInfo"`
	Credentials  Credentials  `json:"credentials"`
	Projects     []Project    `json:"projects"`
	CompletedAt  time.Time    `json:"completedAt"`
}

func NewSession(id string) *Session {
	if id == "" {
		id = uuid.New().String()
	}

	now := time.Now().UTC()

	return &Session{
		ID:          id,
		CurrentStep: FirstStep,
		Projects:    []Project{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Session) Completed() bool {
	return s.CompletedAt != nil
}

// Profile snapshots the session as a submitted profile.
func (s *Session) Profile() CompletedProfile {
	c := s.Clone()
	p := CompletedProfile{
		SessionID:    c.ID,
		PersonalInfo: c.PersonalInfo,
		Credentials:  c.Credentials,
		Projects:     c.Projects,
	}
	if c.CompletedAt != nil {
		p.CompletedAt = *c.CompletedAt
	}
	return p
}

// Clone returns a deep copy; callers may mutate it freely.
func (s *Session) Clone() *Session {
	copy := *s
	copy.PersonalInfo.Documents = slices.Clone(s.PersonalInfo.Documents)
	copy.Credentials.Skills = slices.Clone(s.Credentials.Skills)
	copy.Credentials.Certifications = slices.Clone(s.Credentials.Certifications)
	copy.Projects = CloneProjects(s.Projects)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		copy.CompletedAt = &t
	}
	return &copy
}

// DedupeSkills trims entries and drops blanks and repeats, keeping first-seen order.
func DedupeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		if _, ok := seen[skill]; ok {
			continue
		}
		seen[skill] = struct{}{}
		out = append(out, skill)
	}
	return out
}
