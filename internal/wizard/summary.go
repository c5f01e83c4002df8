package wizard

import (
	"slices"

	"github.com/hperssn/wizard/internal/domain"
	"github.com/hperssn/wizard/internal/upload"
)

// Summary is the read-only review shown on the last step.
type Summary struct {
	FullName       string
	Email          string
	PhoneNumber    string
	Documents      []AttachmentLine
	Skills         []string
	Certifications []AttachmentLine
	Projects       []ProjectLine
}

type AttachmentLine struct {
	Name string
	Size string
}

type ProjectLine struct {
	Title        string
	URL          string
	Period       string
	Technologies []string
}

func (s Summary) HasPersonalInfo() bool {
	return s.FullName != "" || s.PhoneNumber != ""
}

func (s Summary) HasCredentials() bool {
	return len(s.Skills) > 0 || len(s.Certifications) > 0
}

func buildSummary(data StepData) Summary {
	s := Summary{
		FullName:       data.PersonalInfo.FullName,
		Email:          data.PersonalInfo.Email,
		PhoneNumber:    data.PersonalInfo.PhoneNumber,
		Documents:      attachmentLines(data.PersonalInfo.Documents),
		Skills:         slices.Clone(data.Credentials.Skills),
		Certifications: attachmentLines(data.Credentials.Certifications),
		Projects:       make([]ProjectLine, 0, len(data.Projects)),
	}

	for _, p := range data.Projects {
		end := p.EndDate
		if end == "" {
			end = domain.Present
		}
		s.Projects = append(s.Projects, ProjectLine{
			Title:        p.Title,
			URL:          p.URL,
			Period:       p.StartDate + " - " + end,
			Technologies: slices.Clone(p.Technologies),
		})
	}
	return s
}

func attachmentLines(refs []domain.AttachmentRef) []AttachmentLine {
	lines := make([]AttachmentLine, len(refs))
	for i, ref := range refs {
		lines[i] = AttachmentLine{Name: ref.OriginalName, Size: upload.FormatSize(ref.Size)}
	}
	return lines
}
