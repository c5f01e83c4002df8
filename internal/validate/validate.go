// Package validate holds the pure field rules of the wizard. Nothing here
// touches presentation; callers decide how to surface a Result.
package validate

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hperssn/wizard/internal/domain"
)

const (
	FieldFullName    = "fullName"
	FieldEmail       = "email"
	FieldPhoneNumber = "phoneNumber"

	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStartDate   = "startDate"
	FieldEndDate     = "endDate"
	FieldProjectID   = "id"
)

const (
	minFullNameLength = 2
	minPhoneDigits    = 10
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Fields are the raw values collected for a step. Only the members relevant
// to the step being validated are read.
type Fields struct {
	FullName      string   `yaml:"fullName,omitempty"`
	Email         string   `yaml:"email,omitempty"`
	PhoneNumber   string   `yaml:"phoneNumber,omitempty"`
	Skills        []string `yaml:"skills,omitempty"`
	TermsAccepted bool     `yaml:"termsAccepted,omitempty"`
}

// Violation is a single failed rule. An empty Field marks a step-level
// reason with no bindable input.
type Violation struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (v Violation) Global() bool {
	return v.Field == ""
}

type Result struct {
	Step       domain.Step
	Violations []Violation
}

func (r Result) Valid() bool {
	return len(r.Violations) == 0
}

// Reason joins all violation messages.
func (r Result) Reason() string {
	msgs := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		msgs[i] = v.Message
	}
	return strings.Join(msgs, "; ")
}

func (r *Result) add(field, message string) {
	r.Violations = append(r.Violations, Violation{Field: field, Message: message})
}

// Step checks the submit rules of one wizard step.
func Step(step domain.Step, f Fields) Result {
	res := Result{Step: step}

	switch step {
	case domain.StepPersonalInfo:
		personalInfo(&res, f)
	case domain.StepCredentials:
		if len(domain.DedupeSkills(f.Skills)) == 0 {
			res.add("", "Please select at least one skill")
		}
	case domain.StepProjects:
		// projects are optional
	case domain.StepReview:
		if !f.TermsAccepted {
			res.add("", "Please accept the terms and conditions to continue")
		}
	}

	return res
}

func personalInfo(res *Result, f Fields) {
	name := strings.TrimSpace(f.FullName)
	switch {
	case name == "":
		res.add(FieldFullName, "Full name is required")
	case utf8.RuneCountInString(name) < minFullNameLength:
		res.add(FieldFullName, "Full name must be at least 2 characters")
	}

	// Submit-time rule: at least 10 digits. NormalizePhone applies the
	// separate per-keystroke 11..15 rule.
	phone := strings.TrimSpace(f.PhoneNumber)
	switch {
	case phone == "":
		res.add(FieldPhoneNumber, "Phone number is required")
	case !allDigits(phone) || len(phone) < minPhoneDigits:
		res.add(FieldPhoneNumber, "Please enter a valid phone number (at least 10 digits)")
	}

	if email := strings.TrimSpace(f.Email); email != "" && !ValidEmail(email) {
		res.add(FieldEmail, "Please enter a valid email address")
	}
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// FieldsFromSession rebuilds step fields from already-saved session data.
func FieldsFromSession(pi domain.PersonalInfo, cr domain.Credentials) Fields {
	return Fields{
		FullName:    pi.FullName,
		Email:       pi.Email,
		PhoneNumber: pi.PhoneNumber,
		Skills:      cr.Skills,
	}
}

// ProjectDraft checks the add-project form.
func ProjectDraft(d domain.ProjectDraft) Result {
	res := Result{Step: domain.StepProjects}

	if strings.TrimSpace(d.Title) == "" {
		res.add(FieldTitle, "Project title is required")
	}
	if strings.TrimSpace(d.Description) == "" {
		res.add(FieldDescription, "Project description is required")
	}

	start, startOK := dateField(&res, FieldStartDate, d.StartDate, "Start date is required")

	if d.Current {
		return res
	}
	end, endOK := dateField(&res, FieldEndDate, d.EndDate, "End date is required for completed projects")
	if startOK && endOK && start.After(end) {
		res.add(FieldEndDate, "End date cannot be before start date")
	}
	return res
}

// Project checks a stored project record.
func Project(p domain.Project) Result {
	res := Result{Step: domain.StepProjects}

	if strings.TrimSpace(p.Title) == "" {
		res.add(FieldTitle, "Project title is required")
	}
	if strings.TrimSpace(p.Description) == "" {
		res.add(FieldDescription, "Project description is required")
	}
	start, startOK := dateField(&res, FieldStartDate, p.StartDate, "Start date is required")

	if p.EndDate == "" || p.EndDate == domain.Present {
		return res
	}
	end, err := time.Parse(domain.DateLayout, p.EndDate)
	if err != nil {
		res.add(FieldEndDate, "End date must be a date (YYYY-MM-DD) or Present")
		return res
	}
	if startOK && start.After(end) {
		res.add(FieldEndDate, "End date cannot be before start date")
	}
	return res
}

// Projects checks every record and the uniqueness of ids.
func Projects(projects []domain.Project) Result {
	res := Result{Step: domain.StepProjects}
	seen := make(map[int64]struct{}, len(projects))
	for _, p := range projects {
		if _, dup := seen[p.ID]; dup {
			res.add(FieldProjectID, "Duplicate project id")
			continue
		}
		seen[p.ID] = struct{}{}
		res.Violations = append(res.Violations, Project(p).Violations...)
	}
	return res
}

func dateField(res *Result, field, raw, requiredMsg string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		res.add(field, requiredMsg)
		return time.Time{}, false
	}
	t, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		res.add(field, "Date must use the YYYY-MM-DD format")
		return time.Time{}, false
	}
	return t, true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
