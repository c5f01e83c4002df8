package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"

	"github.com/hperssn/wizard/internal/domain"
	"github.com/hperssn/wizard/internal/upload"
	"github.com/hperssn/wizard/internal/validate"
	"github.com/hperssn/wizard/internal/wizard"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	dangerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

var stepTitles = map[domain.Step]string{
	domain.StepPersonalInfo: "Personal information",
	domain.StepCredentials:  "Credentials",
	domain.StepProjects:     "Projects",
	domain.StepReview:       "Review & submit",
}

// terminal is the wizard.Presenter of wizardctl. Field values come from the
// draft; output is a plain line log.
type terminal struct {
	out   io.Writer
	fs    afero.Fs
	draft *Draft
}

var _ wizard.Presenter = (*terminal)(nil)

func newTerminal(out io.Writer, fs afero.Fs, draft *Draft) *terminal {
	return &terminal{out: out, fs: fs, draft: draft}
}

func (t *terminal) RenderStep(step domain.Step) {
	fmt.Fprintln(t.out, headerStyle.Render(fmt.Sprintf("Step %d of %d: %s", step.Number(), domain.StepCount, stepTitles[step])))
}

func (t *terminal) Notify(severity wizard.Severity, message string) {
	style := dangerStyle
	switch severity {
	case wizard.SeveritySuccess:
		style = successStyle
	case wizard.SeverityWarning:
		style = warningStyle
	}
	fmt.Fprintf(t.out, "%s %s\n", style.Render(strings.ToUpper(severity.String())), message)
}

func (t *terminal) FieldError(field, message string) {
	fmt.Fprintf(t.out, "  %s %s\n", dangerStyle.Render(field+":"), message)
}

// ClearFieldErrors is a no-op; terminal output is append only.
func (t *terminal) ClearFieldErrors() {}

func (t *terminal) Collect(step domain.Step) wizard.StepInput {
	switch step {
	case domain.StepPersonalInfo:
		p := t.draft.PersonalInfo
		return wizard.StepInput{
			Fields: validate.Fields{
				FullName:    p.FullName,
				Email:       p.Email,
				PhoneNumber: p.PhoneNumber,
			},
			Attachments: t.attachments(p.Attach),
			Remove:      p.Remove,
		}
	case domain.StepCredentials:
		c := t.draft.Credentials
		return wizard.StepInput{
			Fields:      validate.Fields{Skills: c.Skills},
			Attachments: t.attachments(c.Attach),
			Remove:      c.Remove,
		}
	case domain.StepReview:
		return wizard.StepInput{Fields: validate.Fields{TermsAccepted: t.draft.TermsAccepted}}
	default:
		return wizard.StepInput{}
	}
}

// Repopulate fills draft fields that are still blank. Values typed but not
// yet saved are kept.
func (t *terminal) Repopulate(step domain.Step, data wizard.StepData) {
	switch step {
	case domain.StepPersonalInfo:
		p := &t.draft.PersonalInfo
		if p.FullName == "" {
			p.FullName = data.PersonalInfo.FullName
		}
		if p.Email == "" {
			p.Email = data.PersonalInfo.Email
		}
		if p.PhoneNumber == "" {
			p.PhoneNumber = data.PersonalInfo.PhoneNumber
		}
	case domain.StepCredentials:
		if len(t.draft.Credentials.Skills) == 0 {
			t.draft.Credentials.Skills = append([]string(nil), data.Credentials.Skills...)
		}
	}
}

// StepSaved replaces the draft of step with what the server stored.
func (t *terminal) StepSaved(step domain.Step, data wizard.StepData) {
	switch step {
	case domain.StepPersonalInfo:
		t.draft.PersonalInfo = PersonalDraft{
			FullName:    data.PersonalInfo.FullName,
			Email:       data.PersonalInfo.Email,
			PhoneNumber: data.PersonalInfo.PhoneNumber,
		}
	case domain.StepCredentials:
		t.draft.Credentials = CredentialDraft{
			Skills: append([]string(nil), data.Credentials.Skills...),
		}
	}
}

func (t *terminal) ShowSummary(s wizard.Summary) {
	w := t.out
	fmt.Fprintln(w, headerStyle.Render("Personal information"))
	if s.HasPersonalInfo() {
		fmt.Fprintf(w, "  Name:  %s\n", s.FullName)
		if s.Email != "" {
			fmt.Fprintf(w, "  Email: %s\n", s.Email)
		}
		fmt.Fprintf(w, "  Phone: %s\n", s.PhoneNumber)
		printAttachments(w, "Documents", s.Documents)
	} else {
		fmt.Fprintln(w, mutedStyle.Render("  not provided"))
	}

	fmt.Fprintln(w, headerStyle.Render("Credentials"))
	if s.HasCredentials() {
		fmt.Fprintf(w, "  Skills: %s\n", strings.Join(s.Skills, ", "))
		printAttachments(w, "Certifications", s.Certifications)
	} else {
		fmt.Fprintln(w, mutedStyle.Render("  not provided"))
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("Projects (%d)", len(s.Projects))))
	for _, p := range s.Projects {
		fmt.Fprintf(w, "  %s  %s\n", p.Title, mutedStyle.Render(p.Period))
		if len(p.Technologies) > 0 {
			fmt.Fprintf(w, "    %s\n", strings.Join(p.Technologies, ", "))
		}
	}
}

func (t *terminal) Halt(message string) {
	fmt.Fprintln(t.out, dangerStyle.Render(message))
}

func printAttachments(w io.Writer, label string, lines []wizard.AttachmentLine) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s:\n", label)
	for _, l := range lines {
		fmt.Fprintf(w, "    %s (%s)\n", l.Name, l.Size)
	}
}

// attachments turns draft paths into upload candidates. Unreadable paths
// are reported and skipped.
func (t *terminal) attachments(paths []string) []upload.File {
	files := make([]upload.File, 0, len(paths))
	for _, p := range paths {
		f, err := fileFromPath(t.fs, p)
		if err != nil {
			t.Notify(wizard.SeverityWarning, fmt.Sprintf("File %q cannot be read: %v", p, err))
			continue
		}
		files = append(files, f)
	}
	return files
}

func fileFromPath(fs afero.Fs, path string) (upload.File, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return upload.File{}, err
	}
	if info.IsDir() {
		return upload.File{}, fmt.Errorf("%s is a directory", path)
	}

	return upload.File{
		Name:        filepath.Base(path),
		ContentType: upload.DetectContentType(path),
		Size:        info.Size(),
		Open: func() (io.ReadCloser, error) {
			return fs.Open(path)
		},
	}, nil
}
