package wizard

import (
	"context"

	"github.com/hperssn/wizard/internal/domain"
	"github.com/hperssn/wizard/internal/gateway"
	"github.com/hperssn/wizard/internal/upload"
	"github.com/hperssn/wizard/internal/validate"
)

type Severity int

const (
	SeveritySuccess Severity = iota
	SeverityWarning
	SeverityDanger
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	default:
		return "danger"
	}
}

// StepInput is what the user entered on a step's pane.
type StepInput struct {
	Fields validate.Fields
	// Attachments are new files picked for upload.
	Attachments []upload.File
	// Remove lists storage keys of saved attachments the user dropped.
	Remove []string
}

// StepData mirrors the saved parts of the session.
type StepData struct {
	PersonalInfo domain.PersonalInfo
	Credentials  domain.Credentials
	Projects     []domain.Project
}

// Presenter is everything the controller needs from a front end.
type Presenter interface {
	RenderStep(step domain.Step)
	Notify(severity Severity, message string)
	FieldError(field, message string)
	ClearFieldErrors()
	Collect(step domain.Step) StepInput
	Repopulate(step domain.Step, data StepData)
	// StepSaved reports that the server accepted the data of step.
	StepSaved(step domain.Step, data StepData)
	ShowSummary(summary Summary)
	// Halt shows a persistent notice; no step work is possible afterwards.
	Halt(message string)
}

// Gateway is the remote session API.
type Gateway interface {
	Init(ctx context.Context) (string, error)
	Resume(ctx context.Context, id string) (*domain.Session, error)
	UpdateStep(ctx context.Context, id string, step domain.Step) error
	SavePersonalInfo(ctx context.Context, id string, p gateway.PersonalInfoPayload) (domain.PersonalInfo, error)
	SaveCredentials(ctx context.Context, id string, p gateway.CredentialsPayload) (domain.Credentials, error)
	SaveProjects(ctx context.Context, id string, projects []domain.Project) error
	Complete(ctx context.Context, id string) (domain.CompletedProfile, error)
	Discard(ctx context.Context, id string) error
}

var _ Gateway = (*gateway.Client)(nil)
