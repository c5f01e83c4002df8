package wizard_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/hperssn/wizard/internal/domain"
	"github.com/hperssn/wizard/internal/gateway"
	"github.com/hperssn/wizard/internal/wizard"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	nextID   int
	sessions map[string]*domain.Session
	saved    [][]domain.Project

	initErr         error
	resumeErr       error
	updateStepErr   error
	personalInfoErr error
	credentialsErr  error
	projectsErr     error
	completeErr     error

	// block, when set, is waited on inside SavePersonalInfo.
	block chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: make(map[string]*domain.Session)}
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) count(call string) int {
	n := 0
	for _, c := range g.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (g *fakeGateway) Init(context.Context) (string, error) {
	g.record("init")
	if g.initErr != nil {
		return "", g.initErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	id := fmt.Sprintf("session-%d", g.nextID)
	g.sessions[id] = domain.NewSession(id)
	return id, nil
}

func (g *fakeGateway) Resume(_ context.Context, id string) (*domain.Session, error) {
	g.record("resume")
	if g.resumeErr != nil {
		return nil, g.resumeErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return s.Clone(), nil
}

func (g *fakeGateway) UpdateStep(_ context.Context, id string, step domain.Step) error {
	g.record("updateStep")
	if g.updateStepErr != nil {
		return g.updateStepErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[id]; ok {
		s.CurrentStep = step
	}
	return nil
}

func (g *fakeGateway) SavePersonalInfo(_ context.Context, id string, p gateway.PersonalInfoPayload) (domain.PersonalInfo, error) {
	g.record("savePersonalInfo")
	if g.block != nil {
		<-g.block
	}
	if g.personalInfoErr != nil {
		return domain.PersonalInfo{}, g.personalInfoErr
	}

	info := domain.PersonalInfo{
		FullName:    p.FullName,
		Email:       p.Email,
		PhoneNumber: p.PhoneNumber,
		Documents:   []domain.AttachmentRef{},
	}
	for _, key := range p.Keep {
		info.Documents = append(info.Documents, domain.AttachmentRef{OriginalName: key, StorageKey: key})
	}
	for _, f := range p.Documents {
		info.Documents = append(info.Documents, domain.AttachmentRef{OriginalName: f.Name, Size: f.Size, StorageKey: "key-" + f.Name})
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[id]; ok {
		s.PersonalInfo = info
	}
	return info, nil
}

func (g *fakeGateway) SaveCredentials(_ context.Context, id string, p gateway.CredentialsPayload) (domain.Credentials, error) {
	g.record("saveCredentials")
	if g.credentialsErr != nil {
		return domain.Credentials{}, g.credentialsErr
	}

	creds := domain.Credentials{Skills: append([]string{}, p.Skills...), Certifications: []domain.AttachmentRef{}}
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.sessions[id]; ok {
		s.Credentials = creds
	}
	return creds, nil
}

func (g *fakeGateway) SaveProjects(_ context.Context, id string, projects []domain.Project) error {
	g.record("saveProjects")
	if g.projectsErr != nil {
		return g.projectsErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saved = append(g.saved, domain.CloneProjects(projects))
	if s, ok := g.sessions[id]; ok {
		s.Projects = domain.CloneProjects(projects)
	}
	return nil
}

func (g *fakeGateway) Complete(_ context.Context, id string) (domain.CompletedProfile, error) {
	g.record("complete")
	if g.completeErr != nil {
		return domain.CompletedProfile{}, g.completeErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[id]
	if !ok {
		return domain.CompletedProfile{}, gateway.ErrNotFound
	}
	delete(g.sessions, id)
	return s.Profile(), nil
}

func (g *fakeGateway) Discard(_ context.Context, id string) error {
	g.record("discard")
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, id)
	return nil
}

type notice struct {
	severity wizard.Severity
	message  string
}

type fakePresenter struct {
	mu sync.Mutex

	inputs map[domain.Step]wizard.StepInput

	collected   []domain.Step
	rendered    []domain.Step
	repopulated map[domain.Step]wizard.StepData
	saved       []domain.Step
	notices     []notice
	fieldErrors map[string]string
	summaries   []wizard.Summary
	halted      string
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{
		inputs:      make(map[domain.Step]wizard.StepInput),
		repopulated: make(map[domain.Step]wizard.StepData),
		fieldErrors: make(map[string]string),
	}
}

func (p *fakePresenter) RenderStep(step domain.Step) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rendered = append(p.rendered, step)
}

func (p *fakePresenter) Notify(severity wizard.Severity, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, notice{severity: severity, message: message})
}

func (p *fakePresenter) FieldError(field, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fieldErrors[field] = message
}

func (p *fakePresenter) ClearFieldErrors() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fieldErrors = make(map[string]string)
}

func (p *fakePresenter) Collect(step domain.Step) wizard.StepInput {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collected = append(p.collected, step)
	return p.inputs[step]
}

func (p *fakePresenter) Repopulate(step domain.Step, data wizard.StepData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repopulated[step] = data
}

func (p *fakePresenter) StepSaved(step domain.Step, _ wizard.StepData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, step)
}

func (p *fakePresenter) ShowSummary(summary wizard.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, summary)
}

func (p *fakePresenter) Halt(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.halted = message
}

func (p *fakePresenter) lastNotice() notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.notices) == 0 {
		return notice{}
	}
	return p.notices[len(p.notices)-1]
}

func (p *fakePresenter) hasNotice(severity wizard.Severity, message string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.notices {
		if n.severity == severity && n.message == message {
			return true
		}
	}
	return false
}
