// Package wizard drives the four step profile wizard: step transitions, the
// validation gate in front of them, and keeping the local copy of the
// session in line with the server.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hperssn/wizard/internal/domain"
	"github.com/hperssn/wizard/internal/gateway"
	"github.com/hperssn/wizard/internal/tokenstore"
	"github.com/hperssn/wizard/internal/upload"
	"github.com/hperssn/wizard/internal/validate"
)

type State int

const (
	StateUninitialized State = iota
	StateActive
	// StateHalted follows a failed session setup. Only Initialize or Reset
	// leave it.
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateHalted:
		return "halted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	msgStepSaved      = "Step submitted successfully!"
	msgStepSaveFailed = "Error submitting step. Please try again."
	msgSubmitted      = "Profile submitted successfully!"
	msgSubmitFailed   = "Error submitting profile. Please try again."
	msgReset          = "Form has been reset. You can start over!"
	msgProjectAdded   = "Project added successfully!"
	msgProjectRemoved = "Project removed successfully!"
	msgProjectFailed  = "Error saving projects. Please try again."
	msgSessionFailed  = "Unable to start a session. Please reload and try again."
)

type Options struct {
	Logger *slog.Logger
	IDs    *domain.IDGenerator
}

// Controller is the single entry point of a front end. Transitions are
// serialized: a request made while another is waiting on the network fails
// with ErrTransitionInFlight.
type Controller struct {
	gateway  Gateway
	tokens   tokenstore.Store
	view     Presenter
	logger   *slog.Logger
	uploads  *upload.Validator
	registry *ProjectRegistry

	busy atomic.Bool

	mu        sync.Mutex
	state     State
	sessionID string
	step      domain.Step
	data      StepData
}

func NewController(gw Gateway, tokens tokenstore.Store, view Presenter, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		gateway:  gw,
		tokens:   tokens,
		view:     view,
		logger:   opts.Logger,
		uploads:  upload.NewValidator(),
		registry: NewProjectRegistry(gw, opts.IDs),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Step() domain.Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Data returns a copy of the cached step data.
func (c *Controller) Data() StepData {
	c.mu.Lock()
	d := StepData{
		PersonalInfo: c.data.PersonalInfo,
		Credentials:  c.data.Credentials,
	}
	c.mu.Unlock()

	d.Projects = c.registry.List()
	return d
}

func (c *Controller) Projects() *ProjectRegistry {
	return c.registry
}

func (c *Controller) Summary() Summary {
	return buildSummary(c.Data())
}

// Initialize resumes the stored session or starts a new one.
func (c *Controller) Initialize(ctx context.Context) error {
	release, err := c.begin()
	if err != nil {
		return err
	}
	defer release()

	return c.initialize(ctx)
}

// Advance saves the current step and moves to the next one. Nothing
// changes unless the step validates and the save succeeds.
func (c *Controller) Advance(ctx context.Context) error {
	release, err := c.begin()
	if err != nil {
		return err
	}
	defer release()

	id, step, err := c.active()
	if err != nil {
		return err
	}
	if step == domain.LastStep {
		return nil
	}

	if err := c.submitStep(ctx, id, step); err != nil {
		return err
	}
	c.moveTo(ctx, id, step+1, false)
	return nil
}

// Retreat moves back one step without validating or saving. At the first
// step it stays put but still syncs the server pointer.
func (c *Controller) Retreat(ctx context.Context) error {
	release, err := c.begin()
	if err != nil {
		return err
	}
	defer release()

	id, step, err := c.active()
	if err != nil {
		return err
	}

	target := step - 1
	if step == domain.FirstStep {
		target = domain.FirstStep
	}

	c.view.ClearFieldErrors()
	c.moveTo(ctx, id, target, true)
	return nil
}

// JumpTo moves directly to target. Moving forward requires every earlier
// step to be valid on its saved data, with the valid fields of the step
// being left taking the place of its saved ones; the first step that fails
// aborts the jump before anything is saved. The step being left is saved
// when its fields are valid. A failed save aborts a forward jump only.
func (c *Controller) JumpTo(ctx context.Context, target domain.Step) error {
	if !target.Valid() {
		return ErrStepOutOfRange
	}

	release, err := c.begin()
	if err != nil {
		return err
	}
	defer release()

	id, step, err := c.active()
	if err != nil {
		return err
	}
	if target == step {
		return nil
	}

	in := c.view.Collect(step)
	leavingValid := c.check(step, in).Valid()

	if target > step {
		saved := c.Data()
		fields := validate.FieldsFromSession(saved.PersonalInfo, saved.Credentials)
		if leavingValid {
			fields = overlayStep(fields, step, in.Fields)
		}
		for s := domain.FirstStep; s < target; s++ {
			if res := validate.Step(s, fields); !res.Valid() {
				c.view.Notify(SeverityWarning, fmt.Sprintf("Please complete step %d before proceeding", s.Number()))
				return &ValidationError{Result: res}
			}
		}
	}

	if leavingValid {
		if err := c.persist(ctx, id, step, in); err != nil {
			perr := c.persistFailed(id, step, err, msgStepSaveFailed)
			if target > step {
				return perr
			}
			c.logger.Warn("moving back without saving the step being left", "session", id, "step", step)
		}
	}

	c.view.ClearFieldErrors()
	c.moveTo(ctx, id, target, true)
	return nil
}

// SubmitFinal completes the profile and starts over with a fresh session.
// On failure the current session is left as it was.
func (c *Controller) SubmitFinal(ctx context.Context) (domain.CompletedProfile, error) {
	release, err := c.begin()
	if err != nil {
		return domain.CompletedProfile{}, err
	}
	defer release()

	id, step, err := c.active()
	if err != nil {
		return domain.CompletedProfile{}, err
	}
	if step != domain.StepReview {
		return domain.CompletedProfile{}, ErrNotAtReview
	}

	in := c.view.Collect(domain.StepReview)
	c.view.ClearFieldErrors()
	if res := validate.Step(domain.StepReview, in.Fields); !res.Valid() {
		c.surface(res)
		return domain.CompletedProfile{}, &ValidationError{Result: res}
	}

	profile, err := c.gateway.Complete(ctx, id)
	if err != nil {
		return domain.CompletedProfile{}, c.persistFailed(id, domain.StepReview, err, msgSubmitFailed)
	}

	c.logger.Info("profile submitted", "session", id, "projects", len(profile.Projects))
	c.view.Notify(SeveritySuccess, msgSubmitted)

	c.clearSession()
	if err := c.initialize(ctx); err != nil {
		return profile, err
	}
	c.view.Notify(SeveritySuccess, msgReset)
	return profile, nil
}

// Reset drops the current session and starts a new one.
func (c *Controller) Reset(ctx context.Context) error {
	release, err := c.begin()
	if err != nil {
		return err
	}
	defer release()

	if id := c.SessionID(); id != "" {
		if err := c.gateway.Discard(ctx, id); err != nil {
			c.logger.Warn("failed to discard session", "session", id, "error", err)
		}
	}

	c.clearSession()
	if err := c.initialize(ctx); err != nil {
		return err
	}
	c.view.Notify(SeveritySuccess, msgReset)
	return nil
}

// AddProject validates draft, adds it and saves the list.
func (c *Controller) AddProject(ctx context.Context, draft domain.ProjectDraft) (domain.Project, error) {
	release, err := c.begin()
	if err != nil {
		return domain.Project{}, err
	}
	defer release()

	id, _, err := c.active()
	if err != nil {
		return domain.Project{}, err
	}

	c.view.ClearFieldErrors()
	p, err := c.registry.Add(ctx, draft)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			c.surface(verr.Result)
			return domain.Project{}, err
		}
		return domain.Project{}, c.persistFailed(id, domain.StepProjects, err, msgProjectFailed)
	}

	c.view.Notify(SeveritySuccess, msgProjectAdded)
	c.view.Repopulate(domain.StepProjects, c.Data())
	return p, nil
}

// RemoveProject deletes a project by id. Unknown ids are a no-op.
func (c *Controller) RemoveProject(ctx context.Context, projectID int64) error {
	release, err := c.begin()
	if err != nil {
		return err
	}
	defer release()

	id, _, err := c.active()
	if err != nil {
		return err
	}

	removed, err := c.registry.Remove(ctx, projectID)
	if err != nil {
		return c.persistFailed(id, domain.StepProjects, err, msgProjectFailed)
	}
	if removed {
		c.view.Notify(SeveritySuccess, msgProjectRemoved)
		c.view.Repopulate(domain.StepProjects, c.Data())
	}
	return nil
}

func (c *Controller) begin() (func(), error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrTransitionInFlight
	}
	return func() { c.busy.Store(false) }, nil
}

func (c *Controller) active() (string, domain.Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateActive {
		return "", 0, ErrSessionUnavailable
	}
	return c.sessionID, c.step, nil
}

func (c *Controller) initialize(ctx context.Context) error {
	token, ok, err := c.tokens.Load()
	if err != nil {
		c.logger.Warn("failed to read stored session token", "error", err)
	}

	if ok {
		s, err := c.gateway.Resume(ctx, token)
		switch {
		case err == nil:
			c.adopt(token, s)
			return nil
		case errors.Is(err, gateway.ErrNotFound):
			c.logger.Info("stored session is gone, starting a new one", "session", token)
		default:
			c.logger.Warn("failed to resume session, starting a new one", "session", token, "error", err)
		}
		if err := c.tokens.Clear(); err != nil {
			c.logger.Warn("failed to clear session token", "error", err)
		}
	}

	id, err := c.gateway.Init(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = StateHalted
		c.mu.Unlock()

		c.logger.Error("session setup failed", "error", err)
		c.view.Halt(msgSessionFailed)
		return &SessionError{Err: err}
	}
	if err := c.tokens.Save(id); err != nil {
		c.logger.Error("failed to store session token", "session", id, "error", err)
	}

	c.logger.Debug("session started", "session", id)
	c.adopt(id, domain.NewSession(id))
	return nil
}

func (c *Controller) adopt(token string, s *domain.Session) {
	id := s.ID
	if id == "" {
		id = token
	}
	step := domain.ClampStep(int(s.CurrentStep))

	c.mu.Lock()
	c.state = StateActive
	c.sessionID = id
	c.step = step
	c.data = StepData{PersonalInfo: s.PersonalInfo, Credentials: s.Credentials}
	c.mu.Unlock()

	c.registry.bind(id, s.Projects)

	data := c.Data()
	for st := domain.FirstStep; st < domain.LastStep; st++ {
		c.view.Repopulate(st, data)
	}
	c.render(step)
}

func (c *Controller) clearSession() {
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("failed to clear session token", "error", err)
	}

	c.mu.Lock()
	c.state = StateUninitialized
	c.sessionID = ""
	c.step = domain.FirstStep
	c.data = StepData{}
	c.mu.Unlock()

	c.registry.bind("", nil)
}

func (c *Controller) submitStep(ctx context.Context, id string, step domain.Step) error {
	in := c.view.Collect(step)
	c.view.ClearFieldErrors()

	res := c.check(step, in)
	if !res.Valid() {
		c.surface(res)
		return &ValidationError{Result: res}
	}
	if err := c.persist(ctx, id, step, in); err != nil {
		return c.persistFailed(id, step, err, msgStepSaveFailed)
	}

	c.view.Notify(SeveritySuccess, msgStepSaved)
	return nil
}

func (c *Controller) check(step domain.Step, in StepInput) validate.Result {
	return validate.Step(step, in.Fields)
}

// persist saves one step. The step must already be valid.
func (c *Controller) persist(ctx context.Context, id string, step domain.Step, in StepInput) error {
	switch step {
	case domain.StepPersonalInfo:
		c.mu.Lock()
		keep := keepKeys(c.data.PersonalInfo.Documents, in.Remove)
		c.mu.Unlock()

		info, err := c.gateway.SavePersonalInfo(ctx, id, gateway.PersonalInfoPayload{
			FullName:    in.Fields.FullName,
			Email:       in.Fields.Email,
			PhoneNumber: in.Fields.PhoneNumber,
			Keep:        keep,
			Documents:   c.acceptUploads(in.Attachments),
		})
		if err != nil {
			return err
		}

		c.mu.Lock()
		c.data.PersonalInfo = info
		c.mu.Unlock()

	case domain.StepCredentials:
		c.mu.Lock()
		keep := keepKeys(c.data.Credentials.Certifications, in.Remove)
		c.mu.Unlock()

		creds, err := c.gateway.SaveCredentials(ctx, id, gateway.CredentialsPayload{
			Skills:         domain.DedupeSkills(in.Fields.Skills),
			Keep:           keep,
			Certifications: c.acceptUploads(in.Attachments),
		})
		if err != nil {
			return err
		}

		c.mu.Lock()
		c.data.Credentials = creds
		c.mu.Unlock()

	case domain.StepProjects:
		if err := c.registry.save(ctx); err != nil {
			return err
		}

	default:
		return nil
	}

	c.view.StepSaved(step, c.Data())
	return nil
}

func (c *Controller) persistFailed(id string, step domain.Step, err error, message string) error {
	c.logger.Error("save failed", "session", id, "step", step, "error", err)

	var rejected *gateway.RejectedError
	if errors.As(err, &rejected) {
		for _, v := range rejected.Violations {
			if !v.Global() {
				c.view.FieldError(v.Field, v.Message)
			}
		}
		if rejected.Reason != "" {
			message = rejected.Reason
		}
	}
	c.view.Notify(SeverityDanger, message)

	var perr *PersistenceError
	if errors.As(err, &perr) {
		return err
	}
	return &PersistenceError{Step: step, Err: err}
}

// acceptUploads drops rejected files, one notice per file.
func (c *Controller) acceptUploads(files []upload.File) []upload.File {
	accepted, rejected := c.uploads.Partition(files)
	for _, r := range rejected {
		c.view.Notify(SeverityWarning, r.Reason)
	}
	return accepted
}

func (c *Controller) surface(res validate.Result) {
	for _, v := range res.Violations {
		if v.Global() {
			c.view.Notify(SeverityWarning, v.Message)
			continue
		}
		c.view.FieldError(v.Field, v.Message)
	}
}

// moveTo changes the step after any save has finished. The server pointer
// update is best effort.
func (c *Controller) moveTo(ctx context.Context, id string, target domain.Step, repopulate bool) {
	c.mu.Lock()
	c.step = target
	c.mu.Unlock()

	if err := c.gateway.UpdateStep(ctx, id, target); err != nil {
		c.logger.Warn("step pointer update failed", "session", id, "step", target, "error", err)
	}

	if repopulate {
		c.view.Repopulate(target, c.Data())
	}
	c.render(target)
}

func (c *Controller) render(step domain.Step) {
	c.view.RenderStep(step)
	if step == domain.StepReview {
		c.view.ShowSummary(c.Summary())
	}
}

// overlayStep replaces the fields of step in saved with collected ones.
func overlayStep(saved validate.Fields, step domain.Step, collected validate.Fields) validate.Fields {
	switch step {
	case domain.StepPersonalInfo:
		saved.FullName = collected.FullName
		saved.Email = collected.Email
		saved.PhoneNumber = collected.PhoneNumber
	case domain.StepCredentials:
		saved.Skills = collected.Skills
	}
	return saved
}

func keepKeys(refs []domain.AttachmentRef, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, k := range remove {
		drop[k] = struct{}{}
	}

	keep := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, ok := drop[ref.StorageKey]; !ok {
			keep = append(keep, ref.StorageKey)
		}
	}
	return keep
}
