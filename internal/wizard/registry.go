package wizard

import (
	"context"
	"slices"
	"sync"

	"github.com/hperssn/wizard/internal/domain"
	"github.com/hperssn/wizard/internal/validate"
)

// ProjectSaver persists the complete project list of a session.
type ProjectSaver interface {
	SaveProjects(ctx context.Context, id string, projects []domain.Project) error
}

// ProjectRegistry is the ordered project list of the active session. Every
// add and remove is saved immediately; a failed save undoes the change.
type ProjectRegistry struct {
	mu        sync.Mutex
	saver     ProjectSaver
	ids       *domain.IDGenerator
	sessionID string
	projects  []domain.Project
}

func NewProjectRegistry(saver ProjectSaver, ids *domain.IDGenerator) *ProjectRegistry {
	if ids == nil {
		ids = domain.NewIDGenerator(nil)
	}
	return &ProjectRegistry{saver: saver, ids: ids, projects: []domain.Project{}}
}

// bind attaches the registry to a session and its stored projects.
func (r *ProjectRegistry) bind(sessionID string, projects []domain.Project) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessionID = sessionID
	r.projects = domain.CloneProjects(projects)
	if r.projects == nil {
		r.projects = []domain.Project{}
	}
	r.ids.Observe(r.projects)
}

func (r *ProjectRegistry) Add(ctx context.Context, draft domain.ProjectDraft) (domain.Project, error) {
	if res := validate.ProjectDraft(draft); !res.Valid() {
		return domain.Project{}, &ValidationError{Result: res}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == "" {
		return domain.Project{}, ErrSessionUnavailable
	}

	p := draft.Build(r.ids.Next())
	next := append(domain.CloneProjects(r.projects), p)
	if err := r.saver.SaveProjects(ctx, r.sessionID, next); err != nil {
		return domain.Project{}, &PersistenceError{Step: domain.StepProjects, Err: err}
	}

	r.projects = next
	return p, nil
}

// Remove deletes the project with id. Unknown ids are ignored and report
// false without a save.
func (r *ProjectRegistry) Remove(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == "" {
		return false, ErrSessionUnavailable
	}

	idx := slices.IndexFunc(r.projects, func(p domain.Project) bool { return p.ID == id })
	if idx < 0 {
		return false, nil
	}

	next := slices.Delete(domain.CloneProjects(r.projects), idx, idx+1)
	if err := r.saver.SaveProjects(ctx, r.sessionID, next); err != nil {
		return false, &PersistenceError{Step: domain.StepProjects, Err: err}
	}

	r.projects = next
	return true, nil
}

// List returns a copy of the projects in insertion order.
func (r *ProjectRegistry) List() []domain.Project {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := domain.CloneProjects(r.projects)
	if out == nil {
		out = []domain.Project{}
	}
	return out
}

// save resends the current list, used when leaving the projects step.
func (r *ProjectRegistry) save(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessionID == "" {
		return ErrSessionUnavailable
	}
	return r.saver.SaveProjects(ctx, r.sessionID, domain.CloneProjects(r.projects))
}
