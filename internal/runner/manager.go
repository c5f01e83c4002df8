package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hperssn/wizard/internal/domain"
	"github.com/hperssn/wizard/internal/storage"
	"github.com/hperssn/wizard/internal/upload"
	"github.com/hperssn/wizard/internal/validate"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionCompleted = errors.New("session already completed")
	ErrInvalidStep      = errors.New("invalid step index")
)

// RejectedError reports a payload the server refused to store.
type RejectedError struct {
	Reason     string
	Violations []validate.Violation
}

func (e *RejectedError) Error() string {
	return e.Reason
}

func IsRejected(err error) bool {
	var target *RejectedError
	return errors.As(err, &target)
}

func rejected(res validate.Result) *RejectedError {
	return &RejectedError{Reason: res.Reason(), Violations: res.Violations}
}

type Config struct {
	// SessionTTL is how long an untouched incomplete session survives.
	SessionTTL      time.Duration
	CleanupInterval time.Duration
}

// PersonalInfoInput is the step 0 payload. Keep lists storage keys of
// already stored documents to retain; Documents are new uploads.
type PersonalInfoInput struct {
	FullName    string
	Email       string
	PhoneNumber string
	Keep        []string
	Documents   []upload.File
}

type CredentialsInput struct {
	Skills         []string
	Keep           []string
	Certifications []upload.File
}

// SessionManager owns the server side of wizard sessions. Every mutation
// is a read-modify-write of the whole session record under mu.
type SessionManager struct {
	mu sync.Mutex

	repo    storage.Repository
	blobs   *storage.BlobStore
	uploads *upload.Validator
	events  *broadcaster
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time
}

func NewSessionManager(repo storage.Repository, blobs *storage.BlobStore, logger *slog.Logger, cfg Config) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 72 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	return &SessionManager{
		repo:    repo,
		blobs:   blobs,
		uploads: upload.NewValidator(),
		events:  newBroadcaster(),
		logger:  logger,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run prunes stale sessions until ctx is cancelled.
func (m *SessionManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.cleanupOldSessions(ctx)
		}
	}
}

func (m *SessionManager) cleanupOldSessions(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.cfg.SessionTTL)

	removed, err := m.repo.DeleteStaleSessions(ctx, cutoff)
	if err != nil {
		m.logger.Error("stale session cleanup failed", "error", err)
		return
	}
	for _, s := range removed {
		m.discard(attachmentsOf(s))
		m.events.publish(SessionEvent{Type: EventDeleted, SessionID: s.ID, Step: s.CurrentStep, At: m.now()})
		m.events.closeSession(s.ID)
	}
	if len(removed) > 0 {
		m.logger.Info("removed stale sessions", "count", len(removed), "cutoff", cutoff)
	}
}

func (m *SessionManager) StartSession(ctx context.Context) (*domain.Session, error) {
	s := domain.NewSession("")

	if err := m.repo.CreateSession(ctx, s); err != nil {
		return nil, err
	}
	m.logger.Info("session started", "session", s.ID)
	return s, nil
}

// GetSession returns an active session. Completed sessions are reported
// with ErrSessionCompleted so clients start over.
func (m *SessionManager) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Completed() {
		return nil, ErrSessionCompleted
	}
	return s, nil
}

// LookupSession returns the session whatever its state.
func (m *SessionManager) LookupSession(ctx context.Context, id string) (*domain.Session, error) {
	return m.load(ctx, id)
}

func (m *SessionManager) UpdateStep(ctx context.Context, id string, step domain.Step) error {
	if !step.Valid() {
		return ErrInvalidStep
	}

	_, err := m.mutate(ctx, id, func(s *domain.Session) error {
		s.CurrentStep = step
		return nil
	})
	if err != nil {
		return err
	}

	m.events.publish(SessionEvent{Type: EventStepChanged, SessionID: id, Step: step, At: m.now()})
	return nil
}

func (m *SessionManager) SavePersonalInfo(ctx context.Context, id string, in PersonalInfoInput) (domain.PersonalInfo, error) {
	res := validate.Step(domain.StepPersonalInfo, validate.Fields{
		FullName:    in.FullName,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
	})
	if !res.Valid() {
		return domain.PersonalInfo{}, rejected(res)
	}
	if err := m.checkUploads(in.Documents); err != nil {
		return domain.PersonalInfo{}, err
	}

	var change attachmentChange
	s, err := m.mutate(ctx, id, func(s *domain.Session) error {
		var err error
		change, err = m.replaceAttachments(s.PersonalInfo.Documents, in.Keep, in.Documents)
		if err != nil {
			return err
		}
		s.PersonalInfo = domain.PersonalInfo{
			FullName:    strings.TrimSpace(in.FullName),
			Email:       strings.TrimSpace(in.Email),
			PhoneNumber: strings.TrimSpace(in.PhoneNumber),
			Documents:   change.refs,
		}
		return nil
	})
	if err != nil {
		m.discard(change.stored)
		return domain.PersonalInfo{}, err
	}

	m.discard(change.dropped)
	m.events.publish(SessionEvent{Type: EventSaved, SessionID: id, Step: domain.StepPersonalInfo, At: m.now()})
	return s.PersonalInfo, nil
}

func (m *SessionManager) SaveCredentials(ctx context.Context, id string, in CredentialsInput) (domain.Credentials, error) {
	skills := domain.DedupeSkills(in.Skills)
	res := validate.Step(domain.StepCredentials, validate.Fields{Skills: skills})
	if !res.Valid() {
		return domain.Credentials{}, rejected(res)
	}
	if err := m.checkUploads(in.Certifications); err != nil {
		return domain.Credentials{}, err
	}

	var change attachmentChange
	s, err := m.mutate(ctx, id, func(s *domain.Session) error {
		var err error
		change, err = m.replaceAttachments(s.Credentials.Certifications, in.Keep, in.Certifications)
		if err != nil {
			return err
		}
		s.Credentials = domain.Credentials{Skills: skills, Certifications: change.refs}
		return nil
	})
	if err != nil {
		m.discard(change.stored)
		return domain.Credentials{}, err
	}

	m.discard(change.dropped)
	m.events.publish(SessionEvent{Type: EventSaved, SessionID: id, Step: domain.StepCredentials, At: m.now()})
	return s.Credentials, nil
}

// SaveProjects replaces the whole project list.
func (m *SessionManager) SaveProjects(ctx context.Context, id string, projects []domain.Project) error {
	if res := validate.Projects(projects); !res.Valid() {
		return rejected(res)
	}

	_, err := m.mutate(ctx, id, func(s *domain.Session) error {
		s.Projects = domain.CloneProjects(projects)
		if s.Projects == nil {
			s.Projects = []domain.Project{}
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.events.publish(SessionEvent{Type: EventSaved, SessionID: id, Step: domain.StepProjects, At: m.now()})
	return nil
}

// CompleteSession submits the profile. Completing an already completed
// session returns the same profile.
func (m *SessionManager) CompleteSession(ctx context.Context, id string) (domain.CompletedProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.load(ctx, id)
	if err != nil {
		return domain.CompletedProfile{}, err
	}
	if s.Completed() {
		return s.Profile(), nil
	}

	res := validate.Step(domain.StepPersonalInfo, validate.FieldsFromSession(s.PersonalInfo, s.Credentials))
	res.Violations = append(res.Violations,
		validate.Step(domain.StepCredentials, validate.FieldsFromSession(s.PersonalInfo, s.Credentials)).Violations...)
	if !res.Valid() {
		return domain.CompletedProfile{}, &RejectedError{
			Reason:     "Profile is incomplete: " + res.Reason(),
			Violations: res.Violations,
		}
	}

	now := m.now()
	s.CompletedAt = &now
	s.CurrentStep = domain.LastStep
	s.UpdatedAt = now
	if err := m.repo.SaveSession(ctx, s); err != nil {
		return domain.CompletedProfile{}, err
	}

	m.logger.Info("session completed", "session", id, "projects", len(s.Projects))
	m.events.publish(SessionEvent{Type: EventCompleted, SessionID: id, Step: domain.LastStep, At: now})
	m.events.closeSession(id)
	return s.Profile(), nil
}

// DeleteSession discards a session and its attachments.
func (m *SessionManager) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if err := m.repo.DeleteSession(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	m.discard(attachmentsOf(s))

	m.events.publish(SessionEvent{Type: EventDeleted, SessionID: id, Step: s.CurrentStep, At: m.now()})
	m.events.closeSession(id)
	return nil
}

func (m *SessionManager) Stats(ctx context.Context) (*storage.SessionStats, error) {
	return m.repo.GetSessionStats(ctx)
}

// Subscribe streams events of one session until ctx ends or the session
// is completed or deleted.
func (m *SessionManager) Subscribe(ctx context.Context, id string) (<-chan SessionEvent, error) {
	if _, err := m.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return m.events.subscribe(ctx, id), nil
}

// OpenAttachment returns the stored body of an attachment owned by the session.
func (m *SessionManager) OpenAttachment(ctx context.Context, id, key string) (domain.AttachmentRef, io.ReadCloser, error) {
	s, err := m.load(ctx, id)
	if err != nil {
		return domain.AttachmentRef{}, nil, err
	}
	for _, ref := range attachmentsOf(s) {
		if ref.StorageKey != key {
			continue
		}
		rc, err := m.blobs.Open(key)
		if err != nil {
			return domain.AttachmentRef{}, nil, fmt.Errorf("open attachment: %w", err)
		}
		return ref, rc, nil
	}
	return domain.AttachmentRef{}, nil, storage.ErrNotFound
}

func (m *SessionManager) load(ctx context.Context, id string) (*domain.Session, error) {
	s, err := m.repo.GetSession(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return s, nil
}

func (m *SessionManager) mutate(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Completed() {
		return nil, ErrSessionCompleted
	}
	if err := fn(s); err != nil {
		return nil, err
	}

	s.UpdatedAt = m.now()
	if err := m.repo.SaveSession(ctx, s); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return s, nil
}

func (m *SessionManager) checkUploads(files []upload.File) error {
	_, bad := m.uploads.Partition(files)
	if len(bad) == 0 {
		return nil
	}

	reasons := make([]string, len(bad))
	for i, r := range bad {
		reasons[i] = r.Reason
	}
	return &RejectedError{Reason: strings.Join(reasons, "; ")}
}

// attachmentChange is the outcome of replaceAttachments. Once the session
// is saved the caller discards dropped; if the save fails it discards stored.
type attachmentChange struct {
	refs    []domain.AttachmentRef
	stored  []domain.AttachmentRef
	dropped []domain.AttachmentRef
}

// replaceAttachments keeps the listed existing refs and stores the new files.
func (m *SessionManager) replaceAttachments(current []domain.AttachmentRef, keep []string, files []upload.File) (attachmentChange, error) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}

	change := attachmentChange{refs: []domain.AttachmentRef{}}
	for _, ref := range current {
		if _, ok := keepSet[ref.StorageKey]; ok {
			change.refs = append(change.refs, ref)
			continue
		}
		change.dropped = append(change.dropped, ref)
	}

	for _, f := range files {
		ref, err := m.store(f)
		if err != nil {
			m.discard(change.stored)
			return attachmentChange{}, err
		}
		change.stored = append(change.stored, ref)
	}

	change.refs = append(change.refs, change.stored...)
	return change, nil
}

func attachmentsOf(s *domain.Session) []domain.AttachmentRef {
	refs := make([]domain.AttachmentRef, 0, len(s.PersonalInfo.Documents)+len(s.Credentials.Certifications))
	refs = append(refs, s.PersonalInfo.Documents...)
	return append(refs, s.Credentials.Certifications...)
}

func (m *SessionManager) store(f upload.File) (domain.AttachmentRef, error) {
	if f.Open == nil {
		return domain.AttachmentRef{}, fmt.Errorf("attachment %q has no content", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return domain.AttachmentRef{}, fmt.Errorf("open upload %q: %w", f.Name, err)
	}
	defer rc.Close()

	return m.blobs.Put(f.Name, rc)
}

func (m *SessionManager) discard(refs []domain.AttachmentRef) {
	for _, ref := range refs {
		if err := m.blobs.Delete(ref.StorageKey); err != nil {
			m.logger.Warn("failed to delete attachment", "key", ref.StorageKey, "error", err)
		}
	}
}
