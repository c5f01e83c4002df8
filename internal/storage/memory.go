package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hperssn/wizard/internal/domain"
)

// MemoryRepository keeps sessions in process memory. It backs tests and the
// "memory" driver.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]*domain.Session),
	}
}

func (r *MemoryRepository) CreateSession(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return fmt.Errorf("insert session %s: already exists", s.ID)
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *MemoryRepository) GetSession(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (r *MemoryRepository) SaveSession(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; !ok {
		return ErrNotFound
	}
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *MemoryRepository) DeleteSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *MemoryRepository) DeleteStaleSessions(_ context.Context, cutoff time.Time) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*domain.Session
	for id, s := range r.sessions {
		if !s.Completed() && s.UpdatedAt.Before(cutoff) {
			delete(r.sessions, id)
			removed = append(removed, s)
		}
	}
	return removed, nil
}

func (r *MemoryRepository) GetSessionStats(_ context.Context) (*SessionStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats SessionStats
	projects := 0
	for _, s := range r.sessions {
		stats.TotalSessions++
		projects += len(s.Projects)
		if s.Completed() {
			stats.CompletedCount++
			continue
		}
		stats.ActiveByStep[s.CurrentStep]++
	}
	if stats.TotalSessions > 0 {
		stats.AverageProjects = float64(projects) / float64(stats.TotalSessions)
		stats.CompletionRate = float64(stats.CompletedCount) / float64(stats.TotalSessions) * 100
	}
	return &stats, nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
