package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hperssn/wizard/internal/domain"
)

var ErrNotFound = errors.New("session not found")

// Repository persists wizard sessions. Saves replace the whole record.
type Repository interface {
	CreateSession(ctx context.Context, s *domain.Session) error

	GetSession(ctx context.Context, id string) (*domain.Session, error)

	SaveSession(ctx context.Context, s *domain.Session) error

	DeleteSession(ctx context.Context, id string) error

	// DeleteStaleSessions removes incomplete sessions not updated since
	// cutoff and returns what was removed.
	DeleteStaleSessions(ctx context.Context, cutoff time.Time) ([]*domain.Session, error)

	GetSessionStats(ctx context.Context) (*SessionStats, error)

	Close() error
}

type SessionStats struct {
	TotalSessions   int                   `json:"totalSessions"`
	CompletedCount  int                   `json:"completedCount"`
	AverageProjects float64               `json:"averageProjects"`
	CompletionRate  float64               `json:"completionRate"`
	ActiveByStep    [domain.StepCount]int `json:"activeByStep"`
}

// Open builds the repository for a configured driver.
func Open(driver, dsn string) (Repository, error) {
	switch driver {
	case "memory":
		return NewMemoryRepository(), nil
	case "sqlite", "":
		return NewSQLiteRepository(dsn)
	case "postgres":
		return NewPostgresRepository(dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
}
