package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hperssn/wizard/internal/domain"
)

// SessionRecord is the row shape shared by the SQL repositories. Step data
// is stored as JSON documents, timestamps as Unix nanoseconds.
type SessionRecord struct {
	ID           string
	CurrentStep  int
	PersonalInfo []byte
	Credentials  []byte
	Projects     []byte
	ProjectCount int
	CreatedAt    int64
	UpdatedAt    int64
	CompletedAt  sql.NullInt64
}

// FromDomainSession converts a domain.Session to a SessionRecord
func FromDomainSession(s *domain.Session) (*SessionRecord, error) {
	personal, err := json.Marshal(s.PersonalInfo)
	if err != nil {
		return nil, fmt.Errorf("encode personal info: %w", err)
	}
	credentials, err := json.Marshal(s.Credentials)
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}
	projects := s.Projects
	if projects == nil {
		projects = []domain.Project{}
	}
	projectsJSON, err := json.Marshal(projects)
	if err != nil {
		return nil, fmt.Errorf("encode projects: %w", err)
	}

	record := &SessionRecord{
		ID:           s.ID,
		CurrentStep:  int(s.CurrentStep),
		PersonalInfo: personal,
		Credentials:  credentials,
		Projects:     projectsJSON,
		ProjectCount: len(projects),
		CreatedAt:    s.CreatedAt.UnixNano(),
		UpdatedAt:    s.UpdatedAt.UnixNano(),
	}
	if s.CompletedAt != nil {
		record.CompletedAt = sql.NullInt64{Int64: s.CompletedAt.UnixNano(), Valid: true}
	}
	return record, nil
}

// ToDomainSession decodes the record back into a domain.Session.
func (r *SessionRecord) ToDomainSession() (*domain.Session, error) {
	s := &domain.Session{
		ID:          r.ID,
		CurrentStep: domain.ClampStep(r.CurrentStep),
		CreatedAt:   time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt:   time.Unix(0, r.UpdatedAt).UTC(),
	}
	if err := json.Unmarshal(r.PersonalInfo, &s.PersonalInfo); err != nil {
		return nil, fmt.Errorf("decode personal info: %w", err)
	}
	if err := json.Unmarshal(r.Credentials, &s.Credentials); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if err := json.Unmarshal(r.Projects, &s.Projects); err != nil {
		return nil, fmt.Errorf("decode projects: %w", err)
	}
	if s.Projects == nil {
		s.Projects = []domain.Project{}
	}
	if r.CompletedAt.Valid {
		t := time.Unix(0, r.CompletedAt.Int64).UTC()
		s.CompletedAt = &t
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var record SessionRecord

	err := row.Scan(
		&record.ID,
		&record.CurrentStep,
		&record.PersonalInfo,
		&record.Credentials,
		&record.Projects,
		&record.CreatedAt,
		&record.UpdatedAt,
		&record.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return record.ToDomainSession()
}

func scanSessions(rows *sql.Rows) ([]*domain.Session, error) {
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func finishStats(stats *SessionStats, avgProjects sql.NullFloat64) {
	if avgProjects.Valid {
		stats.AverageProjects = avgProjects.Float64
	}
	if stats.TotalSessions > 0 {
		stats.CompletionRate = float64(stats.CompletedCount) / float64(stats.TotalSessions) * 100
	}
}
