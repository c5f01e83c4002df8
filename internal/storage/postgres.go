package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hperssn/wizard/internal/domain"

	_ "github.com/lib/pq"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(connStr string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	repo := &PostgresRepository{db: db}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func (r *PostgresRepository) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		current_step INTEGER NOT NULL,
		personal_info JSONB NOT NULL,
		credentials JSONB NOT NULL,
		projects JSONB NOT NULL,
		project_count INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		completed_at BIGINT
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_completed_at ON sessions(completed_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

func (r *PostgresRepository) CreateSession(ctx context.Context, s *domain.Session) error {
	record, err := FromDomainSession(s)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sessions (id, current_step, personal_info, credentials, projects, project_count, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.CurrentStep,
		string(record.PersonalInfo),
		string(record.Credentials),
		string(record.Projects),
		record.ProjectCount,
		record.CreatedAt,
		record.UpdatedAt,
		record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", s.ID, err)
	}
	return nil
}

func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, current_step, personal_info, credentials, projects, created_at, updated_at, completed_at
		FROM sessions
		WHERE id = $1
	`

	return scanSession(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) SaveSession(ctx context.Context, s *domain.Session) error {
	record, err := FromDomainSession(s)
	if err != nil {
		return err
	}

	query := `
		UPDATE sessions
		SET current_step = $1, personal_info = $2, credentials = $3, projects = $4, project_count = $5, updated_at = $6, completed_at = $7
		WHERE id = $8
	`

	res, err := r.db.ExecContext(
		ctx,
		query,
		record.CurrentStep,
		string(record.PersonalInfo),
		string(record.Credentials),
		string(record.Projects),
		record.ProjectCount,
		record.UpdatedAt,
		record.CompletedAt,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("update session %s: %w", s.ID, err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) DeleteSession(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) DeleteStaleSessions(ctx context.Context, cutoff time.Time) ([]*domain.Session, error) {
	query := `
		DELETE FROM sessions
		WHERE completed_at IS NULL AND updated_at < $1
		RETURNING id, current_step, personal_info, credentials, projects, created_at, updated_at, completed_at
	`

	rows, err := r.db.QueryContext(ctx, query, cutoff.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("delete stale sessions: %w", err)
	}
	return scanSessions(rows)
}

func (r *PostgresRepository) GetSessionStats(ctx context.Context) (*SessionStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN completed_at IS NOT NULL THEN 1 ELSE 0 END), 0) as completed,
			AVG(project_count) as avg_projects
		FROM sessions
	`

	var stats SessionStats
	var avgProjects sql.NullFloat64

	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalSessions,
		&stats.CompletedCount,
		&avgProjects,
	)
	if err != nil {
		return nil, err
	}
	finishStats(&stats, avgProjects)

	rows, err := r.db.QueryContext(ctx, `
		SELECT current_step, COUNT(*)
		FROM sessions
		WHERE completed_at IS NULL
		GROUP BY current_step
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := scanStepCounts(rows, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
