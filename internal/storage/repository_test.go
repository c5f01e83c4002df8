package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/hperssn/wizard/internal/domain"
	"github.com/hperssn/wizard/internal/storage"
)

func repositories(t *testing.T) map[string]storage.Repository {
	t.Helper()

	repos := map[string]storage.Repository{
		"memory": storage.NewMemoryRepository(),
	}

	sqliteRepo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "wizard.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repos["sqlite"] = sqliteRepo

	if dsn := os.Getenv("WIZARD_TEST_POSTGRES_DSN"); dsn != "" {
		pg, err := storage.NewPostgresRepository(dsn)
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		repos["postgres"] = pg
	}

	for _, r := range repos {
		r := r
		t.Cleanup(func() { r.Close() })
	}
	return repos
}

func sampleSession() *domain.Session {
	s := domain.NewSession("")
	s.CurrentStep = domain.StepProjects
	s.PersonalInfo = domain.PersonalInfo{
		FullName:    "Ada Lovelace",
		Email:       "ada@example.com",
		PhoneNumber: "01712345678",
		Documents:   []domain.AttachmentRef{{OriginalName: "cv.pdf", Size: 1024, StorageKey: "k1.pdf"}},
	}
	s.Credentials = domain.Credentials{Skills: []string{"Go", "SQL"}}
	s.Projects = []domain.Project{{
		ID:           1,
		Title:        "Engine",
		StartDate:    "2024-01-01",
		EndDate:      domain.Present,
		Description:  "d",
		Technologies: []string{"Go"},
	}}
	return s
}

func TestRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			s := sampleSession()
			if err := repo.CreateSession(ctx, s); err != nil {
				t.Fatalf("create: %v", err)
			}

			got, err := repo.GetSession(ctx, s.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.CurrentStep != s.CurrentStep {
				t.Errorf("current step = %v, want %v", got.CurrentStep, s.CurrentStep)
			}
			if got.PersonalInfo.FullName != s.PersonalInfo.FullName || len(got.PersonalInfo.Documents) != 1 {
				t.Errorf("personal info = %+v", got.PersonalInfo)
			}
			if !slices.Equal(got.Credentials.Skills, s.Credentials.Skills) {
				t.Errorf("skills = %v", got.Credentials.Skills)
			}
			if len(got.Projects) != 1 || got.Projects[0].EndDate != domain.Present {
				t.Errorf("projects = %+v", got.Projects)
			}
			if !got.CreatedAt.Equal(s.CreatedAt) {
				t.Errorf("created at = %v, want %v", got.CreatedAt, s.CreatedAt)
			}
		})
	}
}

func TestRepositorySaveReplaces(t *testing.T) {
	ctx := context.Background()

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			s := sampleSession()
			if err := repo.CreateSession(ctx, s); err != nil {
				t.Fatalf("create: %v", err)
			}

			s.Projects = []domain.Project{}
			s.CurrentStep = domain.StepReview
			now := time.Now().UTC()
			s.CompletedAt = &now

			for i := 0; i < 2; i++ {
				if err := repo.SaveSession(ctx, s); err != nil {
					t.Fatalf("save %d: %v", i, err)
				}
			}

			got, err := repo.GetSession(ctx, s.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if len(got.Projects) != 0 {
				t.Errorf("projects = %+v, want empty", got.Projects)
			}
			if !got.Completed() {
				t.Errorf("expected completed session")
			}
		})
	}
}

func TestRepositoryNotFound(t *testing.T) {
	ctx := context.Background()

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := repo.GetSession(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("get missing: %v", err)
			}
			if err := repo.SaveSession(ctx, domain.NewSession("missing")); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("save missing: %v", err)
			}
			if err := repo.DeleteSession(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("delete missing: %v", err)
			}
		})
	}
}

func TestRepositoryStaleCleanupAndStats(t *testing.T) {
	ctx := context.Background()

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			if name == "postgres" {
				t.Skip("counts assume an empty database")
			}
			old := sampleSession()
			old.UpdatedAt = time.Now().Add(-48 * time.Hour).UTC()

			fresh := sampleSession()
			fresh.CurrentStep = domain.StepCredentials

			done := sampleSession()
			done.UpdatedAt = old.UpdatedAt
			completedAt := time.Now().UTC()
			done.CompletedAt = &completedAt

			for _, s := range []*domain.Session{old, fresh, done} {
				if err := repo.CreateSession(ctx, s); err != nil {
					t.Fatalf("create: %v", err)
				}
			}

			stats, err := repo.GetSessionStats(ctx)
			if err != nil {
				t.Fatalf("stats: %v", err)
			}
			if stats.TotalSessions != 3 || stats.CompletedCount != 1 {
				t.Errorf("stats = %+v", stats)
			}
			if stats.ActiveByStep[domain.StepProjects] != 1 || stats.ActiveByStep[domain.StepCredentials] != 1 {
				t.Errorf("active by step = %v", stats.ActiveByStep)
			}

			removed, err := repo.DeleteStaleSessions(ctx, time.Now().Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("cleanup: %v", err)
			}
			if len(removed) != 1 || removed[0].ID != old.ID {
				t.Fatalf("removed = %v, want only %s", removed, old.ID)
			}
			if removed[0].PersonalInfo.FullName != old.PersonalInfo.FullName {
				t.Errorf("removed session lost its data: %+v", removed[0].PersonalInfo)
			}
			if _, err := repo.GetSession(ctx, old.ID); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("stale session still present: %v", err)
			}
			if _, err := repo.GetSession(ctx, done.ID); err != nil {
				t.Errorf("completed session removed: %v", err)
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := storage.Open("mongo", ""); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
