package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"recruitline/internal/db"
	"recruitline/internal/domain"
	"recruitline/internal/migrate"
	"recruitline/internal/repo"
)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func seedOpening(t *testing.T, r repo.Repo) domain.JobOpening {
	t.Helper()
	closed := t0.Add(14 * 24 * time.Hour)
	o := domain.JobOpening{
		ID:        "op-1",
		Title:     "Backend Engineer",
		Status:    domain.OpeningOpen,
		CreatedAt: t0,
		Waves: []domain.Wave{
			{Number: 1, OpenedAt: t0, ClosedAt: &closed},
			{Number: 2, OpenedAt: closed},
		},
	}
	tx, err := r.DB.Beginx()
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	if err := r.InsertOpening(context.Background(), tx, o); err != nil {
		t.Fatalf("insert opening: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	return o
}

func TestOpeningRoundTripKeepsWaveOrder(t *testing.T) {
	r := newTestRepo(t)
	seedOpening(t, r)
	got, err := r.GetOpening(context.Background(), "op-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Waves) != 2 || got.Waves[0].Number != 1 || got.Waves[1].Number != 2 {
		t.Fatalf("unexpected waves: %+v", got.Waves)
	}
	if got.Waves[0].ClosedAt == nil || !got.Waves[0].ClosedAt.Equal(got.Waves[1].OpenedAt) {
		t.Fatalf("wave timestamps not preserved: %+v", got.Waves)
	}
	if !got.Waves[1].Open() {
		t.Fatalf("expected last wave open")
	}
	if _, err := r.GetOpening(context.Background(), "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCandidateVersioning(t *testing.T) {
	r := newTestRepo(t)
	seedOpening(t, r)
	ctx := context.Background()
	c := domain.Candidate{
		ID:        "c-1",
		OpeningID: "op-1",
		FormTitle: "Backend Engineer",
		Name:      "Ada",
		AppliedAt: t0.Add(time.Hour),
		Stage:     domain.StageApplied,
		Skills:    []string{"go", "sql"},
		CreatedAt: t0,
		UpdatedAt: t0,
	}
	tx, _ := r.DB.Beginx()
	if err := r.InsertCandidate(ctx, tx, c); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	stored, err := r.GetCandidate(ctx, "c-1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Version != 1 || stored.Disposition != domain.DispositionActive || len(stored.Skills) != 2 {
		t.Fatalf("unexpected stored candidate: %+v", stored)
	}

	stored.Stage = domain.StageCVReview
	tx, _ = r.DB.Beginx()
	updated, err := r.UpdateCandidate(ctx, tx, stored)
	if err != nil {
		t.Fatal(err)
	}
	tx.Commit()
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}

	tx, _ = r.DB.Beginx()
	defer tx.Rollback()
	if _, err := r.UpdateCandidate(ctx, tx, stored); !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("expected conflict for stale version, got %v", err)
	}
	stored.ID = "ghost"
	if _, err := r.UpdateCandidate(ctx, tx, stored); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListCandidatesFilters(t *testing.T) {
	r := newTestRepo(t)
	seedOpening(t, r)
	ctx := context.Background()
	tx, _ := r.DB.Beginx()
	for i, name := range []string{"Ada", "Brian", "Chen"} {
		c := domain.Candidate{
			ID:          name,
			OpeningID:   "op-1",
			FormTitle:   "Backend Engineer",
			Name:        name,
			AppliedAt:   t0.Add(time.Duration(3-i) * time.Hour),
			Stage:       domain.StageApplied,
			Disposition: domain.DispositionActive,
			CreatedAt:   t0,
			UpdatedAt:   t0,
		}
		if name == "Chen" {
			c.Disposition = domain.DispositionRejected
		}
		if err := r.InsertCandidate(ctx, tx, c); err != nil {
			t.Fatal(err)
		}
	}
	tx.Commit()

	all, err := r.ListCandidates(ctx, repo.CandidateFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Name != "Chen" {
		t.Fatalf("expected applied_at order starting with Chen, got %+v", all)
	}
	active, _ := r.ListCandidates(ctx, repo.CandidateFilter{Disposition: domain.DispositionActive})
	if len(active) != 2 {
		t.Fatalf("expected 2 active, got %d", len(active))
	}
	byID, err := r.ListCandidates(ctx, repo.CandidateFilter{IDs: []string{"Ada", "Chen"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(byID) != 2 {
		t.Fatalf("expected 2 by id, got %d", len(byID))
	}
}

func TestTemplateCatalogOrder(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	tx, _ := r.DB.Beginx()
	for _, id := range []string{"z", "a", "m"} {
		if err := r.InsertTemplate(ctx, tx, domain.FeedbackTemplate{ID: id, Title: id, Subject: "s", Content: "c", Type: domain.TemplateAcceptance, CreatedAt: t0}); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.InsertTemplate(ctx, tx, domain.FeedbackTemplate{ID: "r", Title: "r", Subject: "s", Content: "c", Type: domain.TemplateRejection, CreatedAt: t0}); err != nil {
		t.Fatal(err)
	}
	tx.Commit()
	got, err := r.ListTemplates(ctx, domain.TemplateAcceptance)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != "z" || got[1].ID != "a" || got[2].ID != "m" {
		t.Fatalf("expected insertion order, got %+v", got)
	}
}

func TestCorruptCandidateListsAreReported(t *testing.T) {
	r := newTestRepo(t)
	seedOpening(t, r)
	ctx := context.Background()
	tx, _ := r.DB.Beginx()
	if err := r.InsertCandidate(ctx, tx, domain.Candidate{
		ID:        "c-bad",
		OpeningID: "op-1",
		FormTitle: "Backend Engineer",
		Name:      "Grace",
		AppliedAt: t0,
		Stage:     domain.StageApplied,
		CreatedAt: t0,
		UpdatedAt: t0,
	}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.DB.Exec(`UPDATE candidates SET skills_json='{not json' WHERE id='c-bad'`); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetCandidate(ctx, "c-bad"); err == nil {
		t.Fatalf("expected decode error for corrupt skills")
	}
	if _, err := r.ListCandidates(ctx, repo.CandidateFilter{}); err == nil {
		t.Fatalf("expected list to report corrupt skills")
	}
}
