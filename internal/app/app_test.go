package app

import (
	"context"
	"testing"

	"recruitline/internal/config"
	"recruitline/internal/listing"
	"recruitline/internal/logger"
)

func TestOpenMemorySeedsMockData(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, t.TempDir(), config.Default(), logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	openings, err := a.Engine.ListOpenings(ctx)
	if err != nil || len(openings) != len(seedOpenings) {
		t.Fatalf("expected seeded openings, got %d %v", len(openings), err)
	}
	groups, err := a.Engine.Waves(ctx, "op-backend", listing.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 2 || len(groups[0].Candidates) != 1 || groups[0].Candidates[0].ID != "cand-ada" || len(groups[1].Candidates) != 2 {
		t.Fatalf("unexpected backend waves %+v", groups)
	}
	rep, err := Seed(ctx, a.Engine)
	if err != nil || rep.Openings != 0 {
		t.Fatalf("second seed must be a no-op: %+v %v", rep, err)
	}
}

func TestOpenSQLiteWorkspaceStartsEmpty(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Database.Driver = config.DriverSQLite
	dir := t.TempDir()
	a, err := Open(ctx, dir, cfg, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	openings, err := a.Engine.ListOpenings(ctx)
	if err != nil || len(openings) != 0 {
		t.Fatalf("file store must start empty, got %d %v", len(openings), err)
	}
}
