package app

import (
	"context"
	"time"

	"recruitline/internal/domain"
	"recruitline/internal/engine"
)

// SeedReport counts what Seed created.
type SeedReport struct {
	Openings   int `json:"openings"`
	Candidates int `json:"candidates"`
	Templates  int `json:"templates"`
}

func at(month time.Month, day int) time.Time {
	return time.Date(2024, month, day, 10, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

var seedOpenings = []domain.JobOpening{
	{
		ID: "op-backend", Title: "Backend Engineer", CompanyName: "Acme", Status: domain.OpeningOpen, CreatedAt: at(1, 1),
		Waves: []domain.Wave{
			{Number: 1, OpenedAt: at(1, 1), ClosedAt: ptr(at(1, 15))},
			{Number: 2, OpenedAt: at(1, 15)},
		},
	},
	{ID: "op-designer", Title: "Product Designer", CompanyName: "Acme", Status: domain.OpeningOpen, CreatedAt: at(2, 1), Waves: []domain.Wave{}},
	{
		ID: "op-analyst", Title: "Data Analyst", CompanyName: "Acme", Status: domain.OpeningClosed, CreatedAt: at(1, 10),
		Waves: []domain.Wave{{Number: 1, OpenedAt: at(1, 10), ClosedAt: ptr(at(2, 10))}},
	},
}

var seedCandidates = []engine.CandidateCreateOptions{
	{ID: "cand-ada", OpeningID: "op-backend", Name: "Ada Lovelace", Email: "ada@example.com", Role: "Senior Backend Engineer", AppliedAt: at(1, 10), Skills: []string{"go", "postgres"}},
	{ID: "cand-brian", OpeningID: "op-backend", Name: "Brian Kernighan", Email: "brian@example.com", AppliedAt: at(1, 20), Skills: []string{"c", "awk"}},
	{ID: "cand-grace", OpeningID: "op-backend", Name: "Grace Hopper", Email: "grace@example.com", AppliedAt: at(1, 22), Stage: domain.StageCVReview, Skills: []string{"cobol"}},
	{ID: "cand-linus", OpeningID: "op-designer", Name: "Linus Lee", Email: "linus@example.com", AppliedAt: at(2, 3), Skills: []string{"figma"}},
	{ID: "cand-mae", OpeningID: "op-designer", Name: "Mae Jemison", Email: "mae@example.com", AppliedAt: at(2, 5), Stage: domain.StageReadyForInterview},
	{ID: "cand-kat", OpeningID: "op-analyst", Name: "Katherine Johnson", Email: "kat@example.com", AppliedAt: at(1, 12), Skills: []string{"sql", "r"}},
}

var seedTemplates = []engine.TemplateCreateOptions{
	{ID: "tpl-accept", Title: "Standard acceptance", Type: domain.TemplateAcceptance, Subject: "Your application for {position}", Content: "Hi {candidate_name},\n\nWe would like to move forward with your application for {position}."},
	{ID: "tpl-accept-fast", Title: "Fast track", Type: domain.TemplateAcceptance, Subject: "Next steps for {position}", Content: "Hi {candidate_name},\n\nWe are excited to invite you straight to interviews."},
	{ID: "tpl-reject", Title: "Standard rejection", Type: domain.TemplateRejection, Subject: "Your application for {position}", Content: "Hi {candidate_name},\n\nThank you for applying. We will not be moving forward at this time."},
	{ID: "tpl-interview", Title: "Interview invite", Type: domain.TemplateInterview, Subject: "Interview for {position}", Content: "Hi {candidate_name},\n\nPlease pick a slot for your interview."},
}

// Seed loads the mock openings, candidates and templates into an empty
// store. A store that already has openings is left alone.
func Seed(ctx context.Context, e engine.Engine) (SeedReport, error) {
	var rep SeedReport
	existing, err := e.Repo.ListOpenings(ctx)
	if err != nil {
		return rep, err
	}
	if len(existing) > 0 {
		return rep, nil
	}
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return rep, err
	}
	defer tx.Rollback()
	for _, o := range seedOpenings {
		if err := e.Repo.InsertOpening(ctx, tx, o); err != nil {
			return rep, err
		}
		if err := e.Events.Append(ctx, tx, "opening.created", "opening", o.ID, "seed", nil); err != nil {
			return rep, err
		}
		rep.Openings++
	}
	if err := tx.Commit(); err != nil {
		return rep, err
	}
	for _, c := range seedCandidates {
		c.ActorID = "seed"
		if _, err := e.CreateCandidate(ctx, c); err != nil {
			return rep, err
		}
		rep.Candidates++
	}
	for _, t := range seedTemplates {
		t.ActorID = "seed"
		if _, err := e.CreateTemplate(ctx, t); err != nil {
			return rep, err
		}
		rep.Templates++
	}
	return rep, nil
}
