package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"recruitline/internal/domain"
	"recruitline/internal/events"
	"recruitline/internal/listing"
	"recruitline/internal/repo"
	"recruitline/internal/waves"
)

type OpeningCreateOptions struct {
	ID          string `json:"id,omitempty" validate:"omitempty,max=64"`
	Title       string `json:"title" validate:"required,max=200"`
	CompanyName string `json:"company_name,omitempty" validate:"omitempty,max=200"`
	ActorID     string `json:"-"`
}

// CreateOpening opens a new job opening with an empty wave history; its
// first round is implicit until the opening is closed.
func (e Engine) CreateOpening(ctx context.Context, opts OpeningCreateOptions) (domain.JobOpening, error) {
	opts.Title = strings.TrimSpace(opts.Title)
	if err := domain.ValidateStruct(opts); err != nil {
		return domain.JobOpening{}, err
	}
	o := domain.JobOpening{
		ID:          opts.ID,
		Title:       opts.Title,
		CompanyName: opts.CompanyName,
		Status:      domain.OpeningOpen,
		CreatedAt:   e.now(),
		Waves:       []domain.Wave{},
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return domain.JobOpening{}, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.OpeningByTitleTx(ctx, tx, o.Title); err == nil {
		return domain.JobOpening{}, domain.Invalid("title", fmt.Sprintf("an opening titled %q already exists", o.Title))
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.JobOpening{}, err
	}
	if err := e.Repo.InsertOpening(ctx, tx, o); err != nil {
		return domain.JobOpening{}, err
	}
	if err := e.Events.Append(ctx, tx, "opening.created", "opening", o.ID, opts.ActorID, events.EventPayload{"title": o.Title}); err != nil {
		return domain.JobOpening{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.JobOpening{}, err
	}
	return o, nil
}

func (e Engine) GetOpening(ctx context.Context, id string) (domain.JobOpening, error) {
	return e.Repo.GetOpening(ctx, id)
}

func (e Engine) ListOpenings(ctx context.Context) ([]domain.JobOpening, error) {
	return e.Repo.ListOpenings(ctx)
}

// CloseOpening ends the current wave. An opening that never had an explicit
// wave gets its implicit first round recorded as wave 1.
func (e Engine) CloseOpening(ctx context.Context, id, actorID string) (domain.JobOpening, error) {
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return domain.JobOpening{}, err
	}
	defer tx.Rollback()

	o, err := e.Repo.GetOpeningTx(ctx, tx, id)
	if err != nil {
		return domain.JobOpening{}, err
	}
	if o.Status == domain.OpeningClosed {
		return domain.JobOpening{}, domain.Invalid("status", fmt.Sprintf("opening %s is already closed", id))
	}
	now := e.now()
	wave := 0
	if cur, ok := waves.Current(o); ok {
		if err := e.Repo.CloseWave(ctx, tx, o.ID, cur.Number, now); err != nil {
			return domain.JobOpening{}, err
		}
		wave = cur.Number
	} else if len(o.Waves) == 0 {
		if err := e.Repo.InsertWave(ctx, tx, o.ID, domain.Wave{Number: 1, OpenedAt: o.CreatedAt, ClosedAt: &now}); err != nil {
			return domain.JobOpening{}, err
		}
		wave = 1
	}
	if err := e.Repo.UpdateOpeningStatus(ctx, tx, o.ID, domain.OpeningClosed); err != nil {
		return domain.JobOpening{}, err
	}
	if err := e.Events.Append(ctx, tx, "opening.closed", "opening", o.ID, actorID, events.EventPayload{"wave_number": wave}); err != nil {
		return domain.JobOpening{}, err
	}
	o, err = e.Repo.GetOpeningTx(ctx, tx, id)
	if err != nil {
		return domain.JobOpening{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.JobOpening{}, err
	}
	return o, nil
}

// ReopenOpening appends wave n+1 opened now.
func (e Engine) ReopenOpening(ctx context.Context, id, actorID string) (domain.JobOpening, error) {
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return domain.JobOpening{}, err
	}
	defer tx.Rollback()

	o, err := e.Repo.GetOpeningTx(ctx, tx, id)
	if err != nil {
		return domain.JobOpening{}, err
	}
	if o.Status == domain.OpeningOpen {
		return domain.JobOpening{}, domain.Invalid("status", fmt.Sprintf("opening %s is already open", id))
	}
	now := e.now()
	last := 0
	if n := len(o.Waves); n > 0 {
		last = o.Waves[n-1].Number
	} else {
		if err := e.Repo.InsertWave(ctx, tx, o.ID, domain.Wave{Number: 1, OpenedAt: o.CreatedAt, ClosedAt: &now}); err != nil {
			return domain.JobOpening{}, err
		}
		last = 1
	}
	next := domain.Wave{Number: last + 1, OpenedAt: now}
	if err := e.Repo.InsertWave(ctx, tx, o.ID, next); err != nil {
		return domain.JobOpening{}, err
	}
	if err := e.Repo.UpdateOpeningStatus(ctx, tx, o.ID, domain.OpeningOpen); err != nil {
		return domain.JobOpening{}, err
	}
	if err := e.Events.Append(ctx, tx, "opening.reopened", "opening", o.ID, actorID, events.EventPayload{"wave_number": next.Number}); err != nil {
		return domain.JobOpening{}, err
	}
	o, err = e.Repo.GetOpeningTx(ctx, tx, id)
	if err != nil {
		return domain.JobOpening{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.JobOpening{}, err
	}
	return o, nil
}

// Waves derives the opening's wave groups at the engine's clock.
func (e Engine) Waves(ctx context.Context, openingID string, f listing.Filter) ([]waves.Group, error) {
	o, err := e.Repo.GetOpening(ctx, openingID)
	if err != nil {
		return nil, err
	}
	cs, err := e.Repo.ListCandidates(ctx, repo.CandidateFilter{})
	if err != nil {
		return nil, err
	}
	f.OpeningID = ""
	return waves.Derive(o, cs, e.now(), f), nil
}
