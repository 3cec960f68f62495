package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"recruitline/internal/domain"
	"recruitline/internal/events"
	"recruitline/internal/listing"
	"recruitline/internal/repo"
	"recruitline/internal/waves"
)

type CandidateCreateOptions struct {
	ID        string       `json:"id,omitempty" validate:"omitempty,max=64"`
	OpeningID string       `json:"opening_id,omitempty" validate:"required_without=FormTitle"`
	FormTitle string       `json:"form_title,omitempty"`
	Name      string       `json:"name" validate:"required,max=200"`
	Email     string       `json:"email,omitempty" validate:"omitempty,email"`
	Phone     string       `json:"phone,omitempty" validate:"omitempty,max=32"`
	Role      string       `json:"role,omitempty" validate:"omitempty,max=200"`
	AppliedAt time.Time    `json:"applied_at,omitempty"`
	Stage     domain.Stage `json:"stage,omitempty"`
	Notes     string       `json:"notes,omitempty"`
	Skills    []string     `json:"skills,omitempty"`
	ActorID   string       `json:"-"`
}

// CreateCandidate records an application. The form title is resolved from
// the opening; a title without a known opening is kept as given.
func (e Engine) CreateCandidate(ctx context.Context, opts CandidateCreateOptions) (domain.Candidate, error) {
	opts.Name = strings.TrimSpace(opts.Name)
	if err := domain.ValidateStruct(opts); err != nil {
		return domain.Candidate{}, err
	}
	if opts.Stage == "" {
		opts.Stage = domain.StageApplied
	}
	if !opts.Stage.Valid() {
		return domain.Candidate{}, domain.Invalid("stage", fmt.Sprintf("unknown stage %q", opts.Stage))
	}
	now := e.now()
	c := domain.Candidate{
		ID:          opts.ID,
		OpeningID:   opts.OpeningID,
		FormTitle:   opts.FormTitle,
		Name:        opts.Name,
		Email:       opts.Email,
		Phone:       opts.Phone,
		Role:        opts.Role,
		AppliedAt:   opts.AppliedAt.UTC(),
		Stage:       opts.Stage,
		Disposition: domain.DispositionActive,
		Notes:       opts.Notes,
		Skills:      opts.Skills,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if opts.AppliedAt.IsZero() {
		c.AppliedAt = now
	}
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Candidate{}, err
	}
	defer tx.Rollback()

	if c.OpeningID != "" {
		o, err := e.Repo.GetOpeningTx(ctx, tx, c.OpeningID)
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Candidate{}, domain.Invalid("opening_id", fmt.Sprintf("opening %s not found", c.OpeningID))
		}
		if err != nil {
			return domain.Candidate{}, err
		}
		c.FormTitle = o.Title
	} else if o, err := e.Repo.OpeningByTitleTx(ctx, tx, c.FormTitle); err == nil {
		c.OpeningID = o.ID
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Candidate{}, err
	}
	if err := e.Repo.InsertCandidate(ctx, tx, c); err != nil {
		return domain.Candidate{}, err
	}
	if err := e.Events.Append(ctx, tx, "candidate.created", "candidate", c.ID, opts.ActorID, events.EventPayload{"opening_id": c.OpeningID, "form_title": c.FormTitle}); err != nil {
		return domain.Candidate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Candidate{}, err
	}
	return c, nil
}

func (e Engine) GetCandidate(ctx context.Context, id string) (domain.Candidate, error) {
	return e.Repo.GetCandidate(ctx, id)
}

// ListCandidates filters the store and returns one page. size <= 0 uses the
// configured page size.
func (e Engine) ListCandidates(ctx context.Context, f listing.Filter, page, size int) (listing.Page[domain.Candidate], error) {
	cs, err := e.Repo.ListCandidates(ctx, repo.CandidateFilter{Disposition: f.Disposition})
	if err != nil {
		return listing.Page[domain.Candidate]{}, err
	}
	if size <= 0 && e.Config != nil {
		size = e.Config.Listing.PageSize
	}
	return listing.Paginate(listing.Apply(cs, f), page, size), nil
}

// mutateCandidate loads id inside a transaction, applies fn and records evtType.
// A missing candidate is reported as repo.ErrNotFound with nothing written.
func (e Engine) mutateCandidate(ctx context.Context, id string, expectedVersion int, evtType, actorID string, fn func(c *domain.Candidate) events.EventPayload) (domain.Candidate, error) {
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Candidate{}, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCandidateTx(ctx, tx, id)
	if err != nil {
		return domain.Candidate{}, err
	}
	if expectedVersion != 0 && expectedVersion != c.Version {
		return domain.Candidate{}, fmt.Errorf("candidate %s at version %d, expected %d: %w", id, c.Version, expectedVersion, repo.ErrConflict)
	}
	payload := fn(&c)
	c.UpdatedAt = e.now()
	c, err = e.Repo.UpdateCandidate(ctx, tx, c)
	if err != nil {
		return domain.Candidate{}, err
	}
	if err := e.Events.Append(ctx, tx, evtType, "candidate", c.ID, actorID, payload); err != nil {
		return domain.Candidate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Candidate{}, err
	}
	return c, nil
}

// SetStage overwrites the stage. An unknown id is a logged no-op and
// reports applied=false.
func (e Engine) SetStage(ctx context.Context, id string, stage domain.Stage, expectedVersion int, actorID string) (domain.Candidate, bool, error) {
	if !stage.Valid() {
		return domain.Candidate{}, false, domain.Invalid("stage", fmt.Sprintf("unknown stage %q", stage))
	}
	c, err := e.mutateCandidate(ctx, id, expectedVersion, "candidate.stage_changed", actorID, func(c *domain.Candidate) events.EventPayload {
		from := c.Stage
		c.Stage = stage
		return events.EventPayload{"from": from, "to": stage}
	})
	return e.noopIfMissing(c, err, id, "set_stage")
}

// TakeOut sends the candidate back to the applied stage.
func (e Engine) TakeOut(ctx context.Context, id string, expectedVersion int, actorID string) (domain.Candidate, bool, error) {
	c, err := e.mutateCandidate(ctx, id, expectedVersion, "candidate.taken_out", actorID, func(c *domain.Candidate) events.EventPayload {
		from := c.Stage
		c.Stage = domain.StageApplied
		return events.EventPayload{"from": from}
	})
	return e.noopIfMissing(c, err, id, "take_out")
}

func (e Engine) noopIfMissing(c domain.Candidate, err error, id, op string) (domain.Candidate, bool, error) {
	if errors.Is(err, repo.ErrNotFound) {
		e.log().WithFields(logrus.Fields{"candidate_id": id, "op": op}).Warn("candidate not found, nothing to do")
		return domain.Candidate{}, false, nil
	}
	if err != nil {
		return domain.Candidate{}, false, err
	}
	return c, true, nil
}

// Archive moves the candidate to the archived view once confirmed.
func (e Engine) Archive(ctx context.Context, id string, expectedVersion int, actorID string) (domain.Candidate, error) {
	if err := e.confirm(ctx, Prompt{Action: "archive", CandidateIDs: []string{id}}); err != nil {
		return domain.Candidate{}, err
	}
	c, err := e.mutateCandidate(ctx, id, expectedVersion, "candidate.archived", actorID, func(c *domain.Candidate) events.EventPayload {
		from := c.Disposition
		c.Disposition = domain.DispositionArchived
		return events.EventPayload{"from": from}
	})
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Candidate{}, fmt.Errorf("candidate %s: %w", id, err)
	}
	return c, err
}

type TransferOptions struct {
	IDs              []string `json:"ids" validate:"required,min=1,dive,required"`
	TargetOpeningID  string   `json:"target_opening_id" validate:"required"`
	KeepPreviousData bool     `json:"keep_previous_data"`
	ActorID          string   `json:"-"`
}

// Transfer moves every candidate to the target opening, or none of them.
// With KeepPreviousData the previous job data is kept as a prior-job
// snapshot before it is overwritten.
func (e Engine) Transfer(ctx context.Context, opts TransferOptions) ([]domain.Candidate, error) {
	if err := domain.ValidateStruct(opts); err != nil {
		return nil, err
	}
	ids := uniqueIDs(opts.IDs)
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	target, err := e.Repo.GetOpeningTx(ctx, tx, opts.TargetOpeningID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, domain.Invalid("target_opening_id", fmt.Sprintf("opening %s not found", opts.TargetOpeningID))
	}
	if err != nil {
		return nil, err
	}
	found, err := e.Repo.ListCandidatesTx(ctx, tx, repo.CandidateFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Candidate, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("candidate %s: %w", id, repo.ErrNotFound)
		}
		if waves.Belongs(target, c) {
			return nil, domain.Invalid("ids", fmt.Sprintf("candidate %s already belongs to %s", c.Name, target.Title))
		}
	}
	now := e.now()
	res := make([]domain.Candidate, 0, len(ids))
	for _, id := range ids {
		c := byID[id]
		from := c.OpeningID
		if opts.KeepPreviousData {
			c.PriorJobs = append(c.PriorJobs, domain.PriorJob{
				OpeningID:     c.OpeningID,
				FormTitle:     c.FormTitle,
				Stage:         c.Stage,
				Status:        c.Status,
				TransferredAt: now,
			})
		}
		c.OpeningID = target.ID
		c.FormTitle = target.Title
		c.UpdatedAt = now
		c, err = e.Repo.UpdateCandidate(ctx, tx, c)
		if err != nil {
			return nil, err
		}
		if err := e.Events.Append(ctx, tx, "candidate.transferred", "candidate", c.ID, opts.ActorID, events.EventPayload{
			"from_opening_id":    from,
			"to_opening_id":      target.ID,
			"keep_previous_data": opts.KeepPreviousData,
		}); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type TransitionKind string

const (
	TransitionSetStage TransitionKind = "set_stage"
	TransitionTakeOut  TransitionKind = "take_out"
	TransitionTransfer TransitionKind = "transfer"
	TransitionArchive  TransitionKind = "archive"
)

// TransitionRequest is a single-candidate transition with its payload.
type TransitionRequest struct {
	CandidateID      string         `json:"candidate_id"`
	Kind             TransitionKind `json:"kind"`
	Stage            domain.Stage   `json:"stage,omitempty"`
	TargetOpeningID  string         `json:"target_opening_id,omitempty"`
	KeepPreviousData bool           `json:"keep_previous_data,omitempty"`
	ExpectedVersion  int            `json:"expected_version,omitempty"`
	ActorID          string         `json:"-"`
}

type TransitionResult struct {
	Applied   bool              `json:"applied"`
	Candidate *domain.Candidate `json:"candidate,omitempty"`
}

// Transition dispatches one of set_stage, take_out, transfer or archive.
func (e Engine) Transition(ctx context.Context, req TransitionRequest) (TransitionResult, error) {
	var (
		c       domain.Candidate
		applied bool
		err     error
	)
	switch req.Kind {
	case TransitionSetStage:
		c, applied, err = e.SetStage(ctx, req.CandidateID, req.Stage, req.ExpectedVersion, req.ActorID)
	case TransitionTakeOut:
		c, applied, err = e.TakeOut(ctx, req.CandidateID, req.ExpectedVersion, req.ActorID)
	case TransitionTransfer:
		var moved []domain.Candidate
		moved, err = e.Transfer(ctx, TransferOptions{
			IDs:              []string{req.CandidateID},
			TargetOpeningID:  req.TargetOpeningID,
			KeepPreviousData: req.KeepPreviousData,
			ActorID:          req.ActorID,
		})
		if err == nil && len(moved) == 1 {
			c, applied = moved[0], true
		}
	case TransitionArchive:
		c, err = e.Archive(ctx, req.CandidateID, req.ExpectedVersion, req.ActorID)
		applied = err == nil
	default:
		return TransitionResult{}, domain.Invalid("kind", fmt.Sprintf("unknown transition %q", req.Kind))
	}
	if err != nil || !applied {
		return TransitionResult{Applied: false}, err
	}
	return TransitionResult{Applied: true, Candidate: &c}, nil
}

// candidateTx reads id inside tx and wraps a miss with the id.
func (e Engine) candidateTx(ctx context.Context, tx *sqlx.Tx, id string) (domain.Candidate, error) {
	c, err := e.Repo.GetCandidateTx(ctx, tx, id)
	if err != nil {
		return domain.Candidate{}, fmt.Errorf("candidate %s: %w", id, err)
	}
	return c, nil
}
