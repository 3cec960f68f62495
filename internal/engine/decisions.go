package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"recruitline/internal/batch"
	"recruitline/internal/domain"
	"recruitline/internal/events"
	"recruitline/internal/feedback"
	"recruitline/internal/repo"
)

type DecideOptions struct {
	CandidateID     string              `json:"candidate_id"`
	Action          domain.Action       `json:"action"`
	Screen          domain.Screen       `json:"screen"`
	Feedback        feedback.Submission `json:"feedback"`
	ExpectedVersion int                 `json:"expected_version,omitempty"`
	ActorID         string              `json:"-"`
}

type DecisionResult struct {
	Candidate domain.Candidate       `json:"candidate"`
	Deleted   bool                   `json:"deleted"`
	Message   domain.FeedbackMessage `json:"message"`
}

func validateDecision(action domain.Action, screen domain.Screen) error {
	if !action.Valid() {
		return domain.Invalid("action", fmt.Sprintf("unknown action %q", action))
	}
	if !screen.Valid() {
		return domain.Invalid("screen", fmt.Sprintf("unknown screen %q", screen))
	}
	return nil
}

// Decide approves or rejects one candidate. Preconditions are checked before
// the feedback is sent, and the decision is committed only once the send
// succeeded.
func (e Engine) Decide(ctx context.Context, opts DecideOptions) (DecisionResult, error) {
	if err := validateDecision(opts.Action, opts.Screen); err != nil {
		return DecisionResult{}, err
	}
	if opts.Action == domain.ActionReject {
		if err := e.confirm(ctx, Prompt{Action: "reject", CandidateIDs: []string{opts.CandidateID}}); err != nil {
			return DecisionResult{}, err
		}
	}
	return e.decide(ctx, opts, "")
}

func checkVersion(c domain.Candidate, expected int) error {
	if expected != 0 && expected != c.Version {
		return fmt.Errorf("candidate %s at version %d, expected %d: %w", c.ID, c.Version, expected, repo.ErrConflict)
	}
	return nil
}

func (e Engine) decide(ctx context.Context, opts DecideOptions, batchID string) (DecisionResult, error) {
	log := e.log().WithFields(logrus.Fields{"candidate_id": opts.CandidateID, "action": opts.Action})
	if batchID != "" {
		log = log.WithField("batch_id", batchID)
	}
	c, err := e.Repo.GetCandidate(ctx, opts.CandidateID)
	if err != nil {
		return DecisionResult{}, fmt.Errorf("candidate %s: %w", opts.CandidateID, err)
	}
	if err := checkVersion(c, opts.ExpectedVersion); err != nil {
		return DecisionResult{}, err
	}
	catalog, err := e.Repo.ListTemplates(ctx, "")
	if err != nil {
		return DecisionResult{}, err
	}
	sub := opts.Feedback
	if err := sub.Validate(opts.Action, catalog); err != nil {
		return DecisionResult{}, err
	}
	msg := feedback.Message{
		CandidateID: c.ID,
		To:          c.Email,
		Action:      opts.Action,
		Subject:     feedback.Render(sub.Subject, c),
		Content:     feedback.Render(sub.Content, c),
		Attachment:  sub.Attachment,
	}
	if err := feedback.Deliver(ctx, e.sender(), msg); err != nil {
		log.WithError(err).Warn("feedback send failed")
		return DecisionResult{}, err
	}

	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return DecisionResult{}, err
	}
	defer tx.Rollback()

	c, err = e.candidateTx(ctx, tx, opts.CandidateID)
	if err != nil {
		return DecisionResult{}, err
	}
	if err := checkVersion(c, opts.ExpectedVersion); err != nil {
		return DecisionResult{}, err
	}
	now := e.now()
	record := domain.FeedbackMessage{
		ID:          uuid.NewString(),
		CandidateID: c.ID,
		TemplateID:  sub.TemplateID,
		BatchID:     batchID,
		Action:      opts.Action,
		Subject:     msg.Subject,
		Content:     msg.Content,
		Attachment:  msg.Attachment,
		ActorID:     opts.ActorID,
		SentAt:      now,
	}
	if record.ActorID == "" {
		record.ActorID = "system"
	}
	if err := e.Repo.InsertFeedbackMessage(ctx, tx, record); err != nil {
		return DecisionResult{}, err
	}
	if err := e.Events.Append(ctx, tx, "feedback.sent", "candidate", c.ID, opts.ActorID, events.EventPayload{
		"message_id":  record.ID,
		"template_id": record.TemplateID,
		"batch_id":    batchID,
	}); err != nil {
		return DecisionResult{}, err
	}

	res := DecisionResult{Message: record}
	payload := events.EventPayload{"screen": opts.Screen, "batch_id": batchID}
	evtType := "candidate.approved"
	switch {
	case opts.Action == domain.ActionApprove:
		c.Status = domain.StatusQualified
	case e.deletesOnReject(opts.Screen):
		evtType = "candidate.rejected"
		payload["deleted"] = true
		res.Deleted = true
	default:
		evtType = "candidate.rejected"
		payload["deleted"] = false
		c.Status = domain.StatusNotQualified
		c.Disposition = domain.DispositionRejected
	}
	if res.Deleted {
		if err := e.Repo.DeleteCandidate(ctx, tx, c.ID); err != nil {
			return DecisionResult{}, err
		}
	} else {
		c.UpdatedAt = now
		if c, err = e.Repo.UpdateCandidate(ctx, tx, c); err != nil {
			return DecisionResult{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, evtType, "candidate", c.ID, opts.ActorID, payload); err != nil {
		return DecisionResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return DecisionResult{}, err
	}
	res.Candidate = c
	log.WithField("deleted", res.Deleted).Info("decision committed")
	return res, nil
}

// ApproveMany starts a batch approving ids one feedback at a time.
func (e Engine) ApproveMany(ctx context.Context, ids []string, screen domain.Screen, actorID string) (*batch.Batch, error) {
	return e.startBatch(ctx, ids, domain.ActionApprove, screen, actorID)
}

// RejectMany starts a reject batch once the confirmation gate agrees.
func (e Engine) RejectMany(ctx context.Context, ids []string, screen domain.Screen, actorID string) (*batch.Batch, error) {
	if err := e.confirm(ctx, Prompt{Action: "reject", CandidateIDs: ids}); err != nil {
		return nil, err
	}
	return e.startBatch(ctx, ids, domain.ActionReject, screen, actorID)
}

func (e Engine) startBatch(ctx context.Context, ids []string, action domain.Action, screen domain.Screen, actorID string) (*batch.Batch, error) {
	if e.Batches == nil {
		return nil, errors.New("batch processor not configured")
	}
	return e.Batches.Start(ctx, ids, action, screen, actorID)
}

// Candidate, Templates, CommitQueued and BatchEvent make Engine a
// batch.Pipeline.

func (e Engine) Candidate(ctx context.Context, id string) (domain.Candidate, error) {
	return e.Repo.GetCandidate(ctx, id)
}

func (e Engine) Templates(ctx context.Context) ([]domain.FeedbackTemplate, error) {
	return e.Repo.ListTemplates(ctx, "")
}

func (e Engine) CommitQueued(ctx context.Context, it batch.Item) error {
	_, err := e.decide(ctx, DecideOptions{
		CandidateID: it.CandidateID,
		Action:      it.Action,
		Screen:      it.Screen,
		Feedback:    it.Feedback,
		ActorID:     it.ActorID,
	}, it.BatchID)
	return err
}

func (e Engine) BatchEvent(ctx context.Context, evtType string, s batch.Summary) error {
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, evtType, "batch", s.ID, s.ActorID, events.EventPayload{
		"action":    s.Action,
		"screen":    s.Screen,
		"state":     s.State,
		"total":     s.Total,
		"processed": s.Processed,
		"skipped":   s.Skipped,
	}); err != nil {
		return err
	}
	return tx.Commit()
}
