// Package batch drains bulk approve/reject selections one candidate at a
// time, with one feedback submission per candidate.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"recruitline/internal/domain"
	"recruitline/internal/feedback"
	"recruitline/internal/repo"
)

type State string

const (
	StatePresenting State = "presenting"
	StateCompleted  State = "completed"
	StateCanceled   State = "canceled"
)

// Item is the decision committed for the current candidate of a batch.
type Item struct {
	BatchID     string
	CandidateID string
	Action      domain.Action
	Screen      domain.Screen
	ActorID     string
	Feedback    feedback.Submission
}

// Summary describes a batch when it starts or finishes.
type Summary struct {
	ID        string        `json:"id"`
	Action    domain.Action `json:"action"`
	Screen    domain.Screen `json:"screen"`
	ActorID   string        `json:"actor_id"`
	State     State         `json:"state"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
}

// Pipeline is what a batch needs from the candidate pipeline.
type Pipeline interface {
	Candidate(ctx context.Context, id string) (domain.Candidate, error)
	Templates(ctx context.Context) ([]domain.FeedbackTemplate, error)
	// CommitQueued sends the item's feedback and then applies its side effect.
	CommitQueued(ctx context.Context, it Item) error
	BatchEvent(ctx context.Context, evtType string, s Summary) error
}

// Progress is returned after every batch operation.
type Progress struct {
	BatchID   string `json:"batch_id"`
	State     State  `json:"state"`
	Done      bool   `json:"done"`
	Remaining int    `json:"remaining"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Total     int    `json:"total"`
	Current   string `json:"current,omitempty"`
}

// Processor keeps the batches that are still presenting.
type Processor struct {
	Pipeline Pipeline
	Log      logrus.FieldLogger
	// Notify receives one summary per completed batch.
	Notify func(Summary)

	mu          sync.Mutex
	batches     map[string]*Batch
	subscribers map[string]func(Summary)
}

func NewProcessor(p Pipeline, log logrus.FieldLogger) *Processor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Processor{Pipeline: p, Log: log, batches: map[string]*Batch{}}
}

// Start opens a batch over ids in selection order with duplicates removed.
func (p *Processor) Start(ctx context.Context, ids []string, action domain.Action, screen domain.Screen, actorID string) (*Batch, error) {
	if !action.Valid() {
		return nil, domain.Invalid("action", fmt.Sprintf("unknown action %q", action))
	}
	if !screen.Valid() {
		return nil, domain.Invalid("screen", fmt.Sprintf("unknown screen %q", screen))
	}
	pending := dedupe(ids)
	if len(pending) == 0 {
		return nil, domain.Invalid("ids", "selection is empty")
	}
	b := &Batch{
		ID:      uuid.NewString(),
		Action:  action,
		Screen:  screen,
		ActorID: actorID,
		p:       p,
		pending: pending,
		total:   len(pending),
		state:   StatePresenting,
	}
	if err := p.Pipeline.BatchEvent(ctx, "batch.started", b.summary()); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.batches[b.ID] = b
	p.mu.Unlock()
	b.log().WithField("total", b.total).Info("batch started")
	return b, nil
}

// Get returns a presenting batch. Finished batches are forgotten.
func (p *Processor) Get(id string) (*Batch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", id, repo.ErrNotFound)
	}
	return b, nil
}

// Active lists the batches still presenting.
func (p *Processor) Active() []Summary {
	p.mu.Lock()
	open := make([]*Batch, 0, len(p.batches))
	for _, b := range p.batches {
		open = append(open, b)
	}
	p.mu.Unlock()
	// Summary takes b.mu, which a finishing batch holds while it calls forget.
	res := make([]Summary, 0, len(open))
	for _, b := range open {
		res = append(res, b.Summary())
	}
	return res
}

// Subscribe adds fn to the listeners of completed batches. A key is
// registered once; later calls with the same key are ignored and report false.
func (p *Processor) Subscribe(key string, fn func(Summary)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.subscribers[key]; ok {
		return false
	}
	if p.subscribers == nil {
		p.subscribers = map[string]func(Summary){}
	}
	p.subscribers[key] = fn
	return true
}

// Publish hands s to Notify and every subscriber.
func (p *Processor) Publish(s Summary) {
	if p.Notify != nil {
		p.Notify(s)
	}
	p.mu.Lock()
	subs := make([]func(Summary), 0, len(p.subscribers))
	for _, fn := range p.subscribers {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

func (p *Processor) forget(id string) {
	p.mu.Lock()
	delete(p.batches, id)
	p.mu.Unlock()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Batch is one bulk action. pending[0] is the current candidate.
type Batch struct {
	ID      string
	Action  domain.Action
	Screen  domain.Screen
	ActorID string

	p         *Processor
	mu        sync.Mutex
	pending   []string
	total     int
	processed int
	skipped   int
	state     State
}

func (b *Batch) log() logrus.FieldLogger {
	return b.p.Log.WithFields(logrus.Fields{"batch_id": b.ID, "action": b.Action})
}

func (b *Batch) summary() Summary {
	return Summary{
		ID:        b.ID,
		Action:    b.Action,
		Screen:    b.Screen,
		ActorID:   b.ActorID,
		State:     b.state,
		Total:     b.total,
		Processed: b.processed,
		Skipped:   b.skipped,
	}
}

func (b *Batch) progress() Progress {
	pr := Progress{
		BatchID:   b.ID,
		State:     b.state,
		Done:      b.state != StatePresenting,
		Remaining: len(b.pending),
		Processed: b.processed,
		Skipped:   b.skipped,
		Total:     b.total,
	}
	if len(b.pending) > 0 {
		pr.Current = b.pending[0]
	}
	return pr
}

func (b *Batch) Summary() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.summary()
}

func (b *Batch) Progress() Progress {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progress()
}

func (b *Batch) ensurePresenting() error {
	if b.state != StatePresenting {
		return domain.Invalid("batch", fmt.Sprintf("batch %s is %s", b.ID, b.state))
	}
	return nil
}

// Submit sends fb to the current candidate and commits the batch action for
// it. On failure the current candidate stays current.
func (b *Batch) Submit(ctx context.Context, fb feedback.Submission) (Progress, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensurePresenting(); err != nil {
		return b.progress(), err
	}
	current := b.pending[0]
	err := b.p.Pipeline.CommitQueued(ctx, Item{
		BatchID:     b.ID,
		CandidateID: current,
		Action:      b.Action,
		Screen:      b.Screen,
		ActorID:     b.ActorID,
		Feedback:    fb,
	})
	switch {
	case errors.Is(err, repo.ErrNotFound):
		b.log().WithField("candidate_id", current).Warn("candidate no longer exists, skipping")
		b.skipped++
	case err != nil:
		b.log().WithError(err).WithField("candidate_id", current).Warn("submission failed, candidate stays current")
		return b.progress(), err
	default:
		b.processed++
	}
	b.advance(ctx)
	return b.progress(), nil
}

func (b *Batch) advance(ctx context.Context) {
	b.pending = b.pending[1:]
	if len(b.pending) > 0 {
		return
	}
	b.state = StateCompleted
	b.finish(ctx, "batch.completed")
	b.p.Publish(b.summary())
	b.log().WithFields(logrus.Fields{"processed": b.processed, "skipped": b.skipped}).Info("batch completed")
}

func (b *Batch) finish(ctx context.Context, evtType string) {
	b.p.forget(b.ID)
	if err := b.p.Pipeline.BatchEvent(ctx, evtType, b.summary()); err != nil {
		b.log().WithError(err).Error("record batch event")
	}
}

// Cancel drops the current and remaining candidates without touching them.
func (b *Batch) Cancel(ctx context.Context) (Progress, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensurePresenting(); err != nil {
		return b.progress(), err
	}
	dropped := len(b.pending)
	b.pending = nil
	b.state = StateCanceled
	b.finish(ctx, "batch.canceled")
	b.log().WithField("dropped", dropped).Info("batch canceled")
	return b.progress(), nil
}

// skipStale advances past candidates that were removed since the batch
// started and returns the live current candidate.
func (b *Batch) skipStale(ctx context.Context) (domain.Candidate, error) {
	for b.state == StatePresenting {
		c, err := b.p.Pipeline.Candidate(ctx, b.pending[0])
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return domain.Candidate{}, err
		}
		b.log().WithField("candidate_id", b.pending[0]).Warn("candidate no longer exists, skipping")
		b.skipped++
		b.advance(ctx)
	}
	return domain.Candidate{}, b.ensurePresenting()
}

// Current returns the candidate awaiting feedback.
func (b *Batch) Current(ctx context.Context) (domain.Candidate, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensurePresenting(); err != nil {
		return domain.Candidate{}, err
	}
	return b.skipStale(ctx)
}

// Offered returns the templates offered for the batch action.
func (b *Batch) Offered(ctx context.Context) ([]domain.FeedbackTemplate, error) {
	catalog, err := b.p.Pipeline.Templates(ctx)
	if err != nil {
		return nil, err
	}
	return feedback.Offered(catalog, b.Action), nil
}

// Draft pre-fills the form for the current candidate from one of the offered
// templates. An empty templateID yields an empty form.
func (b *Batch) Draft(ctx context.Context, templateID string) (domain.Candidate, feedback.Submission, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensurePresenting(); err != nil {
		return domain.Candidate{}, feedback.Submission{}, err
	}
	c, err := b.skipStale(ctx)
	if err != nil {
		return domain.Candidate{}, feedback.Submission{}, err
	}
	if templateID == "" {
		return c, feedback.Submission{}, nil
	}
	catalog, err := b.p.Pipeline.Templates(ctx)
	if err != nil {
		return c, feedback.Submission{}, err
	}
	for _, t := range feedback.Offered(catalog, b.Action) {
		if t.ID == templateID {
			return c, feedback.Draft(t, c), nil
		}
	}
	return c, feedback.Submission{}, domain.Invalid("template_id", fmt.Sprintf("template %s is not offered for %s", templateID, b.Action))
}
