package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"recruitline/internal/domain"
	"recruitline/internal/feedback"
	"recruitline/internal/logger"
	"recruitline/internal/repo"
)

type fakePipeline struct {
	mu         sync.Mutex
	candidates map[string]domain.Candidate
	templates  []domain.FeedbackTemplate
	failOn     map[string]error
	committed  []string
	events     []string
}

func newFake(ids ...string) *fakePipeline {
	f := &fakePipeline{candidates: map[string]domain.Candidate{}, failOn: map[string]error{}}
	for _, id := range ids {
		f.candidates[id] = domain.Candidate{ID: id, Name: "Name " + id, FormTitle: "Backend Engineer"}
	}
	f.templates = []domain.FeedbackTemplate{
		{ID: "rej", Type: domain.TemplateRejection, Subject: "Sorry", Content: "No"},
		{ID: "acc", Type: domain.TemplateAcceptance, Subject: "Hi {candidate_name}", Content: "Welcome to {position}"},
	}
	return f
}

func (f *fakePipeline) Candidate(_ context.Context, id string) (domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[id]
	if !ok {
		return domain.Candidate{}, repo.ErrNotFound
	}
	return c, nil
}

func (f *fakePipeline) Templates(context.Context) ([]domain.FeedbackTemplate, error) {
	return f.templates, nil
}

func (f *fakePipeline) CommitQueued(_ context.Context, it Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[it.CandidateID]; err != nil {
		return err
	}
	c, ok := f.candidates[it.CandidateID]
	if !ok {
		return fmt.Errorf("candidate %s: %w", it.CandidateID, repo.ErrNotFound)
	}
	c.Status = domain.StatusQualified
	f.candidates[it.CandidateID] = c
	f.committed = append(f.committed, it.CandidateID)
	return nil
}

func (f *fakePipeline) BatchEvent(_ context.Context, evtType string, _ Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evtType)
	return nil
}

var fb = feedback.Submission{Subject: "s", Content: "c"}

func newProcessor(f *fakePipeline) *Processor {
	return NewProcessor(f, logger.Discard())
}

func TestBatchExhaustion(t *testing.T) {
	f := newFake("c1", "c2", "c3")
	p := newProcessor(f)
	var notified []Summary
	p.Notify = func(s Summary) { notified = append(notified, s) }
	ctx := context.Background()
	b, err := p.Start(ctx, []string{"c3", "c1", "c3", "c2"}, domain.ActionApprove, domain.ScreenNewCandidates, "tester")
	if err != nil {
		t.Fatal(err)
	}
	prev := b.Progress().Remaining
	if prev != 3 {
		t.Fatalf("expected duplicates removed, remaining %d", prev)
	}
	for i := 0; i < 3; i++ {
		pr, err := b.Submit(ctx, fb)
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if pr.Remaining != prev-1 || pr.Remaining < 0 {
			t.Fatalf("remaining must drop by one: %d -> %d", prev, pr.Remaining)
		}
		prev = pr.Remaining
		if pr.Done != (i == 2) {
			t.Fatalf("unexpected done=%v at %d", pr.Done, i)
		}
	}
	if got := fmt.Sprint(f.committed); got != "[c3 c1 c2]" {
		t.Fatalf("expected selection order, got %s", got)
	}
	if len(notified) != 1 || notified[0].Total != 3 || notified[0].Processed != 3 {
		t.Fatalf("expected one summary notification, got %+v", notified)
	}
	if _, err := b.Submit(ctx, fb); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("submit after completion must fail validation, got %v", err)
	}
	if _, err := p.Get(b.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("completed batch must be forgotten")
	}
	if got := fmt.Sprint(f.events); got != "[batch.started batch.completed]" {
		t.Fatalf("unexpected events %s", got)
	}
}

func TestFailureLeavesItemCurrent(t *testing.T) {
	f := newFake("c1", "c2", "c3")
	f.failOn["c2"] = &feedback.TransientSendError{CandidateID: "c2", Err: errors.New("gateway down")}
	p := newProcessor(f)
	ctx := context.Background()
	b, _ := p.Start(ctx, []string{"c1", "c2", "c3"}, domain.ActionApprove, domain.ScreenNewCandidates, "")
	if _, err := b.Submit(ctx, fb); err != nil {
		t.Fatal(err)
	}
	pr, err := b.Submit(ctx, fb)
	var tse *feedback.TransientSendError
	if !errors.As(err, &tse) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if pr.Current != "c2" || pr.Remaining != 2 {
		t.Fatalf("failed item must stay current: %+v", pr)
	}
	if f.candidates["c1"].Status != domain.StatusQualified {
		t.Fatalf("earlier item must keep its effect")
	}
	delete(f.failOn, "c2")
	pr, err = b.Submit(ctx, fb)
	if err != nil || pr.Current != "c3" {
		t.Fatalf("retry must advance: %+v %v", pr, err)
	}
}

func TestCancelLeavesRemainingUntouched(t *testing.T) {
	f := newFake("c1", "c2", "c3")
	p := newProcessor(f)
	ctx := context.Background()
	b, _ := p.Start(ctx, []string{"c1", "c2", "c3"}, domain.ActionApprove, domain.ScreenNewCandidates, "")
	b.Submit(ctx, fb)
	pr, err := b.Cancel(ctx)
	if err != nil || !pr.Done || pr.State != StateCanceled || pr.Remaining != 0 {
		t.Fatalf("unexpected cancel progress %+v %v", pr, err)
	}
	if f.candidates["c2"].Status != domain.StatusUndecided || f.candidates["c3"].Status != domain.StatusUndecided {
		t.Fatalf("canceled candidates must not be touched")
	}
	if f.candidates["c1"].Status != domain.StatusQualified {
		t.Fatalf("committed candidate must stay committed")
	}
	if _, err := b.Cancel(ctx); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("second cancel must fail validation")
	}
}

func TestSubscribersHearCompletionOnce(t *testing.T) {
	f := newFake("c1", "c2")
	p := newProcessor(f)
	ctx := context.Background()
	var got []Summary
	if !p.Subscribe("audit", func(s Summary) { got = append(got, s) }) {
		t.Fatalf("expected first subscribe to register")
	}
	if p.Subscribe("audit", func(s Summary) { got = append(got, s) }) {
		t.Fatalf("expected duplicate key to be ignored")
	}

	canceled, _ := p.Start(ctx, []string{"c1"}, domain.ActionApprove, domain.ScreenNewCandidates, "")
	canceled.Cancel(ctx)
	if len(got) != 0 {
		t.Fatalf("canceled batch must not publish, got %+v", got)
	}

	b, _ := p.Start(ctx, []string{"c1", "c2"}, domain.ActionApprove, domain.ScreenNewCandidates, "")
	b.Submit(ctx, fb)
	b.Submit(ctx, fb)
	if len(got) != 1 || got[0].ID != b.ID || got[0].Processed != 2 {
		t.Fatalf("expected one completion summary, got %+v", got)
	}
}

func TestStaleCandidateIsSkipped(t *testing.T) {
	f := newFake("c1", "c2", "c3")
	p := newProcessor(f)
	ctx := context.Background()
	b, _ := p.Start(ctx, []string{"c1", "c2", "c3"}, domain.ActionApprove, domain.ScreenNewCandidates, "")
	delete(f.candidates, "c1")
	pr, err := b.Submit(ctx, fb)
	if err != nil || pr.Current != "c2" || pr.Skipped != 1 {
		t.Fatalf("stale candidate must be skipped: %+v %v", pr, err)
	}
	delete(f.candidates, "c2")
	c, _, err := b.Draft(ctx, "")
	if err != nil || c.ID != "c3" {
		t.Fatalf("draft must skip stale candidates: %+v %v", c, err)
	}
}

func TestDraftAndOffered(t *testing.T) {
	f := newFake("c1")
	p := newProcessor(f)
	ctx := context.Background()
	b, _ := p.Start(ctx, []string{"c1"}, domain.ActionApprove, domain.ScreenInReview, "")
	offered, err := b.Offered(ctx)
	if err != nil || len(offered) != 1 || offered[0].ID != "acc" {
		t.Fatalf("unexpected offered %+v %v", offered, err)
	}
	_, sub, err := b.Draft(ctx, "acc")
	if err != nil {
		t.Fatal(err)
	}
	if sub.Subject != "Hi Name c1" || sub.Content != "Welcome to Backend Engineer" {
		t.Fatalf("unexpected draft %+v", sub)
	}
	if _, _, err := b.Draft(ctx, "rej"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("rejection template must not be offered for approve")
	}
}

func TestStartValidation(t *testing.T) {
	p := newProcessor(newFake())
	ctx := context.Background()
	if _, err := p.Start(ctx, nil, domain.ActionApprove, domain.ScreenNewCandidates, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty selection must fail validation")
	}
	if _, err := p.Start(ctx, []string{"a"}, "promote", domain.ScreenNewCandidates, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown action must fail validation")
	}
}

func TestSubmissionsAreSerialized(t *testing.T) {
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%02d", i)
	}
	f := newFake(ids...)
	p := newProcessor(f)
	ctx := context.Background()
	b, _ := p.Start(ctx, ids, domain.ActionApprove, domain.ScreenNewCandidates, "")
	var wg sync.WaitGroup
	for i := 0; i < len(ids); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Submit(ctx, fb)
		}()
	}
	wg.Wait()
	if len(f.committed) != len(ids) {
		t.Fatalf("expected %d commits, got %d", len(ids), len(f.committed))
	}
	if got := fmt.Sprint(f.committed); got != fmt.Sprint(ids) {
		t.Fatalf("commits out of order: %s", got)
	}
}

type blockingPipeline struct {
	*fakePipeline
	entered chan struct{}
	release chan struct{}
}

func (b *blockingPipeline) CommitQueued(ctx context.Context, it Item) error {
	close(b.entered)
	<-b.release
	return b.fakePipeline.CommitQueued(ctx, it)
}

func TestActiveDuringFinalSubmit(t *testing.T) {
	bp := &blockingPipeline{fakePipeline: newFake("c1"), entered: make(chan struct{}), release: make(chan struct{})}
	p := NewProcessor(bp, logger.Discard())
	ctx := context.Background()
	b, err := p.Start(ctx, []string{"c1"}, domain.ActionApprove, domain.ScreenNewCandidates, "")
	if err != nil {
		t.Fatal(err)
	}
	submitted := make(chan Progress, 1)
	go func() {
		pr, _ := b.Submit(ctx, fb)
		submitted <- pr
	}()
	<-bp.entered
	listed := make(chan []Summary, 1)
	go func() { listed <- p.Active() }()
	time.Sleep(20 * time.Millisecond)
	close(bp.release)

	timeout := time.After(2 * time.Second)
	select {
	case pr := <-submitted:
		if pr.State != StateCompleted {
			t.Fatalf("expected completed batch, got %s", pr.State)
		}
	case <-timeout:
		t.Fatalf("submit did not return while Active was listing")
	}
	select {
	case <-listed:
	case <-timeout:
		t.Fatalf("Active did not return while the batch was finishing")
	}
	if got := p.Active(); len(got) != 0 {
		t.Fatalf("expected no active batches, got %v", got)
	}
}
