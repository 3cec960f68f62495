package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"recruitline/internal/domain"
)

func catalog() []domain.FeedbackTemplate {
	return []domain.FeedbackTemplate{
		{ID: "acc-1", Type: domain.TemplateAcceptance, Subject: "Welcome {candidate_name}", Content: "We liked you for {position}."},
		{ID: "rej-1", Type: domain.TemplateRejection, Subject: "Update", Content: "Sorry {candidate_name}."},
		{ID: "acc-2", Type: domain.TemplateAcceptance},
		{ID: "int-1", Type: domain.TemplateInterview},
		{ID: "acc-3", Type: domain.TemplateAcceptance},
		{ID: "acc-4", Type: domain.TemplateAcceptance},
	}
}

func TestOfferedCappedInCatalogOrder(t *testing.T) {
	got := Offered(catalog(), domain.ActionApprove)
	if len(got) != 3 || got[0].ID != "acc-1" || got[1].ID != "acc-2" || got[2].ID != "acc-3" {
		t.Fatalf("unexpected offered: %+v", got)
	}
	got = Offered(catalog(), domain.ActionReject)
	if len(got) != 1 || got[0].ID != "rej-1" {
		t.Fatalf("unexpected rejection offer: %+v", got)
	}
}

func TestRenderPlaceholders(t *testing.T) {
	c := domain.Candidate{Name: "Ada", FormTitle: "Backend Engineer"}
	if got := Render("Hi {candidate_name}, {position}", c); got != "Hi Ada, Backend Engineer" {
		t.Fatalf("form title fallback: %q", got)
	}
	c.Role = "Staff Engineer"
	d := Draft(catalog()[0], c)
	if d.Subject != "Welcome Ada" || d.Content != "We liked you for Staff Engineer." || d.TemplateID != "acc-1" {
		t.Fatalf("unexpected draft: %+v", d)
	}
}

func TestSubmissionValidate(t *testing.T) {
	ok := Submission{Subject: "s", Content: "c"}
	if err := ok.Validate(domain.ActionApprove, catalog()); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	cases := map[string]Submission{
		"missing subject": {Content: "c"},
		"blank content":   {Subject: "s", Content: "   "},
		"wrong type":      {TemplateID: "rej-1", Subject: "s", Content: "c"},
		"unknown":         {TemplateID: "nope", Subject: "s", Content: "c"},
	}
	for name, s := range cases {
		err := s.Validate(domain.ActionApprove, catalog())
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	var ve *domain.ValidationError
	if err := (Submission{Content: "c"}).Validate(domain.ActionApprove, nil); !errors.As(err, &ve) || ve.Field != "subject" {
		t.Fatalf("expected subject field error, got %v", err)
	}
}

func TestSimulatedSenderHonoursContext(t *testing.T) {
	s := SimulatedSender{Delay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Deliver(ctx, s, Message{CandidateID: "c-1"})
	var tse *TransientSendError
	if !errors.As(err, &tse) || tse.CandidateID != "c-1" || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected transient cancel error, got %v", err)
	}
	if err := Deliver(context.Background(), SimulatedSender{}, Message{}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}
