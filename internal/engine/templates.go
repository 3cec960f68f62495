package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"recruitline/internal/domain"
	"recruitline/internal/events"
	"recruitline/internal/feedback"
)

type TemplateCreateOptions struct {
	ID      string              `json:"id,omitempty" validate:"omitempty,max=64"`
	Title   string              `json:"title" validate:"required,max=200"`
	Subject string              `json:"subject" validate:"required,max=200"`
	Content string              `json:"content" validate:"required"`
	Type    domain.TemplateType `json:"type" validate:"required"`
	ActorID string              `json:"-"`
}

// CreateTemplate appends a template to the catalog.
func (e Engine) CreateTemplate(ctx context.Context, opts TemplateCreateOptions) (domain.FeedbackTemplate, error) {
	if err := domain.ValidateStruct(opts); err != nil {
		return domain.FeedbackTemplate{}, err
	}
	if !opts.Type.Valid() {
		return domain.FeedbackTemplate{}, domain.Invalid("type", fmt.Sprintf("unknown template type %q", opts.Type))
	}
	t := domain.FeedbackTemplate{
		ID:        opts.ID,
		Title:     opts.Title,
		Subject:   opts.Subject,
		Content:   opts.Content,
		Type:      opts.Type,
		CreatedAt: e.now(),
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	tx, err := e.DB.BeginTxx(ctx, nil)
	if err != nil {
		return domain.FeedbackTemplate{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTemplate(ctx, tx, t); err != nil {
		return domain.FeedbackTemplate{}, err
	}
	if err := e.Events.Append(ctx, tx, "template.created", "template", t.ID, opts.ActorID, events.EventPayload{"type": t.Type}); err != nil {
		return domain.FeedbackTemplate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.FeedbackTemplate{}, err
	}
	return t, nil
}

func (e Engine) ListTemplates(ctx context.Context, typ domain.TemplateType) ([]domain.FeedbackTemplate, error) {
	return e.Repo.ListTemplates(ctx, typ)
}

// OfferedTemplates returns the templates a recruiter may pick for action.
func (e Engine) OfferedTemplates(ctx context.Context, action domain.Action) ([]domain.FeedbackTemplate, error) {
	if !action.Valid() {
		return nil, domain.Invalid("action", fmt.Sprintf("unknown action %q", action))
	}
	catalog, err := e.Repo.ListTemplates(ctx, "")
	if err != nil {
		return nil, err
	}
	return feedback.Offered(catalog, action), nil
}

func (e Engine) ListFeedback(ctx context.Context, candidateID string) ([]domain.FeedbackMessage, error) {
	return e.Repo.ListFeedbackMessages(ctx, candidateID)
}

func (e Engine) ListEvents(ctx context.Context, limit int, entityKind, entityID string) ([]domain.Event, error) {
	return e.Repo.ListEvents(ctx, limit, entityKind, entityID)
}
