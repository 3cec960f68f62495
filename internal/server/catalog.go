package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"recruitline/internal/domain"
	"recruitline/internal/engine"
)

func registerTemplates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/templates",
		Summary:     "Feedback template catalog",
	}, func(ctx context.Context, input *struct {
		Type string `query:"type" enum:"acceptance,rejection,interview,other"`
	}) (*struct {
		Body []domain.FeedbackTemplate `json:"body"`
	}, error) {
		items, err := e.ListTemplates(ctx, domain.TemplateType(input.Type))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.FeedbackTemplate `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-template",
		Method:        http.MethodPost,
		Path:          "/templates",
		Summary:       "Add a feedback template",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateTemplateRequest `json:"body"`
	}) (*struct {
		Body domain.FeedbackTemplate `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTemplate(ctx, engine.TemplateCreateOptions{
			ID:      input.Body.ID,
			Title:   input.Body.Title,
			Subject: input.Body.Subject,
			Content: input.Body.Content,
			Type:    domain.TemplateType(input.Body.Type),
			ActorID: actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.FeedbackTemplate `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-offered-templates",
		Method:      http.MethodGet,
		Path:        "/templates/offered",
		Summary:     "Templates offered when deciding",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Action string `query:"action" enum:"approve,reject" required:"true"`
	}) (*struct {
		Body []domain.FeedbackTemplate `json:"body"`
	}, error) {
		items, err := e.OfferedTemplates(ctx, domain.Action(input.Action))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.FeedbackTemplate `json:"body"`
		}{Body: items}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit log, newest first",
	}, func(ctx context.Context, input *struct {
		EntityKind string `query:"entity_kind" enum:"opening,candidate,template,batch"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50" minimum:"1" maximum:"500"`
	}) (*struct {
		Body EventList `json:"body"`
	}, error) {
		items, err := e.ListEvents(ctx, input.Limit, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventList `json:"body"`
		}{Body: EventList{Items: items}}, nil
	})
}
