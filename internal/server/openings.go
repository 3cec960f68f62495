package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"recruitline/internal/domain"
	"recruitline/internal/engine"
)

type openingOutput struct {
	Body domain.JobOpening `json:"body"`
}

func registerOpenings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-openings",
		Method:      http.MethodGet,
		Path:        "/openings",
		Summary:     "List job openings",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.JobOpening `json:"body"`
	}, error) {
		items, err := e.ListOpenings(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.JobOpening `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-opening",
		Method:        http.MethodPost,
		Path:          "/openings",
		Summary:       "Create job opening",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateOpeningRequest `json:"body"`
	}) (*openingOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := e.CreateOpening(ctx, engine.OpeningCreateOptions{
			ID:          input.Body.ID,
			Title:       input.Body.Title,
			CompanyName: input.Body.CompanyName,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &openingOutput{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-opening",
		Method:      http.MethodGet,
		Path:        "/openings/{opening_id}",
		Summary:     "Get job opening",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OpeningID string `path:"opening_id"`
	}) (*openingOutput, error) {
		o, err := e.GetOpening(ctx, input.OpeningID)
		if err != nil {
			return nil, handleError(err)
		}
		return &openingOutput{Body: o}, nil
	})

	for _, op := range []struct {
		id, path, summary string
		fn                func(e engine.Engine, ctx context.Context, id, actorID string) (domain.JobOpening, error)
	}{
		{"close-opening", "/openings/{opening_id}/close", "Close opening and its current wave", engine.Engine.CloseOpening},
		{"reopen-opening", "/openings/{opening_id}/reopen", "Reopen opening with a new wave", engine.Engine.ReopenOpening},
	} {
		op := op
		huma.Register(api, huma.Operation{
			OperationID: op.id,
			Method:      http.MethodPost,
			Path:        op.path,
			Summary:     op.summary,
			Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
		}, func(ctx context.Context, input *struct {
			OpeningID string `path:"opening_id"`
		}) (*openingOutput, error) {
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			o, err := op.fn(e, ctx, input.OpeningID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return &openingOutput{Body: o}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-opening-waves",
		Method:      http.MethodGet,
		Path:        "/openings/{opening_id}/waves",
		Summary:     "Candidates grouped by wave",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OpeningID   string `path:"opening_id"`
		Search      string `query:"search"`
		Status      string `query:"status" enum:"qualified,not_qualified,undecided"`
		Disposition string `query:"disposition" enum:"active,rejected,archived"`
	}) (*struct {
		Body []WaveGroupResponse `json:"body"`
	}, error) {
		f, err := parseFilter(input.Search, "", input.Status, input.Disposition, "")
		if err != nil {
			return nil, handleError(err)
		}
		groups, err := e.Waves(ctx, input.OpeningID, f)
		if err != nil {
			return nil, handleError(err)
		}
		resp := make([]WaveGroupResponse, 0, len(groups))
		for _, g := range groups {
			resp = append(resp, WaveGroupResponse{Wave: g.Wave, Candidates: g.Candidates, Count: len(g.Candidates)})
		}
		return &struct {
			Body []WaveGroupResponse `json:"body"`
		}{Body: resp}, nil
	})
}
