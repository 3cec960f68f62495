package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"recruitline/internal/domain"
	"recruitline/internal/engine"
	"recruitline/internal/listing"
)

type candidateOutput struct {
	Body domain.Candidate `json:"body"`
}

func parseFilter(search, stage, status, disposition, openingID string) (listing.Filter, error) {
	f := listing.Filter{
		Search:      search,
		Stage:       domain.Stage(stage),
		Disposition: domain.Disposition(disposition),
		OpeningID:   openingID,
	}
	if stage != "" && !f.Stage.Valid() {
		return f, domain.Invalid("stage", fmt.Sprintf("unknown stage %q", stage))
	}
	if disposition != "" && !f.Disposition.Valid() {
		return f, domain.Invalid("disposition", fmt.Sprintf("unknown disposition %q", disposition))
	}
	if status != "" {
		s, ok := domain.ParseStatus(status)
		if !ok {
			return f, domain.Invalid("status", fmt.Sprintf("unknown status %q", status))
		}
		f.Status = &s
	}
	return f, nil
}

func registerCandidates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-candidates",
		Method:      http.MethodGet,
		Path:        "/candidates",
		Summary:     "List candidates",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Search      string `query:"search"`
		Stage       string `query:"stage" enum:"applied,cv_review,ready_for_interview"`
		Status      string `query:"status" enum:"qualified,not_qualified,undecided"`
		Disposition string `query:"disposition" enum:"active,rejected,archived" default:"active"`
		OpeningID   string `query:"opening_id"`
		Page        int    `query:"page" default:"1"`
		PageSize    int    `query:"page_size"`
	}) (*struct {
		Body CandidatePage `json:"body"`
	}, error) {
		f, err := parseFilter(input.Search, input.Stage, input.Status, input.Disposition, input.OpeningID)
		if err != nil {
			return nil, handleError(err)
		}
		page, err := e.ListCandidates(ctx, f, input.Page, input.PageSize)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CandidatePage `json:"body"`
		}{Body: candidatePage(page)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-candidate",
		Method:        http.MethodPost,
		Path:          "/candidates",
		Summary:       "Record an application",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateCandidateRequest `json:"body"`
	}) (*candidateOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var applied time.Time
		if input.Body.AppliedAt != "" {
			t, err := time.Parse(time.RFC3339, input.Body.AppliedAt)
			if err != nil {
				return nil, handleError(domain.Invalid("applied_at", "must be an RFC 3339 timestamp"))
			}
			applied = t
		}
		c, err := e.CreateCandidate(ctx, engine.CandidateCreateOptions{
			ID:        input.Body.ID,
			OpeningID: input.Body.OpeningID,
			FormTitle: input.Body.FormTitle,
			Name:      input.Body.Name,
			Email:     input.Body.Email,
			Phone:     input.Body.Phone,
			Role:      input.Body.Role,
			AppliedAt: applied,
			Stage:     input.Body.Stage,
			Notes:     input.Body.Notes,
			Skills:    input.Body.Skills,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-candidate",
		Method:      http.MethodGet,
		Path:        "/candidates/{candidate_id}",
		Summary:     "Get candidate",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CandidateID string `path:"candidate_id"`
	}) (*candidateOutput, error) {
		c, err := e.GetCandidate(ctx, input.CandidateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &candidateOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-candidate",
		Method:      http.MethodPost,
		Path:        "/candidates/{candidate_id}/transition",
		Summary:     "Set stage, take out, transfer or archive one candidate",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		CandidateID string            `path:"candidate_id"`
		Body        TransitionRequest `json:"body"`
	}) (*struct {
		Body TransitionResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := confirmed(e, input.Body.Confirm).Transition(ctx, engine.TransitionRequest{
			CandidateID:      input.CandidateID,
			Kind:             engine.TransitionKind(input.Body.Kind),
			Stage:            domain.Stage(input.Body.Stage),
			TargetOpeningID:  input.Body.TargetOpeningID,
			KeepPreviousData: input.Body.KeepPreviousData,
			ExpectedVersion:  input.Body.ExpectedVersion,
			ActorID:          actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TransitionResponse `json:"body"`
		}{Body: TransitionResponse{Applied: res.Applied, Candidate: res.Candidate}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transfer-candidates",
		Method:      http.MethodPost,
		Path:        "/candidates/transfer",
		Summary:     "Move candidates to another opening, all or nothing",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body TransferRequest `json:"body"`
	}) (*struct {
		Body []domain.Candidate `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		moved, err := e.Transfer(ctx, engine.TransferOptions{
			IDs:              input.Body.IDs,
			TargetOpeningID:  input.Body.TargetOpeningID,
			KeepPreviousData: input.Body.KeepPreviousData,
			ActorID:          actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Candidate `json:"body"`
		}{Body: moved}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decide-candidate",
		Method:      http.MethodPost,
		Path:        "/candidates/{candidate_id}/decision",
		Summary:     "Approve or reject one candidate with feedback",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		CandidateID string          `path:"candidate_id"`
		Body        DecisionRequest `json:"body"`
	}) (*struct {
		Body DecisionResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		screen := domain.Screen(input.Body.Screen)
		if screen == "" {
			screen = domain.ScreenNewCandidates
		}
		res, err := confirmed(e, input.Body.Confirm).Decide(ctx, engine.DecideOptions{
			CandidateID:     input.CandidateID,
			Action:          domain.Action(input.Body.Action),
			Screen:          screen,
			Feedback:        input.Body.Feedback.submission(),
			ExpectedVersion: input.Body.ExpectedVersion,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DecisionResponse `json:"body"`
		}{Body: DecisionResponse{Candidate: res.Candidate, Deleted: res.Deleted, Message: res.Message}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-candidate-feedback",
		Method:      http.MethodGet,
		Path:        "/candidates/{candidate_id}/feedback",
		Summary:     "Feedback sent to a candidate",
	}, func(ctx context.Context, input *struct {
		CandidateID string `path:"candidate_id"`
	}) (*struct {
		Body []domain.FeedbackMessage `json:"body"`
	}, error) {
		items, err := e.ListFeedback(ctx, input.CandidateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.FeedbackMessage `json:"body"`
		}{Body: items}, nil
	})
}
