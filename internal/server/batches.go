package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"recruitline/internal/batch"
	"recruitline/internal/domain"
	"recruitline/internal/engine"
)

type batchOutput struct {
	Body BatchResponse `json:"body"`
}

type batchPath struct {
	BatchID string `path:"batch_id"`
}

// batchView describes b as the review screen shows it. A finished batch has
// no current candidate and no offered templates.
func batchView(ctx context.Context, b *batch.Batch, p batch.Progress) (BatchResponse, error) {
	s := b.Summary()
	resp := BatchResponse{Progress: p, Action: s.Action, Screen: s.Screen, Offered: []domain.FeedbackTemplate{}}
	if p.State != batch.StatePresenting {
		return resp, nil
	}
	c, err := b.Current(ctx)
	if err != nil {
		// Every remaining candidate was gone, so the batch completed.
		if errors.Is(err, domain.ErrValidation) {
			resp.Progress = b.Progress()
			return resp, nil
		}
		return resp, err
	}
	resp.Candidate = &c
	offered, err := b.Offered(ctx)
	if err != nil {
		return resp, err
	}
	resp.Offered = offered
	// A stale skip inside Current may have moved the queue.
	resp.Progress = b.Progress()
	return resp, nil
}

func registerBatches(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-batch",
		Method:        http.MethodPost,
		Path:          "/batches",
		Summary:       "Start a bulk approve or reject",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body StartBatchRequest `json:"body"`
	}) (*batchOutput, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		screen := domain.Screen(input.Body.Screen)
		if screen == "" {
			screen = domain.ScreenNewCandidates
		}
		var (
			b   *batch.Batch
			err error
		)
		switch domain.Action(input.Body.Action) {
		case domain.ActionApprove:
			b, err = e.ApproveMany(ctx, input.Body.IDs, screen, actorID)
		case domain.ActionReject:
			b, err = confirmed(e, input.Body.Confirm).RejectMany(ctx, input.Body.IDs, screen, actorID)
		default:
			err = domain.Invalid("action", "must be approve or reject")
		}
		if err != nil {
			return nil, handleError(err)
		}
		resp, err := batchView(ctx, b, b.Progress())
		if err != nil {
			return nil, handleError(err)
		}
		return &batchOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-batches",
		Method:      http.MethodGet,
		Path:        "/batches",
		Summary:     "Batches still being reviewed",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []batch.Summary `json:"body"`
	}, error) {
		return &struct {
			Body []batch.Summary `json:"body"`
		}{Body: e.Batches.Active()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-batch",
		Method:      http.MethodGet,
		Path:        "/batches/{batch_id}",
		Summary:     "Current candidate and progress of a batch",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *batchPath) (*batchOutput, error) {
		b, err := e.Batches.Get(input.BatchID)
		if err != nil {
			return nil, handleError(err)
		}
		resp, err := batchView(ctx, b, b.Progress())
		if err != nil {
			return nil, handleError(err)
		}
		return &batchOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "draft-batch-feedback",
		Method:      http.MethodGet,
		Path:        "/batches/{batch_id}/draft",
		Summary:     "Feedback prefilled from a template for the current candidate",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		BatchID    string `path:"batch_id"`
		TemplateID string `query:"template_id"`
	}) (*struct {
		Body DraftResponse `json:"body"`
	}, error) {
		b, err := e.Batches.Get(input.BatchID)
		if err != nil {
			return nil, handleError(err)
		}
		c, sub, err := b.Draft(ctx, input.TemplateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DraftResponse `json:"body"`
		}{Body: DraftResponse{Candidate: c, Draft: FeedbackRequest{
			TemplateID: sub.TemplateID,
			Subject:    sub.Subject,
			Content:    sub.Content,
			Attachment: sub.Attachment,
		}}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-batch-feedback",
		Method:      http.MethodPost,
		Path:        "/batches/{batch_id}/submit",
		Summary:     "Send feedback to the current candidate and advance",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		BatchID string          `path:"batch_id"`
		Body    FeedbackRequest `json:"body"`
	}) (*batchOutput, error) {
		b, err := e.Batches.Get(input.BatchID)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := b.Submit(ctx, input.Body.submission())
		if err != nil {
			return nil, handleError(err)
		}
		resp, err := batchView(ctx, b, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &batchOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-batch",
		Method:      http.MethodPost,
		Path:        "/batches/{batch_id}/cancel",
		Summary:     "Stop a batch, keeping what was already committed",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *batchPath) (*batchOutput, error) {
		b, err := e.Batches.Get(input.BatchID)
		if err != nil {
			return nil, handleError(err)
		}
		p, err := b.Cancel(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		resp, err := batchView(ctx, b, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &batchOutput{Body: resp}, nil
	})
}
