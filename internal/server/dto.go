package server

import (
	"recruitline/internal/batch"
	"recruitline/internal/domain"
	"recruitline/internal/feedback"
	"recruitline/internal/listing"
)

// Request payloads

type CreateOpeningRequest struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	CompanyName string `json:"company_name,omitempty"`
}

type CreateCandidateRequest struct {
	ID        string       `json:"id,omitempty"`
	OpeningID string       `json:"opening_id,omitempty"`
	FormTitle string       `json:"form_title,omitempty"`
	Name      string       `json:"name"`
	Email     string       `json:"email,omitempty"`
	Phone     string       `json:"phone,omitempty"`
	Role      string       `json:"role,omitempty"`
	AppliedAt string       `json:"applied_at,omitempty" format:"date-time"`
	Stage     domain.Stage `json:"stage,omitempty" enum:"applied,cv_review,ready_for_interview"`
	Notes     string       `json:"notes,omitempty"`
	Skills    []string     `json:"skills,omitempty"`
}

type TransitionRequest struct {
	Kind             string `json:"kind" enum:"set_stage,take_out,transfer,archive"`
	Stage            string `json:"stage,omitempty"`
	TargetOpeningID  string `json:"target_opening_id,omitempty"`
	KeepPreviousData bool   `json:"keep_previous_data,omitempty"`
	ExpectedVersion  int    `json:"expected_version,omitempty"`
	Confirm          bool   `json:"confirm,omitempty" doc:"Required for archive"`
}

type TransferRequest struct {
	IDs              []string `json:"ids"`
	TargetOpeningID  string   `json:"target_opening_id"`
	KeepPreviousData bool     `json:"keep_previous_data,omitempty"`
}

type FeedbackRequest struct {
	TemplateID string `json:"template_id,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Content    string `json:"content,omitempty"`
	Attachment string `json:"attachment,omitempty"`
}

func (r FeedbackRequest) submission() feedback.Submission {
	return feedback.Submission{TemplateID: r.TemplateID, Subject: r.Subject, Content: r.Content, Attachment: r.Attachment}
}

type DecisionRequest struct {
	Action          string          `json:"action" enum:"approve,reject"`
	Screen          string          `json:"screen,omitempty" enum:"new_candidates,in_review"`
	Feedback        FeedbackRequest `json:"feedback"`
	ExpectedVersion int             `json:"expected_version,omitempty"`
	Confirm         bool            `json:"confirm,omitempty" doc:"Required for reject"`
}

type CreateTemplateRequest struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Subject string `json:"subject"`
	Content string `json:"content"`
	Type    string `json:"type" enum:"acceptance,rejection,interview,other"`
}

type StartBatchRequest struct {
	IDs     []string `json:"ids"`
	Action  string   `json:"action" enum:"approve,reject"`
	Screen  string   `json:"screen,omitempty" enum:"new_candidates,in_review"`
	Confirm bool     `json:"confirm,omitempty" doc:"Required for reject"`
}

// Response payloads

type CandidatePage struct {
	Items []domain.Candidate `json:"items"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Pages int                `json:"pages"`
	Size  int                `json:"size"`
}

func candidatePage(p listing.Page[domain.Candidate]) CandidatePage {
	return CandidatePage{Items: p.Items, Total: p.Total, Page: p.Page, Pages: p.Pages, Size: p.Size}
}

type TransitionResponse struct {
	Applied   bool              `json:"applied"`
	Candidate *domain.Candidate `json:"candidate,omitempty"`
}

type DecisionResponse struct {
	Candidate domain.Candidate       `json:"candidate"`
	Deleted   bool                   `json:"deleted"`
	Message   domain.FeedbackMessage `json:"message"`
}

type WaveGroupResponse struct {
	Wave       domain.Wave        `json:"wave"`
	Candidates []domain.Candidate `json:"candidates"`
	Count      int                `json:"count"`
}

type BatchResponse struct {
	Progress  batch.Progress            `json:"progress"`
	Action    domain.Action             `json:"action"`
	Screen    domain.Screen             `json:"screen"`
	Candidate *domain.Candidate         `json:"candidate,omitempty"`
	Offered   []domain.FeedbackTemplate `json:"offered"`
}

type DraftResponse struct {
	Candidate domain.Candidate `json:"candidate"`
	Draft     FeedbackRequest  `json:"draft"`
}

type EventList struct {
	Items []domain.Event `json:"items"`
}
