package domain

import "time"

type Stage string

const (
	StageApplied           Stage = "applied"
	StageCVReview          Stage = "cv_review"
	StageReadyForInterview Stage = "ready_for_interview"
)

func (s Stage) Valid() bool {
	switch s {
	case StageApplied, StageCVReview, StageReadyForInterview:
		return true
	}
	return false
}

// Status is the qualification decision. The zero value means undecided.
type Status string

const (
	StatusUndecided    Status = ""
	StatusQualified    Status = "qualified"
	StatusNotQualified Status = "not_qualified"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUndecided, StatusQualified, StatusNotQualified:
		return true
	}
	return false
}

func (s Status) String() string {
	if s == StatusUndecided {
		return "undecided"
	}
	return string(s)
}

// ParseStatus accepts "undecided" as an alias for the empty status.
func ParseStatus(v string) (Status, bool) {
	if v == "undecided" {
		return StatusUndecided, true
	}
	s := Status(v)
	return s, s.Valid()
}

// Disposition tells which view a candidate is listed in.
type Disposition string

const (
	DispositionActive   Disposition = "active"
	DispositionRejected Disposition = "rejected"
	DispositionArchived Disposition = "archived"
)

func (d Disposition) Valid() bool {
	switch d {
	case DispositionActive, DispositionRejected, DispositionArchived:
		return true
	}
	return false
}

// Screen identifies where a decision was taken from.
type Screen string

const (
	ScreenNewCandidates Screen = "new_candidates"
	ScreenInReview      Screen = "in_review"
)

func (s Screen) Valid() bool {
	return s == ScreenNewCandidates || s == ScreenInReview
}

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

func (a Action) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

// TemplateType returns the feedback template type offered for the action.
func (a Action) TemplateType() TemplateType {
	if a == ActionApprove {
		return TemplateAcceptance
	}
	return TemplateRejection
}

type Candidate struct {
	ID          string      `json:"id"`
	OpeningID   string      `json:"opening_id,omitempty"`
	FormTitle   string      `json:"form_title"`
	Name        string      `json:"name"`
	Email       string      `json:"email,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	Role        string      `json:"role,omitempty"`
	AppliedAt   time.Time   `json:"applied_at" format:"date-time"`
	Stage       Stage       `json:"stage" enum:"applied,cv_review,ready_for_interview"`
	Status      Status      `json:"status,omitempty" enum:"qualified,not_qualified"`
	Disposition Disposition `json:"disposition" enum:"active,rejected,archived"`
	Notes       string      `json:"notes,omitempty"`
	Skills      []string    `json:"skills,omitempty"`
	PriorJobs   []PriorJob  `json:"prior_jobs,omitempty"`
	Version     int         `json:"version"`
	CreatedAt   time.Time   `json:"created_at" format:"date-time"`
	UpdatedAt   time.Time   `json:"updated_at" format:"date-time"`
}

// PriorJob is the snapshot kept when a candidate is transferred with its previous job data.
type PriorJob struct {
	OpeningID     string    `json:"opening_id"`
	FormTitle     string    `json:"form_title"`
	Stage         Stage     `json:"stage"`
	Status        Status    `json:"status,omitempty"`
	TransferredAt time.Time `json:"transferred_at" format:"date-time"`
}

type OpeningStatus string

const (
	OpeningOpen   OpeningStatus = "open"
	OpeningClosed OpeningStatus = "closed"
)

type JobOpening struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	CompanyName string        `json:"company_name,omitempty"`
	Status      OpeningStatus `json:"status" enum:"open,closed"`
	CreatedAt   time.Time     `json:"created_at" format:"date-time"`
	Waves       []Wave        `json:"waves"`
}

type Wave struct {
	Number   int        `json:"wave_number"`
	OpenedAt time.Time  `json:"opened_at" format:"date-time"`
	ClosedAt *time.Time `json:"closed_at,omitempty" format:"date-time"`
}

func (w Wave) Open() bool { return w.ClosedAt == nil }

type TemplateType string

const (
	TemplateAcceptance TemplateType = "acceptance"
	TemplateRejection  TemplateType = "rejection"
	TemplateInterview  TemplateType = "interview"
	TemplateOther      TemplateType = "other"
)

func (t TemplateType) Valid() bool {
	switch t {
	case TemplateAcceptance, TemplateRejection, TemplateInterview, TemplateOther:
		return true
	}
	return false
}

type FeedbackTemplate struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Subject   string       `json:"subject"`
	Content   string       `json:"content"`
	Type      TemplateType `json:"type" enum:"acceptance,rejection,interview,other"`
	CreatedAt time.Time    `json:"created_at" format:"date-time"`
}

// FeedbackMessage is a feedback submission that was sent to a candidate.
type FeedbackMessage struct {
	ID          string    `json:"id"`
	CandidateID string    `json:"candidate_id"`
	TemplateID  string    `json:"template_id,omitempty"`
	BatchID     string    `json:"batch_id,omitempty"`
	Action      Action    `json:"action"`
	Subject     string    `json:"subject"`
	Content     string    `json:"content"`
	Attachment  string    `json:"attachment,omitempty"`
	ActorID     string    `json:"actor_id"`
	SentAt      time.Time `json:"sent_at" format:"date-time"`
}

type Event struct {
	ID         string    `json:"id"`
	TS         time.Time `json:"ts" format:"date-time"`
	Type       string    `json:"type"`
	EntityKind string    `json:"entity_kind"`
	EntityID   string    `json:"entity_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	Payload    string    `json:"payload_json"`
}
