package feedback

import (
	"fmt"
	"strings"

	"recruitline/internal/domain"
)

// MaxOffered caps the templates offered for one action.
const MaxOffered = 3

// Submission is the feedback a recruiter sends with an approve or reject.
type Submission struct {
	TemplateID string `json:"template_id,omitempty" validate:"omitempty,max=64"`
	Subject    string `json:"subject" validate:"required,max=200"`
	Content    string `json:"content" validate:"required"`
	Attachment string `json:"attachment,omitempty" validate:"omitempty,max=255"`
}

// Validate checks required fields and, when a template is named, that it
// exists in the catalog with the type the action expects.
func (s Submission) Validate(action domain.Action, catalog []domain.FeedbackTemplate) error {
	if err := domain.ValidateStruct(s); err != nil {
		return err
	}
	if strings.TrimSpace(s.Subject) == "" {
		return domain.Invalid("subject", "must not be blank")
	}
	if strings.TrimSpace(s.Content) == "" {
		return domain.Invalid("content", "must not be blank")
	}
	if s.TemplateID == "" {
		return nil
	}
	for _, t := range catalog {
		if t.ID != s.TemplateID {
			continue
		}
		if t.Type != action.TemplateType() {
			return domain.Invalid("template_id", fmt.Sprintf("template %s is %s, %s needs %s", t.ID, t.Type, action, action.TemplateType()))
		}
		return nil
	}
	return domain.Invalid("template_id", fmt.Sprintf("template %s not found", s.TemplateID))
}

// Offered returns the first MaxOffered templates of the action's type, in
// catalog order.
func Offered(catalog []domain.FeedbackTemplate, action domain.Action) []domain.FeedbackTemplate {
	want := action.TemplateType()
	out := make([]domain.FeedbackTemplate, 0, MaxOffered)
	for _, t := range catalog {
		if t.Type != want {
			continue
		}
		out = append(out, t)
		if len(out) == MaxOffered {
			break
		}
	}
	return out
}

// Render substitutes {candidate_name} and {position}. Position is the
// candidate's role, else the title of the form they applied to.
func Render(text string, c domain.Candidate) string {
	position := c.Role
	if position == "" {
		position = c.FormTitle
	}
	return strings.NewReplacer("{candidate_name}", c.Name, "{position}", position).Replace(text)
}

// Draft pre-fills a submission for c from template t.
func Draft(t domain.FeedbackTemplate, c domain.Candidate) Submission {
	return Submission{
		TemplateID: t.ID,
		Subject:    Render(t.Subject, c),
		Content:    Render(t.Content, c),
	}
}
