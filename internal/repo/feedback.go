package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"recruitline/internal/domain"
)

type templateRow struct {
	ID        string `db:"id"`
	Title     string `db:"title"`
	Subject   string `db:"subject"`
	Content   string `db:"content"`
	Type      string `db:"type"`
	CreatedAt string `db:"created_at"`
}

func (row templateRow) template() domain.FeedbackTemplate {
	return domain.FeedbackTemplate{
		ID:        row.ID,
		Title:     row.Title,
		Subject:   row.Subject,
		Content:   row.Content,
		Type:      domain.TemplateType(row.Type),
		CreatedAt: parseTS(row.CreatedAt),
	}
}

// InsertTemplate appends t to the end of the catalog.
func (r Repo) InsertTemplate(ctx context.Context, tx *sqlx.Tx, t domain.FeedbackTemplate) error {
	var pos int
	if err := sqlx.GetContext(ctx, tx, &pos, `SELECT COALESCE(MAX(position),0) FROM feedback_templates`); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO feedback_templates(id,title,subject,content,type,position,created_at) VALUES (?,?,?,?,?,?,?)`),
		t.ID, t.Title, t.Subject, t.Content, string(t.Type), pos+1, formatTS(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert template %s: %w", t.ID, err)
	}
	return nil
}

func (r Repo) GetTemplate(ctx context.Context, id string) (domain.FeedbackTemplate, error) {
	var row templateRow
	err := sqlx.GetContext(ctx, r.DB, &row, r.DB.Rebind(`SELECT id,title,subject,content,type,created_at FROM feedback_templates WHERE id=?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FeedbackTemplate{}, ErrNotFound
	}
	if err != nil {
		return domain.FeedbackTemplate{}, err
	}
	return row.template(), nil
}

// ListTemplates returns the catalog in insertion order, optionally of one type.
func (r Repo) ListTemplates(ctx context.Context, typ domain.TemplateType) ([]domain.FeedbackTemplate, error) {
	return listTemplates(ctx, r.DB, typ)
}

func listTemplates(ctx context.Context, q sqlx.ExtContext, typ domain.TemplateType) ([]domain.FeedbackTemplate, error) {
	query := `SELECT id,title,subject,content,type,created_at FROM feedback_templates`
	var args []any
	if typ != "" {
		query += ` WHERE type=?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY position ASC`
	var rows []templateRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	res := make([]domain.FeedbackTemplate, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.template())
	}
	return res, nil
}

func (r Repo) InsertFeedbackMessage(ctx context.Context, tx *sqlx.Tx, m domain.FeedbackMessage) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO feedback_messages(id,candidate_id,template_id,batch_id,action,subject,content,attachment,actor_id,sent_at) VALUES (?,?,?,?,?,?,?,?,?,?)`),
		m.ID, m.CandidateID, nullable(m.TemplateID), nullable(m.BatchID), string(m.Action), m.Subject, m.Content,
		nullable(m.Attachment), m.ActorID, formatTS(m.SentAt))
	if err != nil {
		return fmt.Errorf("insert feedback message: %w", err)
	}
	return nil
}

func (r Repo) ListFeedbackMessages(ctx context.Context, candidateID string) ([]domain.FeedbackMessage, error) {
	var rows []struct {
		ID          string `db:"id"`
		CandidateID string `db:"candidate_id"`
		TemplateID  string `db:"template_id"`
		BatchID     string `db:"batch_id"`
		Action      string `db:"action"`
		Subject     string `db:"subject"`
		Content     string `db:"content"`
		Attachment  string `db:"attachment"`
		ActorID     string `db:"actor_id"`
		SentAt      string `db:"sent_at"`
	}
	err := sqlx.SelectContext(ctx, r.DB, &rows, r.DB.Rebind(`SELECT id,candidate_id,COALESCE(template_id,'') AS template_id,COALESCE(batch_id,'') AS batch_id,action,subject,content,COALESCE(attachment,'') AS attachment,actor_id,sent_at
FROM feedback_messages WHERE candidate_id=? ORDER BY sent_at ASC, id ASC`), candidateID)
	if err != nil {
		return nil, err
	}
	res := make([]domain.FeedbackMessage, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.FeedbackMessage{
			ID:          row.ID,
			CandidateID: row.CandidateID,
			TemplateID:  row.TemplateID,
			BatchID:     row.BatchID,
			Action:      domain.Action(row.Action),
			Subject:     row.Subject,
			Content:     row.Content,
			Attachment:  row.Attachment,
			ActorID:     row.ActorID,
			SentAt:      parseTS(row.SentAt),
		})
	}
	return res, nil
}
