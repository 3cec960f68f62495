package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"recruitline/internal/domain"
)

const candidateColumns = `id,opening_id,form_title,name,email,phone,role,applied_at,stage,status,disposition,notes,skills_json,prior_jobs_json,version,created_at,updated_at`

type candidateRow struct {
	ID          string         `db:"id"`
	OpeningID   sql.NullString `db:"opening_id"`
	FormTitle   string         `db:"form_title"`
	Name        string         `db:"name"`
	Email       string         `db:"email"`
	Phone       string         `db:"phone"`
	Role        string         `db:"role"`
	AppliedAt   string         `db:"applied_at"`
	Stage       string         `db:"stage"`
	Status      string         `db:"status"`
	Disposition string         `db:"disposition"`
	Notes       string         `db:"notes"`
	SkillsJSON  string         `db:"skills_json"`
	PriorJSON   string         `db:"prior_jobs_json"`
	Version     int            `db:"version"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

func (row candidateRow) candidate() (domain.Candidate, error) {
	c := domain.Candidate{
		ID:          row.ID,
		FormTitle:   row.FormTitle,
		Name:        row.Name,
		Email:       row.Email,
		Phone:       row.Phone,
		Role:        row.Role,
		AppliedAt:   parseTS(row.AppliedAt),
		Stage:       domain.Stage(row.Stage),
		Status:      domain.Status(row.Status),
		Disposition: domain.Disposition(row.Disposition),
		Notes:       row.Notes,
		Version:     row.Version,
		CreatedAt:   parseTS(row.CreatedAt),
		UpdatedAt:   parseTS(row.UpdatedAt),
	}
	if row.OpeningID.Valid {
		c.OpeningID = row.OpeningID.String
	}
	if row.SkillsJSON != "" {
		if err := json.Unmarshal([]byte(row.SkillsJSON), &c.Skills); err != nil {
			return c, fmt.Errorf("candidate %s skills: %w", row.ID, err)
		}
	}
	if row.PriorJSON != "" {
		if err := json.Unmarshal([]byte(row.PriorJSON), &c.PriorJobs); err != nil {
			return c, fmt.Errorf("candidate %s prior jobs: %w", row.ID, err)
		}
	}
	return c, nil
}

func encodeList(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	s := string(b)
	if s == "null" {
		s = "[]"
	}
	return s, nil
}

// CandidateFilter narrows ListCandidates. Zero values match everything.
type CandidateFilter struct {
	OpeningID   string
	FormTitle   string
	Disposition domain.Disposition
	IDs         []string
}

func (r Repo) InsertCandidate(ctx context.Context, tx *sqlx.Tx, c domain.Candidate) error {
	skills, err := encodeList(c.Skills)
	if err != nil {
		return err
	}
	prior, err := encodeList(c.PriorJobs)
	if err != nil {
		return err
	}
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Disposition == "" {
		c.Disposition = domain.DispositionActive
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO candidates(`+candidateColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		c.ID, nullable(c.OpeningID), c.FormTitle, c.Name, c.Email, c.Phone, c.Role, formatTS(c.AppliedAt),
		string(c.Stage), string(c.Status), string(c.Disposition), c.Notes, skills, prior, c.Version,
		formatTS(c.CreatedAt), formatTS(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert candidate %s: %w", c.ID, err)
	}
	return nil
}

func (r Repo) GetCandidate(ctx context.Context, id string) (domain.Candidate, error) {
	return getCandidate(ctx, r.DB, id)
}

func (r Repo) GetCandidateTx(ctx context.Context, tx *sqlx.Tx, id string) (domain.Candidate, error) {
	return getCandidate(ctx, tx, id)
}

func getCandidate(ctx context.Context, q sqlx.ExtContext, id string) (domain.Candidate, error) {
	var row candidateRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(`SELECT `+candidateColumns+` FROM candidates WHERE id=?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Candidate{}, ErrNotFound
	}
	if err != nil {
		return domain.Candidate{}, err
	}
	return row.candidate()
}

// ListCandidates returns candidates in store order: applied_at, then id.
func (r Repo) ListCandidates(ctx context.Context, f CandidateFilter) ([]domain.Candidate, error) {
	return listCandidates(ctx, r.DB, f)
}

func (r Repo) ListCandidatesTx(ctx context.Context, tx *sqlx.Tx, f CandidateFilter) ([]domain.Candidate, error) {
	return listCandidates(ctx, tx, f)
}

func listCandidates(ctx context.Context, q sqlx.ExtContext, f CandidateFilter) ([]domain.Candidate, error) {
	var (
		clauses []string
		args    []any
	)
	if f.OpeningID != "" {
		clauses = append(clauses, "opening_id=?")
		args = append(args, f.OpeningID)
	}
	if f.FormTitle != "" {
		clauses = append(clauses, "form_title=?")
		args = append(args, f.FormTitle)
	}
	if f.Disposition != "" {
		clauses = append(clauses, "disposition=?")
		args = append(args, string(f.Disposition))
	}
	query := `SELECT ` + candidateColumns + ` FROM candidates`
	if len(f.IDs) > 0 {
		clauses = append(clauses, "id IN (?)")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY applied_at ASC, id ASC"
	if len(f.IDs) > 0 {
		var err error
		query, args, err = sqlx.In(query, append(args, f.IDs)...)
		if err != nil {
			return nil, err
		}
	}
	var rows []candidateRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, err
	}
	res := make([]domain.Candidate, 0, len(rows))
	for _, row := range rows {
		c, err := row.candidate()
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, nil
}

// UpdateCandidate writes c if its Version still matches the stored one and
// returns the candidate with the bumped version.
func (r Repo) UpdateCandidate(ctx context.Context, tx *sqlx.Tx, c domain.Candidate) (domain.Candidate, error) {
	skills, err := encodeList(c.Skills)
	if err != nil {
		return c, err
	}
	prior, err := encodeList(c.PriorJobs)
	if err != nil {
		return c, err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE candidates SET opening_id=?, form_title=?, name=?, email=?, phone=?, role=?, applied_at=?, stage=?, status=?, disposition=?, notes=?, skills_json=?, prior_jobs_json=?, version=version+1, updated_at=? WHERE id=? AND version=?`),
		nullable(c.OpeningID), c.FormTitle, c.Name, c.Email, c.Phone, c.Role, formatTS(c.AppliedAt),
		string(c.Stage), string(c.Status), string(c.Disposition), c.Notes, skills, prior, formatTS(c.UpdatedAt),
		c.ID, c.Version)
	if err != nil {
		return c, fmt.Errorf("update candidate %s: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := getCandidate(ctx, tx, c.ID); err != nil {
			return c, err
		}
		return c, ErrConflict
	}
	c.Version++
	return c, nil
}

func (r Repo) DeleteCandidate(ctx context.Context, tx *sqlx.Tx, id string) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM candidates WHERE id=?`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
