package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"recruitline/internal/domain"
	"recruitline/internal/events"
)

type Repo struct {
	DB *sqlx.DB
}

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a record changed since it was read.
	ErrConflict = errors.New("version conflict")
)

func formatTS(t time.Time) string {
	return t.UTC().Format(events.TSLayout)
}

func parseTS(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t := parseTS(v.String)
	return &t
}

type openingRow struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	CompanyName string `db:"company_name"`
	Status      string `db:"status"`
	CreatedAt   string `db:"created_at"`
}

type waveRow struct {
	OpeningID string         `db:"opening_id"`
	Number    int            `db:"wave_number"`
	OpenedAt  string         `db:"opened_at"`
	ClosedAt  sql.NullString `db:"closed_at"`
}

func (w waveRow) wave() domain.Wave {
	return domain.Wave{Number: w.Number, OpenedAt: parseTS(w.OpenedAt), ClosedAt: parseNullTS(w.ClosedAt)}
}

func (r Repo) InsertOpening(ctx context.Context, tx *sqlx.Tx, o domain.JobOpening) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO job_openings(id,title,company_name,status,created_at) VALUES (?,?,?,?,?)`),
		o.ID, o.Title, o.CompanyName, string(o.Status), formatTS(o.CreatedAt)); err != nil {
		return fmt.Errorf("insert opening: %w", err)
	}
	for _, w := range o.Waves {
		if err := r.InsertWave(ctx, tx, o.ID, w); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) UpdateOpeningStatus(ctx context.Context, tx *sqlx.Tx, id string, status domain.OpeningStatus) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE job_openings SET status=? WHERE id=?`), string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertWave(ctx context.Context, tx *sqlx.Tx, openingID string, w domain.Wave) error {
	var closed any
	if w.ClosedAt != nil {
		closed = formatTS(*w.ClosedAt)
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO waves(opening_id,wave_number,opened_at,closed_at) VALUES (?,?,?,?)`),
		openingID, w.Number, formatTS(w.OpenedAt), closed)
	if err != nil {
		return fmt.Errorf("insert wave %d: %w", w.Number, err)
	}
	return nil
}

func (r Repo) CloseWave(ctx context.Context, tx *sqlx.Tx, openingID string, number int, at time.Time) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE waves SET closed_at=? WHERE opening_id=? AND wave_number=? AND closed_at IS NULL`),
		formatTS(at), openingID, number)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetOpening(ctx context.Context, id string) (domain.JobOpening, error) {
	return getOpening(ctx, r.DB, id)
}

func (r Repo) GetOpeningTx(ctx context.Context, tx *sqlx.Tx, id string) (domain.JobOpening, error) {
	return getOpening(ctx, tx, id)
}

func getOpening(ctx context.Context, q sqlx.ExtContext, id string) (domain.JobOpening, error) {
	var row openingRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(`SELECT id,title,company_name,status,created_at FROM job_openings WHERE id=?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.JobOpening{}, ErrNotFound
	}
	if err != nil {
		return domain.JobOpening{}, err
	}
	var waves []waveRow
	if err := sqlx.SelectContext(ctx, q, &waves, q.Rebind(`SELECT opening_id,wave_number,opened_at,closed_at FROM waves WHERE opening_id=? ORDER BY wave_number ASC`), id); err != nil {
		return domain.JobOpening{}, err
	}
	o := openingFromRow(row)
	for _, w := range waves {
		o.Waves = append(o.Waves, w.wave())
	}
	return o, nil
}

func (r Repo) ListOpenings(ctx context.Context) ([]domain.JobOpening, error) {
	var rows []openingRow
	if err := sqlx.SelectContext(ctx, r.DB, &rows, `SELECT id,title,company_name,status,created_at FROM job_openings ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, err
	}
	var waves []waveRow
	if err := sqlx.SelectContext(ctx, r.DB, &waves, `SELECT opening_id,wave_number,opened_at,closed_at FROM waves ORDER BY opening_id, wave_number ASC`); err != nil {
		return nil, err
	}
	byOpening := map[string][]domain.Wave{}
	for _, w := range waves {
		byOpening[w.OpeningID] = append(byOpening[w.OpeningID], w.wave())
	}
	res := make([]domain.JobOpening, 0, len(rows))
	for _, row := range rows {
		o := openingFromRow(row)
		o.Waves = byOpening[o.ID]
		res = append(res, o)
	}
	return res, nil
}

func openingFromRow(row openingRow) domain.JobOpening {
	return domain.JobOpening{
		ID:          row.ID,
		Title:       row.Title,
		CompanyName: row.CompanyName,
		Status:      domain.OpeningStatus(row.Status),
		CreatedAt:   parseTS(row.CreatedAt),
		Waves:       []domain.Wave{},
	}
}

func (r Repo) ListEvents(ctx context.Context, limit int, entityKind, entityID string) ([]domain.Event, error) {
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,'') AS entity_id,actor_id,payload_json FROM events WHERE 1=1`
	var args []any
	if entityKind != "" {
		query += ` AND entity_kind=?`
		args = append(args, entityKind)
	}
	if entityID != "" {
		query += ` AND entity_id=?`
		args = append(args, entityID)
	}
	query += ` ORDER BY ts DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var rows []struct {
		ID         string `db:"id"`
		TS         string `db:"ts"`
		Type       string `db:"type"`
		EntityKind string `db:"entity_kind"`
		EntityID   string `db:"entity_id"`
		ActorID    string `db:"actor_id"`
		Payload    string `db:"payload_json"`
	}
	if err := sqlx.SelectContext(ctx, r.DB, &rows, r.DB.Rebind(query), args...); err != nil {
		return nil, err
	}
	res := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.Event{
			ID:         row.ID,
			TS:         parseTS(row.TS),
			Type:       row.Type,
			EntityKind: row.EntityKind,
			EntityID:   row.EntityID,
			ActorID:    row.ActorID,
			Payload:    row.Payload,
		})
	}
	return res, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// OpeningByTitleTx returns the opening with exactly this title.
func (r Repo) OpeningByTitleTx(ctx context.Context, tx *sqlx.Tx, title string) (domain.JobOpening, error) {
	var id string
	err := sqlx.GetContext(ctx, tx, &id, tx.Rebind(`SELECT id FROM job_openings WHERE title=? ORDER BY created_at ASC, id ASC LIMIT 1`), title)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.JobOpening{}, ErrNotFound
	}
	if err != nil {
		return domain.JobOpening{}, err
	}
	return getOpening(ctx, tx, id)
}

func (r Repo) ListTemplatesTx(ctx context.Context, tx *sqlx.Tx) ([]domain.FeedbackTemplate, error) {
	return listTemplates(ctx, tx, "")
}
