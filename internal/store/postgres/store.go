// Package postgres implements application.Store on PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zulfie1003/InternTrack/internal/application"
)

const columns = `id, user_id, company, position, location, job_type, status, priority, source,
	salary, contact_person, application_date, interview_date, deadline,
	job_url, notes, tags, attachments, timeline, created_at, updated_at`

// Store is the PostgreSQL application.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store using pool. The schema must already exist.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Insert(ctx context.Context, rec *application.Record) error {
	salary, contact, attachments, timeline, err := encodeJSON(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO applications (`+columns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		rec.ID, rec.OwnerID, rec.Company, rec.Position, rec.Location,
		string(rec.JobType), string(rec.Status), string(rec.Priority), string(rec.Source),
		salary, contact, rec.ApplicationDate, rec.InterviewDate, rec.Deadline,
		rec.JobURL, rec.Notes, tagsParam(rec.Tags), attachments, timeline,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*application.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+columns+` FROM applications WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, application.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return rec, nil
}

// Update writes every mutable column and appends to the stored timeline in
// the same statement. user_id and created_at are never rewritten.
func (s *Store) Update(ctx context.Context, rec *application.Record, appended []application.TimelineEntry) error {
	salary, contact, attachments, _, err := encodeJSON(rec)
	if err != nil {
		return err
	}
	if appended == nil {
		appended = []application.TimelineEntry{}
	}
	newEntries, err := json.Marshal(appended)
	if err != nil {
		return fmt.Errorf("encode timeline: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE applications
		 SET company          = $2,
		     position         = $3,
		     location         = $4,
		     job_type         = $5,
		     status           = $6,
		     priority         = $7,
		     source           = $8,
		     salary           = $9,
		     contact_person   = $10,
		     application_date = $11,
		     interview_date   = $12,
		     deadline         = $13,
		     job_url          = $14,
		     notes            = $15,
		     tags             = $16,
		     attachments      = $17,
		     timeline         = timeline || $18::jsonb,
		     updated_at       = $19
		 WHERE id = $1`,
		rec.ID, rec.Company, rec.Position, rec.Location,
		string(rec.JobType), string(rec.Status), string(rec.Priority), string(rec.Source),
		salary, contact, rec.ApplicationDate, rec.InterviewDate, rec.Deadline,
		rec.JobURL, rec.Notes, tagsParam(rec.Tags), attachments, string(newEntries),
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return application.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return application.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteMany(ctx context.Context, owner string, ids []string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM applications WHERE user_id = $1 AND id = ANY($2)`,
		owner, ids,
	)
	if err != nil {
		return 0, fmt.Errorf("delete applications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) Find(ctx context.Context, owner string, q application.Query) ([]application.Record, int, error) {
	where, args := buildWhere(owner, q.Filter)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM applications WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}

	window, args := pageClause(args, q.Offset, q.Limit)
	rows, err := s.pool.Query(ctx,
		`SELECT `+columns+` FROM applications WHERE `+where+` ORDER BY `+orderBy(q.Sort)+window,
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("find applications: %w", err)
	}
	recs, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func (s *Store) ListByOwner(ctx context.Context, owner string) ([]application.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+columns+` FROM applications WHERE user_id = $1 ORDER BY `+orderBy(application.SortNewest),
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return collect(rows)
}

func (s *Store) ListUpcoming(ctx context.Context, from, to time.Time) ([]application.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+columns+` FROM applications
		 WHERE (interview_date >= $1 AND interview_date < $2)
		    OR (deadline >= $1 AND deadline < $2)
		 ORDER BY id`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list upcoming applications: %w", err)
	}
	return collect(rows)
}

// ─── Query building ──────────────────────────────────────────────────────────

// buildWhere renders the owner scope plus every set filter as a WHERE body
// with positional arguments.
func buildWhere(owner string, f application.Filter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{owner}

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.JobType != "" {
		add("job_type = $%d", string(f.JobType))
	}
	if f.Priority != "" {
		add("priority = $%d", string(f.Priority))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(company ILIKE $%d OR position ILIKE $%d OR location ILIKE $%d)", n, n, n))
	}
	return strings.Join(conds, " AND "), args
}

// escapeLike neutralises LIKE wildcards so search terms match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// orderBy mirrors SortOrder.Less, including its tie-breaks.
func orderBy(s application.SortOrder) string {
	const ties = "created_at DESC, id ASC"
	switch s {
	case application.SortCompanyAsc:
		return "company ASC, " + ties
	case application.SortCompanyDesc:
		return "company DESC, " + ties
	case application.SortPositionAsc:
		return "position ASC, " + ties
	case application.SortApplicationDateDesc:
		return "application_date DESC, " + ties
	case application.SortStatusAsc:
		return "status ASC, " + ties
	}
	return ties
}

// pageClause appends LIMIT/OFFSET placeholders. A non-positive limit means
// no limit.
func pageClause(args []any, offset, limit int) (string, []any) {
	var b strings.Builder
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

// ─── Scanning ────────────────────────────────────────────────────────────────

func collect(rows pgx.Rows) ([]application.Record, error) {
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (application.Record, error) {
		rec, err := scanRecord(row)
		if err != nil {
			return application.Record{}, err
		}
		return *rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan applications: %w", err)
	}
	if recs == nil {
		recs = []application.Record{}
	}
	return recs, nil
}

func scanRecord(row pgx.Row) (*application.Record, error) {
	var (
		rec                                        application.Record
		jobType, status, priority, source          string
		salary, contact, attachments, timelineJSON []byte
	)
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Company, &rec.Position, &rec.Location,
		&jobType, &status, &priority, &source,
		&salary, &contact, &rec.ApplicationDate, &rec.InterviewDate, &rec.Deadline,
		&rec.JobURL, &rec.Notes, &rec.Tags, &attachments, &timelineJSON,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.JobType = application.JobType(jobType)
	rec.Status = application.Status(status)
	rec.Priority = application.Priority(priority)
	rec.Source = application.Source(source)
	rec.ApplicationDate = rec.ApplicationDate.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	rec.InterviewDate = utcPtr(rec.InterviewDate)
	rec.Deadline = utcPtr(rec.Deadline)

	if err := decodeJSON(salary, &rec.Salary); err != nil {
		return nil, fmt.Errorf("decode salary: %w", err)
	}
	if err := decodeJSON(contact, &rec.ContactPerson); err != nil {
		return nil, fmt.Errorf("decode contact person: %w", err)
	}
	if err := decodeJSON(attachments, &rec.Attachments); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	if err := decodeJSON(timelineJSON, &rec.Timeline); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if rec.Attachments == nil {
		rec.Attachments = []application.Attachment{}
	}
	if rec.Timeline == nil {
		rec.Timeline = []application.TimelineEntry{}
	}
	return &rec, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// encodeJSON renders the JSONB columns of rec. Absent salary and contact
// encode as SQL NULL.
func encodeJSON(rec *application.Record) (salary, contact, attachments, timeline any, err error) {
	if rec.Salary != nil {
		if salary, err = marshalString(rec.Salary); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("encode salary: %w", err)
		}
	}
	if rec.ContactPerson != nil {
		if contact, err = marshalString(rec.ContactPerson); err != nil {
			return nil, nil, nil, nil, fmt.Errorf("encode contact person: %w", err)
		}
	}
	atts := rec.Attachments
	if atts == nil {
		atts = []application.Attachment{}
	}
	if attachments, err = marshalString(atts); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode attachments: %w", err)
	}
	tl := rec.Timeline
	if tl == nil {
		tl = []application.TimelineEntry{}
	}
	if timeline, err = marshalString(tl); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode timeline: %w", err)
	}
	return salary, contact, attachments, timeline, nil
}

func marshalString(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func tagsParam(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
