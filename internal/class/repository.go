package class

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/interval"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Repository interface {
	CreateTemplate(ctx context.Context, q db.Querier, t *Template) error
	GetTemplate(ctx context.Context, q db.Querier, id string) (*Template, error)
	ListTemplates(ctx context.Context, q db.Querier, activeOnly bool) ([]Template, error)
	SetTemplateActive(ctx context.Context, q db.Querier, id string, active bool) error

	CreateOccurrence(ctx context.Context, q db.Querier, o *Occurrence) error
	GetOccurrence(ctx context.Context, q db.Querier, id string) (*Occurrence, error)
	GetOccurrenceForUpdate(ctx context.Context, q db.Querier, id string) (*Occurrence, error)
	ListOccurrences(ctx context.Context, q db.Querier, filter OccurrenceFilter) ([]Occurrence, int, error)
	UpdateOccurrence(ctx context.Context, q db.Querier, o *Occurrence) error

	CreateEnrollment(ctx context.Context, q db.Querier, e *Enrollment) error
	GetEnrollment(ctx context.Context, q db.Querier, id string) (*Enrollment, error)
	GetEnrollmentForUpdate(ctx context.Context, q db.Querier, id string) (*Enrollment, error)
	ListEnrollmentsByOccurrence(ctx context.Context, q db.Querier, occurrenceID string) ([]Enrollment, error)
	ListEnrollmentsByUser(ctx context.Context, q db.Querier, userID string) ([]Enrollment, error)
	HasActiveEnrollment(ctx context.Context, q db.Querier, occurrenceID, userID string) (bool, error)
	UpdateEnrollment(ctx context.Context, q db.Querier, e *Enrollment) error
}

type pgxRepository struct{}

func NewRepository() Repository {
	return &pgxRepository{}
}

const templateColumns = "id, title, instructor_id, court_id, weekday, start_min, duration_min, capacity, unit_price, active, created_at"

func (r *pgxRepository) CreateTemplate(ctx context.Context, q db.Querier, t *Template) error {
	query, args, err := psql.Insert("class_templates").
		Columns("title", "instructor_id", "court_id", "weekday", "start_min", "duration_min", "capacity", "unit_price", "active").
		Values(t.Title, t.InstructorID, t.CourtID, int(t.Weekday), t.StartMin, t.DurationMin, t.Capacity, t.UnitPrice, t.Active).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert template query: %w", err)
	}
	if err := q.QueryRow(ctx, query, args...).Scan(&t.ID, &t.CreatedAt); err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetTemplate(ctx context.Context, q db.Querier, id string) (*Template, error) {
	query, args, err := psql.Select(templateColumns).From("class_templates").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select template query: %w", err)
	}
	t, err := scanTemplate(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select template: %w", err)
	}
	return t, nil
}

func (r *pgxRepository) ListTemplates(ctx context.Context, q db.Querier, activeOnly bool) ([]Template, error) {
	b := psql.Select(templateColumns).From("class_templates").OrderBy("weekday ASC", "start_min ASC")
	if activeOnly {
		b = b.Where(sq.Eq{"active": true})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list templates query: %w", err)
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (r *pgxRepository) SetTemplateActive(ctx context.Context, q db.Querier, id string, active bool) error {
	query, args, err := psql.Update("class_templates").
		Set("active", active).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update template query: %w", err)
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

const occurrenceColumns = "id, template_id, instructor_id, court_id, start_time, end_time, capacity, remaining_slots, unit_price, status, created_at"

func (r *pgxRepository) CreateOccurrence(ctx context.Context, q db.Querier, o *Occurrence) error {
	query, args, err := psql.Insert("class_occurrences").
		Columns("template_id", "instructor_id", "court_id", "start_time", "end_time", "capacity", "remaining_slots", "unit_price", "status").
		Values(o.TemplateID, o.InstructorID, o.CourtID, o.Interval.Start, o.Interval.End, o.Capacity, o.RemainingSlots, o.UnitPrice, string(o.Status)).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert occurrence query: %w", err)
	}
	if err := q.QueryRow(ctx, query, args...).Scan(&o.ID, &o.CreatedAt); err != nil {
		return mapConflict(fmt.Errorf("insert occurrence: %w", err))
	}
	return nil
}

func (r *pgxRepository) getOccurrence(ctx context.Context, q db.Querier, id string, forUpdate bool) (*Occurrence, error) {
	b := psql.Select(occurrenceColumns).From("class_occurrences").Where(sq.Eq{"id": id})
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select occurrence query: %w", err)
	}
	o, err := scanOccurrence(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOccurrenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select occurrence: %w", err)
	}
	return o, nil
}

func (r *pgxRepository) GetOccurrence(ctx context.Context, q db.Querier, id string) (*Occurrence, error) {
	return r.getOccurrence(ctx, q, id, false)
}

func (r *pgxRepository) GetOccurrenceForUpdate(ctx context.Context, q db.Querier, id string) (*Occurrence, error) {
	return r.getOccurrence(ctx, q, id, true)
}

func (r *pgxRepository) ListOccurrences(ctx context.Context, q db.Querier, filter OccurrenceFilter) ([]Occurrence, int, error) {
	cond := sq.And{}
	if filter.TemplateID != "" {
		cond = append(cond, sq.Eq{"template_id": filter.TemplateID})
	}
	if filter.Status != "" {
		cond = append(cond, sq.Eq{"status": filter.Status})
	}
	if filter.From != nil {
		cond = append(cond, sq.GtOrEq{"end_time": *filter.From})
	}
	if filter.To != nil {
		cond = append(cond, sq.LtOrEq{"start_time": *filter.To})
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("class_occurrences").Where(cond).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count occurrences query: %w", err)
	}
	var total int
	if err := q.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count occurrences: %w", err)
	}

	offset := (filter.Page - 1) * filter.PageSize
	query, args, err := psql.Select(occurrenceColumns).From("class_occurrences").
		Where(cond).
		OrderBy("start_time ASC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list occurrences query: %w", err)
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list occurrences: %w", err)
	}
	defer rows.Close()

	var occurrences []Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan occurrence: %w", err)
		}
		occurrences = append(occurrences, *o)
	}
	return occurrences, total, rows.Err()
}

func (r *pgxRepository) UpdateOccurrence(ctx context.Context, q db.Querier, o *Occurrence) error {
	query, args, err := psql.Update("class_occurrences").
		Set("remaining_slots", o.RemainingSlots).
		Set("status", string(o.Status)).
		Where(sq.Eq{"id": o.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update occurrence query: %w", err)
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update occurrence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOccurrenceNotFound
	}
	return nil
}

const enrollmentColumns = "id, occurrence_id, user_id, price, status, created_at"

func (r *pgxRepository) CreateEnrollment(ctx context.Context, q db.Querier, e *Enrollment) error {
	query, args, err := psql.Insert("class_enrollments").
		Columns("occurrence_id", "user_id", "price", "status").
		Values(e.OccurrenceID, e.UserID, e.Price, string(e.Status)).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert enrollment query: %w", err)
	}
	if err := q.QueryRow(ctx, query, args...).Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}

func (r *pgxRepository) getEnrollment(ctx context.Context, q db.Querier, id string, forUpdate bool) (*Enrollment, error) {
	b := psql.Select(enrollmentColumns).From("class_enrollments").Where(sq.Eq{"id": id})
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select enrollment query: %w", err)
	}
	e, err := scanEnrollment(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select enrollment: %w", err)
	}
	return e, nil
}

func (r *pgxRepository) GetEnrollment(ctx context.Context, q db.Querier, id string) (*Enrollment, error) {
	return r.getEnrollment(ctx, q, id, false)
}

func (r *pgxRepository) GetEnrollmentForUpdate(ctx context.Context, q db.Querier, id string) (*Enrollment, error) {
	return r.getEnrollment(ctx, q, id, true)
}

func (r *pgxRepository) listEnrollments(ctx context.Context, q db.Querier, cond sq.Sqlizer) ([]Enrollment, error) {
	query, args, err := psql.Select(enrollmentColumns).From("class_enrollments").
		Where(cond).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list enrollments query: %w", err)
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		enrollments = append(enrollments, *e)
	}
	return enrollments, rows.Err()
}

func (r *pgxRepository) ListEnrollmentsByOccurrence(ctx context.Context, q db.Querier, occurrenceID string) ([]Enrollment, error) {
	return r.listEnrollments(ctx, q, sq.Eq{"occurrence_id": occurrenceID})
}

func (r *pgxRepository) ListEnrollmentsByUser(ctx context.Context, q db.Querier, userID string) ([]Enrollment, error) {
	return r.listEnrollments(ctx, q, sq.Eq{"user_id": userID})
}

func (r *pgxRepository) HasActiveEnrollment(ctx context.Context, q db.Querier, occurrenceID, userID string) (bool, error) {
	query, args, err := psql.Select("1").From("class_enrollments").
		Where(sq.Eq{"occurrence_id": occurrenceID, "user_id": userID, "status": string(EnrollmentConfirmed)}).
		Prefix("SELECT EXISTS (").Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build active enrollment query: %w", err)
	}
	var exists bool
	if err := q.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return exists, nil
}

func (r *pgxRepository) UpdateEnrollment(ctx context.Context, q db.Querier, e *Enrollment) error {
	query, args, err := psql.Update("class_enrollments").
		Set("status", string(e.Status)).
		Where(sq.Eq{"id": e.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update enrollment query: %w", err)
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

func occurrenceOverlapping(ctx context.Context, q db.Querier, resourceCol, resourceID string, iv interval.Interval, excludeID string) (bool, error) {
	b := psql.Select("1").From("class_occurrences").
		Where(sq.Eq{resourceCol: resourceID}).
		Where(sq.NotEq{"status": string(OccurrenceCancelled)}).
		Where(sq.Lt{"start_time": iv.End}).
		Where(sq.Gt{"end_time": iv.Start})
	if excludeID != "" {
		b = b.Where(sq.NotEq{"id": excludeID})
	}
	query, args, err := b.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("build occurrence overlap query: %w", err)
	}
	var exists bool
	if err := q.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check occurrence overlap: %w", err)
	}
	return exists, nil
}

// CourtSource exposes class occurrences as court occupancy.
type CourtSource struct{}

func (CourtSource) Name() string { return "class_occurrences" }

func (CourtSource) Overlapping(ctx context.Context, q db.Querier, courtID string, iv interval.Interval, excludeID string) (bool, error) {
	return occurrenceOverlapping(ctx, q, "court_id", courtID, iv, excludeID)
}

// InstructorSource exposes class occurrences as instructor occupancy.
type InstructorSource struct{}

func (InstructorSource) Name() string { return "class_occurrences" }

func (InstructorSource) Overlapping(ctx context.Context, q db.Querier, instructorID string, iv interval.Interval, excludeID string) (bool, error) {
	return occurrenceOverlapping(ctx, q, "instructor_id", instructorID, iv, excludeID)
}

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ExclusionViolation {
		return ErrInvalidState
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*Template, error) {
	var t Template
	var weekday int
	err := row.Scan(
		&t.ID, &t.Title, &t.InstructorID, &t.CourtID, &weekday,
		&t.StartMin, &t.DurationMin, &t.Capacity, &t.UnitPrice, &t.Active, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Weekday = time.Weekday(weekday)
	return &t, nil
}

func scanOccurrence(row rowScanner) (*Occurrence, error) {
	var o Occurrence
	err := row.Scan(
		&o.ID, &o.TemplateID, &o.InstructorID, &o.CourtID,
		&o.Interval.Start, &o.Interval.End,
		&o.Capacity, &o.RemainingSlots, &o.UnitPrice, &o.Status, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanEnrollment(row rowScanner) (*Enrollment, error) {
	var e Enrollment
	err := row.Scan(&e.ID, &e.OccurrenceID, &e.UserID, &e.Price, &e.Status, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
