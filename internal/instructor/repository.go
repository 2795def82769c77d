package instructor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
)

type Repository interface {
	Create(ctx context.Context, q db.Querier, ins *Instructor) error
	GetByID(ctx context.Context, q db.Querier, id string) (*Instructor, error)
	List(ctx context.Context, q db.Querier, filter Filter) ([]*Instructor, int, error)
	Update(ctx context.Context, q db.Querier, ins *Instructor) error

	// LockActive takes the instructor's row lock inside the caller's
	// transaction; fails when missing or inactive.
	LockActive(ctx context.Context, q db.Querier, id string) error

	CreateWindow(ctx context.Context, q db.Querier, w *AvailabilityWindow) error
	GetWindow(ctx context.Context, q db.Querier, id string) (*AvailabilityWindow, error)
	ListWindows(ctx context.Context, q db.Querier, instructorID string) ([]*AvailabilityWindow, error)
	ListWindowsByWeekday(ctx context.Context, q db.Querier, instructorID string, weekday time.Weekday) ([]*AvailabilityWindow, error)
	UpdateWindow(ctx context.Context, q db.Querier, w *AvailabilityWindow) error
	DeleteWindow(ctx context.Context, q db.Querier, id string) error

	// HasWindowOverlap checks the per-weekday window exclusivity
	// invariant, excluding the window being updated.
	HasWindowOverlap(ctx context.Context, q db.Querier, instructorID string, weekday time.Weekday, startMin, endMin int, excludeID string) (bool, error)
}

type pgxRepository struct{}

func NewPgxRepository() Repository {
	return &pgxRepository{}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func (r *pgxRepository) Create(ctx context.Context, q db.Querier, ins *Instructor) error {
	query, args, err := psql.Insert("public.instructors").
		Columns("name", "hourly_rate", "is_active").
		Values(ins.Name, ins.HourlyRate, ins.IsActive).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create instructor query failed: %w", err)
	}

	return q.QueryRow(ctx, query, args...).
		Scan(&ins.ID, &ins.CreatedAt, &ins.UpdatedAt)
}

func (r *pgxRepository) GetByID(ctx context.Context, q db.Querier, id string) (*Instructor, error) {
	query, args, err := psql.Select("id", "name", "hourly_rate", "is_active", "created_at", "updated_at").
		From("public.instructors").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get instructor query failed: %w", err)
	}

	var ins Instructor
	if err := q.QueryRow(ctx, query, args...).
		Scan(&ins.ID, &ins.Name, &ins.HourlyRate, &ins.IsActive, &ins.CreatedAt, &ins.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get instructor failed: %w", err)
	}
	return &ins, nil
}

func (r *pgxRepository) List(ctx context.Context, q db.Querier, filter Filter) ([]*Instructor, int, error) {
	query := psql.Select("id", "name", "hourly_rate", "is_active", "created_at", "updated_at",
		"count(*) OVER() as total_count").
		From("public.instructors")

	if filter.ActiveOnly {
		query = query.Where(squirrel.Eq{"is_active": true})
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	query = query.OrderBy("name ASC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list instructors query failed: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list instructors failed: %w", err)
	}
	defer rows.Close()

	var instructors []*Instructor
	var total int

	for rows.Next() {
		var ins Instructor
		if err := rows.Scan(&ins.ID, &ins.Name, &ins.HourlyRate, &ins.IsActive, &ins.CreatedAt, &ins.UpdatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan instructor failed: %w", err)
		}
		instructors = append(instructors, &ins)
	}

	return instructors, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, q db.Querier, ins *Instructor) error {
	query, args, err := psql.Update("public.instructors").
		Set("name", ins.Name).
		Set("hourly_rate", ins.HourlyRate).
		Set("is_active", ins.IsActive).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": ins.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update instructor query failed: %w", err)
	}

	ct, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update instructor failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) LockActive(ctx context.Context, q db.Querier, id string) error {
	query, args, err := psql.Select("is_active").
		From("public.instructors").
		Where(squirrel.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lock instructor query failed: %w", err)
	}

	var active bool
	if err := q.QueryRow(ctx, query, args...).Scan(&active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUnavailable
		}
		return fmt.Errorf("lock instructor failed: %w", err)
	}
	if !active {
		return ErrUnavailable
	}
	return nil
}

func (r *pgxRepository) CreateWindow(ctx context.Context, q db.Querier, w *AvailabilityWindow) error {
	query, args, err := psql.Insert("public.availability_windows").
		Columns("instructor_id", "weekday", "start_min", "end_min").
		Values(w.InstructorID, int(w.Weekday), w.StartMin, w.EndMin).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create window query failed: %w", err)
	}

	return q.QueryRow(ctx, query, args...).Scan(&w.ID)
}

func (r *pgxRepository) GetWindow(ctx context.Context, q db.Querier, id string) (*AvailabilityWindow, error) {
	query, args, err := psql.Select("id", "instructor_id", "weekday", "start_min", "end_min").
		From("public.availability_windows").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get window query failed: %w", err)
	}

	var w AvailabilityWindow
	var weekday int
	if err := q.QueryRow(ctx, query, args...).
		Scan(&w.ID, &w.InstructorID, &weekday, &w.StartMin, &w.EndMin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		return nil, fmt.Errorf("get window failed: %w", err)
	}
	w.Weekday = time.Weekday(weekday)
	return &w, nil
}

func (r *pgxRepository) ListWindows(ctx context.Context, q db.Querier, instructorID string) ([]*AvailabilityWindow, error) {
	return r.listWindows(ctx, q, squirrel.Eq{"instructor_id": instructorID})
}

func (r *pgxRepository) ListWindowsByWeekday(ctx context.Context, q db.Querier, instructorID string, weekday time.Weekday) ([]*AvailabilityWindow, error) {
	return r.listWindows(ctx, q, squirrel.Eq{"instructor_id": instructorID, "weekday": int(weekday)})
}

func (r *pgxRepository) listWindows(ctx context.Context, q db.Querier, where squirrel.Eq) ([]*AvailabilityWindow, error) {
	query, args, err := psql.Select("id", "instructor_id", "weekday", "start_min", "end_min").
		From("public.availability_windows").
		Where(where).
		OrderBy("weekday ASC", "start_min ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list windows query failed: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list windows failed: %w", err)
	}
	defer rows.Close()

	var windows []*AvailabilityWindow
	for rows.Next() {
		var w AvailabilityWindow
		var weekday int
		if err := rows.Scan(&w.ID, &w.InstructorID, &weekday, &w.StartMin, &w.EndMin); err != nil {
			return nil, fmt.Errorf("scan window failed: %w", err)
		}
		w.Weekday = time.Weekday(weekday)
		windows = append(windows, &w)
	}

	return windows, nil
}

func (r *pgxRepository) UpdateWindow(ctx context.Context, q db.Querier, w *AvailabilityWindow) error {
	query, args, err := psql.Update("public.availability_windows").
		Set("weekday", int(w.Weekday)).
		Set("start_min", w.StartMin).
		Set("end_min", w.EndMin).
		Where(squirrel.Eq{"id": w.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update window query failed: %w", err)
	}

	ct, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update window failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrWindowNotFound
	}
	return nil
}

func (r *pgxRepository) DeleteWindow(ctx context.Context, q db.Querier, id string) error {
	query, args, err := psql.Delete("public.availability_windows").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete window query failed: %w", err)
	}

	ct, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete window failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrWindowNotFound
	}
	return nil
}

func (r *pgxRepository) HasWindowOverlap(ctx context.Context, q db.Querier, instructorID string, weekday time.Weekday, startMin, endMin int, excludeID string) (bool, error) {
	subQuery := psql.Select("1").
		From("public.availability_windows").
		Where(squirrel.Eq{"instructor_id": instructorID, "weekday": int(weekday)}).
		Where(squirrel.Lt{"start_min": endMin}).
		Where(squirrel.Gt{"end_min": startMin})

	if excludeID != "" {
		subQuery = subQuery.Where(squirrel.NotEq{"id": excludeID})
	}

	sql, args, err := subQuery.ToSql()
	if err != nil {
		return false, fmt.Errorf("build check window overlap query failed: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, "SELECT EXISTS ("+sql+")", args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check window overlap failed: %w", err)
	}
	return exists, nil
}
