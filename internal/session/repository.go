package session

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/interval"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Repository interface {
	Create(ctx context.Context, q db.Querier, s *PersonalSession) error
	GetByID(ctx context.Context, q db.Querier, id string) (*PersonalSession, error)
	GetForUpdate(ctx context.Context, q db.Querier, id string) (*PersonalSession, error)
	List(ctx context.Context, q db.Querier, filter Filter) ([]PersonalSession, int, error)
	Update(ctx context.Context, q db.Querier, s *PersonalSession) error
}

type pgxRepository struct{}

func NewRepository() Repository {
	return &pgxRepository{}
}

const sessionColumns = "id, user_id, instructor_id, court_id, start_time, end_time, price, status, created_at, updated_at"

func (r *pgxRepository) Create(ctx context.Context, q db.Querier, s *PersonalSession) error {
	query, args, err := psql.Insert("personal_sessions").
		Columns("user_id", "instructor_id", "court_id", "start_time", "end_time", "price", "status").
		Values(s.UserID, s.InstructorID, s.CourtID, s.Interval.Start, s.Interval.End, s.Price, string(s.Status)).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session query: %w", err)
	}
	if err := q.QueryRow(ctx, query, args...).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return mapConflict(fmt.Errorf("insert session: %w", err))
	}
	return nil
}

func (r *pgxRepository) get(ctx context.Context, q db.Querier, id string, forUpdate bool) (*PersonalSession, error) {
	b := psql.Select(sessionColumns).From("personal_sessions").Where(sq.Eq{"id": id})
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session query: %w", err)
	}
	s, err := scanSession(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	return s, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, q db.Querier, id string) (*PersonalSession, error) {
	return r.get(ctx, q, id, false)
}

func (r *pgxRepository) GetForUpdate(ctx context.Context, q db.Querier, id string) (*PersonalSession, error) {
	return r.get(ctx, q, id, true)
}

func (r *pgxRepository) List(ctx context.Context, q db.Querier, filter Filter) ([]PersonalSession, int, error) {
	cond := sq.And{}
	if filter.UserID != "" {
		cond = append(cond, sq.Eq{"user_id": filter.UserID})
	}
	if filter.InstructorID != "" {
		cond = append(cond, sq.Eq{"instructor_id": filter.InstructorID})
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

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("personal_sessions").Where(cond).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count sessions query: %w", err)
	}
	var total int
	if err := q.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	offset := (filter.Page - 1) * filter.PageSize
	query, args, err := psql.Select(sessionColumns).From("personal_sessions").
		Where(cond).
		OrderBy("start_time ASC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list sessions query: %w", err)
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []PersonalSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, total, rows.Err()
}

func (r *pgxRepository) Update(ctx context.Context, q db.Querier, s *PersonalSession) error {
	query, args, err := psql.Update("personal_sessions").
		Set("court_id", s.CourtID).
		Set("start_time", s.Interval.Start).
		Set("end_time", s.Interval.End).
		Set("price", s.Price).
		Set("status", string(s.Status)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": s.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update session query: %w", err)
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return mapConflict(fmt.Errorf("update session: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func overlapping(ctx context.Context, q db.Querier, resourceCol, resourceID string, iv interval.Interval, excludeID string) (bool, error) {
	b := psql.Select("1").From("personal_sessions").
		Where(sq.Eq{resourceCol: resourceID}).
		Where(sq.NotEq{"status": string(StatusCancelled)}).
		Where(sq.Lt{"start_time": iv.End}).
		Where(sq.Gt{"end_time": iv.Start})
	if excludeID != "" {
		b = b.Where(sq.NotEq{"id": excludeID})
	}
	query, args, err := b.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("build session overlap query: %w", err)
	}
	var exists bool
	if err := q.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check session overlap: %w", err)
	}
	return exists, nil
}

// CourtSource exposes sessions as court occupancy: a session holding a
// court blocks that court like a direct booking would.
type CourtSource struct{}

func (CourtSource) Name() string { return "personal_sessions" }

func (CourtSource) Overlapping(ctx context.Context, q db.Querier, courtID string, iv interval.Interval, excludeID string) (bool, error) {
	return overlapping(ctx, q, "court_id", courtID, iv, excludeID)
}

// InstructorSource exposes sessions as instructor occupancy.
type InstructorSource struct{}

func (InstructorSource) Name() string { return "personal_sessions" }

func (InstructorSource) Overlapping(ctx context.Context, q db.Querier, instructorID string, iv interval.Interval, excludeID string) (bool, error) {
	return overlapping(ctx, q, "instructor_id", instructorID, iv, excludeID)
}

func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ExclusionViolation {
		return ErrScheduleConflict
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*PersonalSession, error) {
	var s PersonalSession
	err := row.Scan(
		&s.ID, &s.UserID, &s.InstructorID, &s.CourtID, &s.Interval.Start, &s.Interval.End,
		&s.Price, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
