package booking

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
	Create(ctx context.Context, q db.Querier, b *CourtBooking) error
	GetByID(ctx context.Context, q db.Querier, id string) (*CourtBooking, error)
	GetForUpdate(ctx context.Context, q db.Querier, id string) (*CourtBooking, error)
	GetByLinkedSession(ctx context.Context, q db.Querier, sessionID string) (*CourtBooking, error)
	List(ctx context.Context, q db.Querier, filter Filter) ([]CourtBooking, int, error)
	Update(ctx context.Context, q db.Querier, b *CourtBooking) error
	Delete(ctx context.Context, q db.Querier, id string) error
}

type pgxRepository struct{}

func NewRepository() Repository {
	return &pgxRepository{}
}

const bookingColumns = "id, user_id, court_id, start_time, end_time, price, status, linked_session_id, created_at, updated_at"

func (r *pgxRepository) Create(ctx context.Context, q db.Querier, b *CourtBooking) error {
	query, args, err := psql.Insert("court_bookings").
		Columns("user_id", "court_id", "start_time", "end_time", "price", "status", "linked_session_id").
		Values(b.UserID, b.CourtID, b.Interval.Start, b.Interval.End, b.Price, string(b.Status), b.LinkedSessionID).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert booking query: %w", err)
	}
	if err := q.QueryRow(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return mapConflict(fmt.Errorf("insert booking: %w", err))
	}
	return nil
}

func (r *pgxRepository) get(ctx context.Context, q db.Querier, cond sq.Sqlizer, forUpdate bool) (*CourtBooking, error) {
	b := psql.Select(bookingColumns).From("court_bookings").Where(cond)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select booking query: %w", err)
	}
	booking, err := scanBooking(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select booking: %w", err)
	}
	return booking, nil
}

func (r *pgxRepository) GetByID(ctx context.Context, q db.Querier, id string) (*CourtBooking, error) {
	return r.get(ctx, q, sq.Eq{"id": id}, false)
}

func (r *pgxRepository) GetForUpdate(ctx context.Context, q db.Querier, id string) (*CourtBooking, error) {
	return r.get(ctx, q, sq.Eq{"id": id}, true)
}

func (r *pgxRepository) GetByLinkedSession(ctx context.Context, q db.Querier, sessionID string) (*CourtBooking, error) {
	return r.get(ctx, q, sq.And{
		sq.Eq{"linked_session_id": sessionID},
		sq.NotEq{"status": string(StatusCancelled)},
	}, true)
}

func (r *pgxRepository) List(ctx context.Context, q db.Querier, filter Filter) ([]CourtBooking, int, error) {
	cond := sq.And{}
	if filter.UserID != "" {
		cond = append(cond, sq.Eq{"user_id": filter.UserID})
	}
	if filter.CourtID != "" {
		cond = append(cond, sq.Eq{"court_id": filter.CourtID})
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

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("court_bookings").Where(cond).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count bookings query: %w", err)
	}
	var total int
	if err := q.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	offset := (filter.Page - 1) * filter.PageSize
	query, args, err := psql.Select(bookingColumns).From("court_bookings").
		Where(cond).
		OrderBy("start_time ASC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query: %w", err)
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []CourtBooking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, total, rows.Err()
}

func (r *pgxRepository) Update(ctx context.Context, q db.Querier, b *CourtBooking) error {
	query, args, err := psql.Update("court_bookings").
		Set("court_id", b.CourtID).
		Set("start_time", b.Interval.Start).
		Set("end_time", b.Interval.End).
		Set("price", b.Price).
		Set("status", string(b.Status)).
		Set("linked_session_id", b.LinkedSessionID).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": b.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update booking query: %w", err)
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return mapConflict(fmt.Errorf("update booking: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete hard-removes a booking row. Only used when a session detaches
// its court before the linked booking ever collected money; user-facing
// cancellation is status-based.
func (r *pgxRepository) Delete(ctx context.Context, q db.Querier, id string) error {
	query, args, err := psql.Delete("court_bookings").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete booking query: %w", err)
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// OccupancySource exposes court_bookings as an occupancy table for the
// conflict detector.
type OccupancySource struct {
	repo Repository
}

func NewOccupancySource(repo Repository) *OccupancySource {
	return &OccupancySource{repo: repo}
}

func (s *OccupancySource) Name() string { return "court_bookings" }

func (s *OccupancySource) Overlapping(ctx context.Context, q db.Querier, courtID string, iv interval.Interval, excludeID string) (bool, error) {
	b := psql.Select("1").From("court_bookings").
		Where(sq.Eq{"court_id": courtID}).
		Where(sq.NotEq{"status": string(StatusCancelled)}).
		Where(sq.Lt{"start_time": iv.End}).
		Where(sq.Gt{"end_time": iv.Start})
	if excludeID != "" {
		b = b.Where(sq.NotEq{"id": excludeID})
	}
	query, args, err := b.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("build booking overlap query: %w", err)
	}
	var exists bool
	if err := q.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check booking overlap: %w", err)
	}
	return exists, nil
}

// mapConflict translates an exclusion-constraint violation, the
// database-level backstop behind the application conflict check, into
// the domain conflict error.
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

func scanBooking(row rowScanner) (*CourtBooking, error) {
	var b CourtBooking
	err := row.Scan(
		&b.ID, &b.UserID, &b.CourtID, &b.Interval.Start, &b.Interval.End,
		&b.Price, &b.Status, &b.LinkedSessionID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
