package court

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
)

type Repository interface {
	Create(ctx context.Context, q db.Querier, c *Court) error
	GetByID(ctx context.Context, q db.Querier, id string) (*Court, error)
	List(ctx context.Context, q db.Querier, filter Filter) ([]*Court, int, error)
	Update(ctx context.Context, q db.Querier, c *Court) error

	// LockActive takes the court's row lock for the duration of the
	// caller's transaction and fails when the court is missing or not
	// in active status. This is the serialization point for all
	// conflict checks against the court.
	LockActive(ctx context.Context, q db.Querier, id string) error
}

type pgxRepository struct{}

func NewPgxRepository() Repository {
	return &pgxRepository{}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func (r *pgxRepository) Create(ctx context.Context, q db.Querier, c *Court) error {
	query, args, err := psql.Insert("public.courts").
		Columns("name", "hourly_rate", "status").
		Values(c.Name, c.HourlyRate, c.Status).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create court query failed: %w", err)
	}

	return q.QueryRow(ctx, query, args...).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *pgxRepository) GetByID(ctx context.Context, q db.Querier, id string) (*Court, error) {
	query, args, err := psql.Select("id", "name", "hourly_rate", "status", "created_at", "updated_at").
		From("public.courts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get court query failed: %w", err)
	}

	var c Court
	if err := q.QueryRow(ctx, query, args...).
		Scan(&c.ID, &c.Name, &c.HourlyRate, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get court failed: %w", err)
	}
	return &c, nil
}

func (r *pgxRepository) List(ctx context.Context, q db.Querier, filter Filter) ([]*Court, int, error) {
	query := psql.Select("id", "name", "hourly_rate", "status", "created_at", "updated_at",
		"count(*) OVER() as total_count").
		From("public.courts")

	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
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
		return nil, 0, fmt.Errorf("build list courts query failed: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list courts failed: %w", err)
	}
	defer rows.Close()

	var courts []*Court
	var total int

	for rows.Next() {
		var c Court
		if err := rows.Scan(&c.ID, &c.Name, &c.HourlyRate, &c.Status, &c.CreatedAt, &c.UpdatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan court failed: %w", err)
		}
		courts = append(courts, &c)
	}

	return courts, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, q db.Querier, c *Court) error {
	query, args, err := psql.Update("public.courts").
		Set("name", c.Name).
		Set("hourly_rate", c.HourlyRate).
		Set("status", c.Status).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update court query failed: %w", err)
	}

	ct, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update court failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgxRepository) LockActive(ctx context.Context, q db.Querier, id string) error {
	query, args, err := psql.Select("status").
		From("public.courts").
		Where(squirrel.Eq{"id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lock court query failed: %w", err)
	}

	var status Status
	if err := q.QueryRow(ctx, query, args...).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUnavailable
		}
		return fmt.Errorf("lock court failed: %w", err)
	}
	if status != StatusActive {
		return ErrUnavailable
	}
	return nil
}
