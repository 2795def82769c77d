package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
)

type Repository interface {
	GetByID(ctx context.Context, q db.Querier, id string) (*User, error)
}

type pgxRepository struct{}

func NewPgxRepository() Repository {
	return &pgxRepository{}
}

func (r *pgxRepository) GetByID(ctx context.Context, q db.Querier, id string) (*User, error) {
	psql := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	query, args, err := psql.Select("id", "email", "display_name", "is_active", "created_at").
		From("public.users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get user query failed: %w", err)
	}

	var u User
	if err := q.QueryRow(ctx, query, args...).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsActive, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user failed: %w", err)
	}
	return &u, nil
}
