package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Repository interface {
	CreateCharge(ctx context.Context, q db.Querier, c *Charge) error
	GetCharge(ctx context.Context, q db.Querier, id string) (*Charge, error)
	GetChargeForUpdate(ctx context.Context, q db.Querier, id string) (*Charge, error)
	GetChargeByReference(ctx context.Context, q db.Querier, refType ReferenceType, refID string) (*Charge, error)
	ListCharges(ctx context.Context, q db.Querier, filter ChargeFilter) ([]Charge, int, error)
	UpdateCharge(ctx context.Context, q db.Querier, c *Charge) error

	CreateInstallment(ctx context.Context, q db.Querier, inst *Installment) error
	GetInstallment(ctx context.Context, q db.Querier, id string) (*Installment, error)
	GetInstallmentForUpdate(ctx context.Context, q db.Querier, id string) (*Installment, error)
	ListInstallmentsByCharge(ctx context.Context, q db.Querier, chargeID string) ([]Installment, error)
	UpdateInstallment(ctx context.Context, q db.Querier, inst *Installment) error

	CreatePayment(ctx context.Context, q db.Querier, p *Payment) error
	GetPayment(ctx context.Context, q db.Querier, id string) (*Payment, error)
	GetPaymentForUpdate(ctx context.Context, q db.Querier, id string) (*Payment, error)
	GetPaymentByExternalID(ctx context.Context, q db.Querier, provider, externalID string) (*Payment, error)
	HasPendingPayment(ctx context.Context, q db.Querier, installmentID string) (bool, error)
	// HasLivePayment reports whether any non-cancelled payment other
	// than excludeID exists for the installment.
	HasLivePayment(ctx context.Context, q db.Querier, installmentID, excludeID string) (bool, error)
	UpdatePayment(ctx context.Context, q db.Querier, p *Payment) error
	ListOverduePayments(ctx context.Context, q db.Querier, now time.Time, limit int) ([]Payment, error)

	UpsertWebhookEvent(ctx context.Context, q db.Querier, ev *WebhookEvent) (*WebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, q db.Querier, id string, at time.Time) error
}

type pgxRepository struct{}

func NewRepository() Repository {
	return &pgxRepository{}
}

const chargeColumns = "id, user_id, reference_type, reference_id, description, total_amount, paid_amount, status, due_date, created_at, updated_at"

func (r *pgxRepository) CreateCharge(ctx context.Context, q db.Querier, c *Charge) error {
	query, args, err := psql.Insert("charges").
		Columns("user_id", "reference_type", "reference_id", "description", "total_amount", "paid_amount", "status", "due_date").
		Values(c.UserID, string(c.ReferenceType), c.ReferenceID, c.Description, c.TotalAmount, c.PaidAmount, string(c.Status), c.DueDate).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert charge query: %w", err)
	}
	if err := q.QueryRow(ctx, query, args...).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("insert charge: %w", err)
	}
	return nil
}

func (r *pgxRepository) getCharge(ctx context.Context, q db.Querier, id string, forUpdate bool) (*Charge, error) {
	b := psql.Select(chargeColumns).From("charges").Where(sq.Eq{"id": id})
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select charge query: %w", err)
	}
	c, err := scanCharge(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChargeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select charge: %w", err)
	}
	return c, nil
}

func (r *pgxRepository) GetCharge(ctx context.Context, q db.Querier, id string) (*Charge, error) {
	return r.getCharge(ctx, q, id, false)
}

func (r *pgxRepository) GetChargeForUpdate(ctx context.Context, q db.Querier, id string) (*Charge, error) {
	return r.getCharge(ctx, q, id, true)
}

func (r *pgxRepository) GetChargeByReference(ctx context.Context, q db.Querier, refType ReferenceType, refID string) (*Charge, error) {
	query, args, err := psql.Select(chargeColumns).From("charges").
		Where(sq.Eq{"reference_type": string(refType), "reference_id": refID}).
		Where(sq.NotEq{"status": string(ChargeCancelled)}).
		OrderBy("created_at DESC").
		Limit(1).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select charge by reference query: %w", err)
	}
	c, err := scanCharge(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChargeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select charge by reference: %w", err)
	}
	return c, nil
}

func (r *pgxRepository) ListCharges(ctx context.Context, q db.Querier, filter ChargeFilter) ([]Charge, int, error) {
	cond := sq.And{}
	if filter.UserID != "" {
		cond = append(cond, sq.Eq{"user_id": filter.UserID})
	}
	if filter.Status != "" {
		cond = append(cond, sq.Eq{"status": filter.Status})
	}
	if filter.ReferenceType != "" {
		cond = append(cond, sq.Eq{"reference_type": filter.ReferenceType})
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("charges").Where(cond).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count charges query: %w", err)
	}
	var total int
	if err := q.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count charges: %w", err)
	}

	offset := (filter.Page - 1) * filter.PageSize
	query, args, err := psql.Select(chargeColumns).From("charges").
		Where(cond).
		OrderBy("created_at DESC").
		Limit(uint64(filter.PageSize)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list charges query: %w", err)
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list charges: %w", err)
	}
	defer rows.Close()

	var charges []Charge
	for rows.Next() {
		c, err := scanCharge(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan charge: %w", err)
		}
		charges = append(charges, *c)
	}
	return charges, total, rows.Err()
}

func (r *pgxRepository) UpdateCharge(ctx context.Context, q db.Querier, c *Charge) error {
	query, args, err := psql.Update("charges").
		Set("paid_amount", c.PaidAmount).
		Set("status", string(c.Status)).
		Set("due_date", c.DueDate).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update charge query: %w", err)
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update charge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrChargeNotFound
	}
	return nil
}

const installmentColumns = "id, charge_id, sequence_number, total_installments, amount, paid_amount, status, due_date"

func (r *pgxRepository) CreateInstallment(ctx context.Context, q db.Querier, inst *Installment) error {
	query, args, err := psql.Insert("installments").
		Columns("charge_id", "sequence_number", "total_installments", "amount", "paid_amount", "status", "due_date").
		Values(inst.ChargeID, inst.SequenceNumber, inst.TotalInstallments, inst.Amount, inst.PaidAmount, string(inst.Status), inst.DueDate).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert installment query: %w", err)
	}
	if err := q.QueryRow(ctx, query, args...).Scan(&inst.ID); err != nil {
		return fmt.Errorf("insert installment: %w", err)
	}
	return nil
}

func (r *pgxRepository) getInstallment(ctx context.Context, q db.Querier, id string, forUpdate bool) (*Installment, error) {
	b := psql.Select(installmentColumns).From("installments").Where(sq.Eq{"id": id})
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select installment query: %w", err)
	}
	inst, err := scanInstallment(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInstallmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select installment: %w", err)
	}
	return inst, nil
}

func (r *pgxRepository) GetInstallment(ctx context.Context, q db.Querier, id string) (*Installment, error) {
	return r.getInstallment(ctx, q, id, false)
}

func (r *pgxRepository) GetInstallmentForUpdate(ctx context.Context, q db.Querier, id string) (*Installment, error) {
	return r.getInstallment(ctx, q, id, true)
}

func (r *pgxRepository) ListInstallmentsByCharge(ctx context.Context, q db.Querier, chargeID string) ([]Installment, error) {
	query, args, err := psql.Select(installmentColumns).From("installments").
		Where(sq.Eq{"charge_id": chargeID}).
		OrderBy("sequence_number ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list installments query: %w", err)
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()

	var installments []Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		installments = append(installments, *inst)
	}
	return installments, rows.Err()
}

func (r *pgxRepository) UpdateInstallment(ctx context.Context, q db.Querier, inst *Installment) error {
	query, args, err := psql.Update("installments").
		Set("paid_amount", inst.PaidAmount).
		Set("status", string(inst.Status)).
		Where(sq.Eq{"id": inst.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update installment query: %w", err)
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update installment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInstallmentNotFound
	}
	return nil
}

const paymentColumns = "id, installment_id, provider, method, amount, status, external_transaction_id, checkout_url, expires_at, created_at, updated_at"

func (r *pgxRepository) CreatePayment(ctx context.Context, q db.Querier, p *Payment) error {
	query, args, err := psql.Insert("payments").
		Columns("installment_id", "provider", "method", "amount", "status", "external_transaction_id", "checkout_url", "expires_at").
		Values(p.InstallmentID, p.Provider, p.Method, p.Amount, string(p.Status), p.ExternalTransactionID, p.CheckoutURL, p.ExpiresAt).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert payment query: %w", err)
	}
	if err := q.QueryRow(ctx, query, args...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *pgxRepository) getPayment(ctx context.Context, q db.Querier, cond sq.Sqlizer, forUpdate bool) (*Payment, error) {
	b := psql.Select(paymentColumns).From("payments").Where(cond)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select payment query: %w", err)
	}
	p, err := scanPayment(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select payment: %w", err)
	}
	return p, nil
}

func (r *pgxRepository) GetPayment(ctx context.Context, q db.Querier, id string) (*Payment, error) {
	return r.getPayment(ctx, q, sq.Eq{"id": id}, false)
}

func (r *pgxRepository) GetPaymentForUpdate(ctx context.Context, q db.Querier, id string) (*Payment, error) {
	return r.getPayment(ctx, q, sq.Eq{"id": id}, true)
}

func (r *pgxRepository) GetPaymentByExternalID(ctx context.Context, q db.Querier, provider, externalID string) (*Payment, error) {
	return r.getPayment(ctx, q, sq.Eq{"provider": provider, "external_transaction_id": externalID}, true)
}

func (r *pgxRepository) HasPendingPayment(ctx context.Context, q db.Querier, installmentID string) (bool, error) {
	query, args, err := psql.Select("1").From("payments").
		Where(sq.Eq{"installment_id": installmentID, "status": string(PaymentPending)}).
		Prefix("SELECT EXISTS (").Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build pending payment query: %w", err)
	}
	var exists bool
	if err := q.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check pending payment: %w", err)
	}
	return exists, nil
}

func (r *pgxRepository) HasLivePayment(ctx context.Context, q db.Querier, installmentID, excludeID string) (bool, error) {
	query, args, err := psql.Select("1").From("payments").
		Where(sq.Eq{"installment_id": installmentID}).
		Where(sq.NotEq{"status": string(PaymentCancelled)}).
		Where(sq.NotEq{"id": excludeID}).
		Prefix("SELECT EXISTS (").Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build live payment query: %w", err)
	}
	var exists bool
	if err := q.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check live payment: %w", err)
	}
	return exists, nil
}

func (r *pgxRepository) UpdatePayment(ctx context.Context, q db.Querier, p *Payment) error {
	query, args, err := psql.Update("payments").
		Set("status", string(p.Status)).
		Set("external_transaction_id", p.ExternalTransactionID).
		Set("checkout_url", p.CheckoutURL).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update payment query: %w", err)
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// ListOverduePayments returns pending payments past their deadline,
// locked and skipping rows held by concurrent sweeps.
func (r *pgxRepository) ListOverduePayments(ctx context.Context, q db.Querier, now time.Time, limit int) ([]Payment, error) {
	query, args, err := psql.Select(paymentColumns).From("payments").
		Where(sq.Eq{"status": string(PaymentPending)}).
		Where(sq.Lt{"expires_at": now}).
		OrderBy("expires_at ASC").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build overdue payments query: %w", err)
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list overdue payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// UpsertWebhookEvent inserts the event or, when the external id was
// already seen, locks and returns the existing row.
func (r *pgxRepository) UpsertWebhookEvent(ctx context.Context, q db.Querier, ev *WebhookEvent) (*WebhookEvent, error) {
	query, args, err := psql.Insert("webhook_events").
		Columns("provider", "external_event_id", "payload", "processed").
		Values(ev.Provider, ev.ExternalEventID, ev.Payload, false).
		Suffix("ON CONFLICT (provider, external_event_id) DO UPDATE SET provider = EXCLUDED.provider").
		Suffix("RETURNING id, provider, external_event_id, payload, processed, created_at, processed_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert webhook event query: %w", err)
	}
	var out WebhookEvent
	err = q.QueryRow(ctx, query, args...).Scan(
		&out.ID, &out.Provider, &out.ExternalEventID, &out.Payload,
		&out.Processed, &out.CreatedAt, &out.ProcessedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert webhook event: %w", err)
	}
	return &out, nil
}

func (r *pgxRepository) MarkWebhookProcessed(ctx context.Context, q db.Querier, id string, at time.Time) error {
	query, args, err := psql.Update("webhook_events").
		Set("processed", true).
		Set("processed_at", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark webhook processed query: %w", err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharge(row rowScanner) (*Charge, error) {
	var c Charge
	var refType string
	err := row.Scan(
		&c.ID, &c.UserID, &refType, &c.ReferenceID, &c.Description,
		&c.TotalAmount, &c.PaidAmount, &c.Status, &c.DueDate,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ReferenceType = ReferenceType(refType)
	return &c, nil
}

func scanInstallment(row rowScanner) (*Installment, error) {
	var inst Installment
	err := row.Scan(
		&inst.ID, &inst.ChargeID, &inst.SequenceNumber, &inst.TotalInstallments,
		&inst.Amount, &inst.PaidAmount, &inst.Status, &inst.DueDate,
	)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func scanPayment(row rowScanner) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.InstallmentID, &p.Provider, &p.Method, &p.Amount, &p.Status,
		&p.ExternalTransactionID, &p.CheckoutURL, &p.ExpiresAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
