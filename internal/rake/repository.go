package rake

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fims-logistics/fims/internal/platform/db"
)

// Repository persists rakes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. All
// mutations run through it so validate-then-write is one atomic unit.
type TxRepository interface {
	GetForUpdate(ctx context.Context, code string) (Rake, error)
	SumAllocations(ctx context.Context, code string) (float64, error)
	SetClosure(ctx context.Context, code string, closed bool, shortage *float64, closedAt *time.Time) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn inside a repeatable-read transaction with bounded retry on
// serialization conflicts.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const rakeColumns = `id, code, company_name, arrival_date, total_quantity, product, rake_point, is_closed, shortage, closed_at, created_at`

func scanRake(row pgx.Row) (Rake, error) {
	var rk Rake
	err := row.Scan(&rk.ID, &rk.Code, &rk.CompanyName, &rk.ArrivalDate, &rk.TotalQuantity,
		&rk.Product, &rk.RakePoint, &rk.IsClosed, &rk.Shortage, &rk.ClosedAt, &rk.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rake{}, ErrNotFound
	}
	return rk, err
}

// Insert stores a new rake, mapping the unique code constraint to
// ErrDuplicateCode.
func (r *Repository) Insert(ctx context.Context, input CreateInput) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO rakes (code, company_name, arrival_date, total_quantity, product, rake_point)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		input.Code, input.CompanyName, input.ArrivalDate, input.TotalQuantity, input.Product, input.RakePoint).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "rakes_code_key") {
			return 0, ErrDuplicateCode
		}
		return 0, err
	}
	return id, nil
}

// Get returns a rake by code.
func (r *Repository) Get(ctx context.Context, code string) (Rake, error) {
	return scanRake(r.pool.QueryRow(ctx, `SELECT `+rakeColumns+` FROM rakes WHERE code=$1`, code))
}

// List returns all rakes, newest first.
func (r *Repository) List(ctx context.Context) ([]Rake, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+rakeColumns+` FROM rakes ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rakes := []Rake{}
	for rows.Next() {
		var rk Rake
		if err := rows.Scan(&rk.ID, &rk.Code, &rk.CompanyName, &rk.ArrivalDate, &rk.TotalQuantity,
			&rk.Product, &rk.RakePoint, &rk.IsClosed, &rk.Shortage, &rk.ClosedAt, &rk.CreatedAt); err != nil {
			return nil, err
		}
		rakes = append(rakes, rk)
	}
	return rakes, rows.Err()
}

// SumAllocations computes the dispatched quantity for a rake outside a
// transaction; balance checks inside mutating flows use the TxRepository
// variant instead.
func (r *Repository) SumAllocations(ctx context.Context, code string) (float64, error) {
	var sum float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity_mt), 0) FROM dispatch_allocations WHERE rake_code=$1`, code).Scan(&sum)
	return sum, err
}

// TotalShortage sums recorded shortages over all closed rakes.
func (r *Repository) TotalShortage(ctx context.Context) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(shortage), 0) FROM rakes WHERE is_closed`).Scan(&total)
	return total, err
}

// Summaries serves the per-rake dispatch position as one aggregated query.
func (r *Repository) Summaries(ctx context.Context) ([]Summary, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.code, r.company_name, r.total_quantity,
       COALESCE(SUM(da.quantity_mt), 0) AS dispatched,
       r.is_closed, r.shortage
FROM rakes r
LEFT JOIN dispatch_allocations da ON da.rake_code = r.code
GROUP BY r.id
ORDER BY r.arrival_date DESC, r.code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	summaries := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.Code, &s.CompanyName, &s.TotalQuantity, &s.Dispatched, &s.IsClosed, &s.Shortage); err != nil {
			return nil, err
		}
		s.Remaining = s.TotalQuantity - s.Dispatched
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *txRepo) GetForUpdate(ctx context.Context, code string) (Rake, error) {
	return scanRake(r.tx.QueryRow(ctx, `SELECT `+rakeColumns+` FROM rakes WHERE code=$1 FOR UPDATE`, code))
}

func (r *txRepo) SumAllocations(ctx context.Context, code string) (float64, error) {
	var sum float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity_mt), 0) FROM dispatch_allocations WHERE rake_code=$1`, code).Scan(&sum)
	return sum, err
}

func (r *txRepo) SetClosure(ctx context.Context, code string, closed bool, shortage *float64, closedAt *time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE rakes SET is_closed=$2, shortage=COALESCE($3, shortage), closed_at=COALESCE($4, closed_at) WHERE code=$1`,
		code, closed, shortage, closedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
