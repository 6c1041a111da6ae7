package dispatch

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fims-logistics/fims/internal/platform/db"
	"github.com/fims-logistics/fims/internal/shared"
)

// Repository persists dispatch allocations in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// rakeState is the slice of the rake row the allocator needs under lock.
type rakeState struct {
	TotalQuantity float64
	Product       string
	IsClosed      bool
}

// TxRepository exposes the transactional operations used by the service.
// LockRake serializes concurrent allocations against the same rake, so the
// balance re-check, the serial reservation and the insert are one atomic
// unit.
type TxRepository interface {
	LockRake(ctx context.Context, rakeCode string) (rakeState, error)
	SumAllocations(ctx context.Context, rakeCode string) (float64, error)
	NextSerial(ctx context.Context, rakeCode string) (int64, error)
	Insert(ctx context.Context, alloc Allocation) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn inside a repeatable-read transaction with bounded retry.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithRetry(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const allocColumns = `id, rake_code, serial_number, account_id, warehouse_id, society_id, product, bags, quantity_mt, truck_id, wagon_number, document_id, created_at`

func scanAllocation(row pgx.Row) (Allocation, error) {
	var a Allocation
	var accountID, warehouseID, societyID *int64
	err := row.Scan(&a.ID, &a.RakeCode, &a.SerialNumber, &accountID, &warehouseID, &societyID,
		&a.Product, &a.Bags, &a.Quantity, &a.TruckID, &a.WagonNumber, &a.DocumentID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Allocation{}, ErrNotFound
	}
	if err != nil {
		return Allocation{}, err
	}
	a.Destination = shared.DestinationFromColumns(accountID, warehouseID, societyID)
	return a, nil
}

// Get returns an allocation by id.
func (r *Repository) Get(ctx context.Context, id int64) (Allocation, error) {
	return scanAllocation(r.pool.QueryRow(ctx, `SELECT `+allocColumns+` FROM dispatch_allocations WHERE id=$1`, id))
}

// ListByRake returns allocations for a rake ordered by serial.
func (r *Repository) ListByRake(ctx context.Context, rakeCode string) ([]Allocation, error) {
	return r.list(ctx, `SELECT `+allocColumns+` FROM dispatch_allocations WHERE rake_code=$1 ORDER BY serial_number`, rakeCode)
}

// ListUnlinked returns allocations not yet tied to a transport document.
func (r *Repository) ListUnlinked(ctx context.Context) ([]Allocation, error) {
	return r.list(ctx, `SELECT `+allocColumns+` FROM dispatch_allocations WHERE document_id IS NULL ORDER BY id DESC`)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Allocation, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	allocs := []Allocation{}
	for rows.Next() {
		var a Allocation
		var accountID, warehouseID, societyID *int64
		if err := rows.Scan(&a.ID, &a.RakeCode, &a.SerialNumber, &accountID, &warehouseID, &societyID,
			&a.Product, &a.Bags, &a.Quantity, &a.TruckID, &a.WagonNumber, &a.DocumentID, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Destination = shared.DestinationFromColumns(accountID, warehouseID, societyID)
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

// PeekNextSerial reads max+1 without reserving it. Advisory only; the real
// assignment happens inside the allocation transaction.
func (r *Repository) PeekNextSerial(ctx context.Context, rakeCode string) (int64, error) {
	var next int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(serial_number), 0) + 1 FROM dispatch_allocations WHERE rake_code=$1`, rakeCode).Scan(&next)
	return next, err
}

func (r *txRepo) LockRake(ctx context.Context, rakeCode string) (rakeState, error) {
	var st rakeState
	err := r.tx.QueryRow(ctx, `SELECT total_quantity, product, is_closed FROM rakes WHERE code=$1 FOR UPDATE`, rakeCode).
		Scan(&st.TotalQuantity, &st.Product, &st.IsClosed)
	if errors.Is(err, pgx.ErrNoRows) {
		return rakeState{}, ErrRakeNotFound
	}
	return st, err
}

func (r *txRepo) SumAllocations(ctx context.Context, rakeCode string) (float64, error) {
	var sum float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity_mt), 0) FROM dispatch_allocations WHERE rake_code=$1`, rakeCode).Scan(&sum)
	return sum, err
}

func (r *txRepo) NextSerial(ctx context.Context, rakeCode string) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(serial_number), 0) + 1 FROM dispatch_allocations WHERE rake_code=$1`, rakeCode).Scan(&next)
	return next, err
}

func (r *txRepo) Insert(ctx context.Context, alloc Allocation) (int64, error) {
	accountID, warehouseID, societyID := alloc.Destination.Columns()
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO dispatch_allocations (rake_code, serial_number, account_id, warehouse_id, society_id, product, bags, quantity_mt, truck_id, wagon_number)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		alloc.RakeCode, alloc.SerialNumber, accountID, warehouseID, societyID,
		alloc.Product, alloc.Bags, alloc.Quantity, alloc.TruckID, alloc.WagonNumber).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "dispatch_allocations_serial_per_rake") {
			return 0, ErrDuplicateSerial
		}
		return 0, err
	}
	return id, nil
}
