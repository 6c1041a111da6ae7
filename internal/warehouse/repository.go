package warehouse

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fims-logistics/fims/internal/platform/db"
)

// Repository persists warehouse stock entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the stock ledger needs.
// LockWarehouse serializes writers per warehouse so balance checks and the
// entries they guard cannot interleave.
type TxRepository interface {
	LockWarehouse(ctx context.Context, warehouseID int64) error
	GetDocument(ctx context.Context, documentID int64) (documentInfo, error)
	NetBalance(ctx context.Context, warehouseID int64) (float64, error)
	Insert(ctx context.Context, entry Entry) (int64, error)
}

// documentInfo is the slice of a transport document stock-in needs.
type documentInfo struct {
	Quantity    float64
	WarehouseID *int64
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

func (r *txRepo) LockWarehouse(ctx context.Context, warehouseID int64) error {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM warehouses WHERE id=$1 FOR UPDATE`, warehouseID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *txRepo) GetDocument(ctx context.Context, documentID int64) (documentInfo, error) {
	var info documentInfo
	err := r.tx.QueryRow(ctx, `SELECT quantity_mt, warehouse_id FROM transport_documents WHERE id=$1`, documentID).Scan(&info.Quantity, &info.WarehouseID)
	if errors.Is(err, pgx.ErrNoRows) {
		return documentInfo{}, ErrDocumentNotFound
	}
	return info, err
}

const netBalanceExpr = `COALESCE(SUM(CASE
	WHEN entry_type = 'IN' THEN quantity_mt
	WHEN entry_type = 'OUT' THEN -quantity_mt
	ELSE quantity_mt
END), 0)`

func (r *txRepo) NetBalance(ctx context.Context, warehouseID int64) (float64, error) {
	var net float64
	err := r.tx.QueryRow(ctx, `SELECT `+netBalanceExpr+` FROM warehouse_stock_entries WHERE warehouse_id=$1`, warehouseID).Scan(&net)
	return net, err
}

func (r *txRepo) Insert(ctx context.Context, entry Entry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO warehouse_stock_entries (warehouse_id, document_id, entry_type, bags, quantity_mt, account_id, unloader, entry_date, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		entry.WarehouseID, entry.DocumentID, entry.EntryType, entry.Bags, entry.Quantity,
		entry.AccountID, entry.Unloader, entry.EntryDate, entry.Notes).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "warehouse_stock_in_once") {
			return 0, ErrDuplicateEntry
		}
		return 0, err
	}
	return id, nil
}

// GetBalance computes the stock position of one warehouse.
func (r *Repository) GetBalance(ctx context.Context, warehouseID int64) (Balance, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM warehouses WHERE id=$1)`, warehouseID).Scan(&exists); err != nil {
		return Balance{}, err
	}
	if !exists {
		return Balance{}, ErrNotFound
	}
	bal := Balance{WarehouseID: warehouseID}
	err := r.pool.QueryRow(ctx, `SELECT
		COALESCE(SUM(quantity_mt) FILTER (WHERE entry_type = 'IN' OR (entry_type = 'ADJUST' AND quantity_mt > 0)), 0),
		COALESCE(SUM(CASE WHEN entry_type = 'OUT' THEN quantity_mt WHEN entry_type = 'ADJUST' AND quantity_mt < 0 THEN -quantity_mt END), 0)
	FROM warehouse_stock_entries WHERE warehouse_id=$1`, warehouseID).Scan(&bal.In, &bal.Out)
	if err != nil {
		return Balance{}, err
	}
	bal.Net = bal.In - bal.Out
	return bal, nil
}

// Balances computes every warehouse's position in one aggregated query.
func (r *Repository) Balances(ctx context.Context) ([]Balance, error) {
	rows, err := r.pool.Query(ctx, `SELECT w.id, w.name,
		COALESCE(SUM(e.quantity_mt) FILTER (WHERE e.entry_type = 'IN' OR (e.entry_type = 'ADJUST' AND e.quantity_mt > 0)), 0),
		COALESCE(SUM(CASE WHEN e.entry_type = 'OUT' THEN e.quantity_mt WHEN e.entry_type = 'ADJUST' AND e.quantity_mt < 0 THEN -e.quantity_mt END), 0)
	FROM warehouses w
	LEFT JOIN warehouse_stock_entries e ON e.warehouse_id = w.id
	GROUP BY w.id, w.name
	ORDER BY w.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	balances := []Balance{}
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.WarehouseID, &b.Name, &b.In, &b.Out); err != nil {
			return nil, err
		}
		b.Net = b.In - b.Out
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// ListEntries returns a warehouse's ledger, newest first.
func (r *Repository) ListEntries(ctx context.Context, warehouseID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, warehouse_id, document_id, entry_type, bags, quantity_mt, account_id, unloader, entry_date, notes, created_at
	FROM warehouse_stock_entries WHERE warehouse_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, warehouseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.WarehouseID, &e.DocumentID, &e.EntryType, &e.Bags, &e.Quantity,
			&e.AccountID, &e.Unloader, &e.EntryDate, &e.Notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
