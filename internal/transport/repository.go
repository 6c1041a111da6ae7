package transport

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fims-logistics/fims/internal/platform/db"
	"github.com/fims-logistics/fims/internal/shared"
)

// Repository persists transport documents in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// allocationLink is the slice of an allocation row the registry needs when
// linking.
type allocationLink struct {
	ID         int64
	RakeCode   string
	DocumentID *int64
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertDocument(ctx context.Context, doc Document) (int64, error)
	LockAllocation(ctx context.Context, allocationID int64) (allocationLink, error)
	SetAllocationDocument(ctx context.Context, allocationID int64, documentID *int64) error
	DocumentExists(ctx context.Context, documentID int64) (bool, error)
	LockDocument(ctx context.Context, documentID int64) (Document, error)
	NextLRNumber(ctx context.Context) (string, error)
	HasBill(ctx context.Context, documentID int64) (bool, error)
	// StockEntryWarehouses lists warehouses holding entries against the
	// document, for cache invalidation on delete.
	StockEntryWarehouses(ctx context.Context, documentID int64) ([]int64, error)
	DeleteStockEntries(ctx context.Context, documentID int64) error
	// WarehouseNetBalance recomputes a warehouse's net position, used to
	// refuse cascade deletes that would strand issued stock.
	WarehouseNetBalance(ctx context.Context, warehouseID int64) (float64, error)
	UnlinkStockEntries(ctx context.Context, documentID int64) error
	DeleteAllocationByDocument(ctx context.Context, documentID int64) error
	UnlinkAllocationByDocument(ctx context.Context, documentID int64) error
	DeleteDocument(ctx context.Context, documentID int64) error
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

const docColumns = `id, number, rake_code, doc_date, account_id, warehouse_id, society_id, truck_id, loading_point, unloading_point, goods_name, bags, quantity_mt, lr_number, created_by_role, created_at`

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	var accountID, warehouseID, societyID *int64
	err := row.Scan(&d.ID, &d.Number, &d.RakeCode, &d.Date, &accountID, &warehouseID, &societyID,
		&d.TruckID, &d.LoadingPoint, &d.UnloadingPoint, &d.GoodsName, &d.Bags, &d.Quantity,
		&d.LRNumber, &d.CreatedByRole, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	d.Destination = shared.DestinationFromColumns(accountID, warehouseID, societyID)
	return d, nil
}

// Get returns a document by id.
func (r *Repository) Get(ctx context.Context, id int64) (Document, error) {
	return scanDocument(r.pool.QueryRow(ctx, `SELECT `+docColumns+` FROM transport_documents WHERE id=$1`, id))
}

// GetByNumber returns a document by its unique number.
func (r *Repository) GetByNumber(ctx context.Context, number string) (Document, error) {
	return scanDocument(r.pool.QueryRow(ctx, `SELECT `+docColumns+` FROM transport_documents WHERE number=$1`, number))
}

// List returns documents, newest first, honouring the filter.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	query := `SELECT ` + docColumns + ` FROM transport_documents WHERE 1=1`
	args := []any{}
	if filter.RakeCode != "" {
		args = append(args, filter.RakeCode)
		query += ` AND rake_code = $` + strconv.Itoa(len(args))
	}
	if filter.WarehouseOnly {
		query += ` AND warehouse_id IS NOT NULL`
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := []Document{}
	for rows.Next() {
		var d Document
		var accountID, warehouseID, societyID *int64
		if err := rows.Scan(&d.ID, &d.Number, &d.RakeCode, &d.Date, &accountID, &warehouseID, &societyID,
			&d.TruckID, &d.LoadingPoint, &d.UnloadingPoint, &d.GoodsName, &d.Bags, &d.Quantity,
			&d.LRNumber, &d.CreatedByRole, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Destination = shared.DestinationFromColumns(accountID, warehouseID, societyID)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *txRepo) InsertDocument(ctx context.Context, doc Document) (int64, error) {
	accountID, warehouseID, societyID := doc.Destination.Columns()
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transport_documents (number, rake_code, doc_date, account_id, warehouse_id, society_id, truck_id, loading_point, unloading_point, goods_name, bags, quantity_mt, lr_number, created_by_role)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id`,
		doc.Number, doc.RakeCode, doc.Date, accountID, warehouseID, societyID, doc.TruckID,
		doc.LoadingPoint, doc.UnloadingPoint, doc.GoodsName, doc.Bags, doc.Quantity,
		doc.LRNumber, doc.CreatedByRole).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "transport_documents_number_key") {
			return 0, ErrDuplicateNumber
		}
		if db.IsUniqueViolation(err, "transport_documents_lr_number_key") {
			return 0, ErrLRNumberTaken
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepo) LockAllocation(ctx context.Context, allocationID int64) (allocationLink, error) {
	var link allocationLink
	err := r.tx.QueryRow(ctx, `SELECT id, rake_code, document_id FROM dispatch_allocations WHERE id=$1 FOR UPDATE`, allocationID).
		Scan(&link.ID, &link.RakeCode, &link.DocumentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return allocationLink{}, ErrAllocationNotFound
	}
	return link, err
}

func (r *txRepo) SetAllocationDocument(ctx context.Context, allocationID int64, documentID *int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE dispatch_allocations SET document_id=$2 WHERE id=$1`, allocationID, documentID)
	if db.IsUniqueViolation(err, "dispatch_allocations_document_once") {
		return ErrDocumentTaken
	}
	return err
}

func (r *txRepo) LockDocument(ctx context.Context, documentID int64) (Document, error) {
	return scanDocument(r.tx.QueryRow(ctx, `SELECT `+docColumns+` FROM transport_documents WHERE id=$1 FOR UPDATE`, documentID))
}

func (r *txRepo) DocumentExists(ctx context.Context, documentID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transport_documents WHERE id=$1)`, documentID).Scan(&exists)
	return exists, err
}

// NextLRNumber takes max+1 over numeric LR numbers, starting at 1001. The
// advisory lock serializes concurrent assignments for the rest of the
// transaction; aggregate reads see no row conflict on their own, so without
// it two inserts could both read the same MAX. The unique index on lr_number
// backstops the lock.
func (r *txRepo) NextLRNumber(ctx context.Context) (string, error) {
	if _, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('transport_documents_lr_number'))`); err != nil {
		return "", err
	}
	var max *int64
	err := r.tx.QueryRow(ctx, `SELECT MAX(lr_number::bigint) FROM transport_documents WHERE lr_number ~ '^[0-9]+$'`).Scan(&max)
	if err != nil {
		return "", err
	}
	if max == nil {
		return "1001", nil
	}
	return strconv.FormatInt(*max+1, 10), nil
}

func (r *txRepo) HasBill(ctx context.Context, documentID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bills WHERE document_id=$1)`, documentID).Scan(&exists)
	return exists, err
}

func (r *txRepo) StockEntryWarehouses(ctx context.Context, documentID int64) ([]int64, error) {
	rows, err := r.tx.Query(ctx, `SELECT DISTINCT warehouse_id FROM warehouse_stock_entries WHERE document_id=$1`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *txRepo) DeleteStockEntries(ctx context.Context, documentID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM warehouse_stock_entries WHERE document_id=$1`, documentID)
	return err
}

func (r *txRepo) WarehouseNetBalance(ctx context.Context, warehouseID int64) (float64, error) {
	var net float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(CASE
	WHEN entry_type = 'IN' THEN quantity_mt
	WHEN entry_type = 'OUT' THEN -quantity_mt
	ELSE quantity_mt
END), 0) FROM warehouse_stock_entries WHERE warehouse_id=$1`, warehouseID).Scan(&net)
	return net, err
}

func (r *txRepo) UnlinkStockEntries(ctx context.Context, documentID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE warehouse_stock_entries SET document_id=NULL WHERE document_id=$1`, documentID)
	return err
}

func (r *txRepo) DeleteAllocationByDocument(ctx context.Context, documentID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM dispatch_allocations WHERE document_id=$1`, documentID)
	return err
}

func (r *txRepo) UnlinkAllocationByDocument(ctx context.Context, documentID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE dispatch_allocations SET document_id=NULL WHERE document_id=$1`, documentID)
	return err
}

func (r *txRepo) DeleteDocument(ctx context.Context, documentID int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM transport_documents WHERE id=$1`, documentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
