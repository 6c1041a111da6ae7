package billing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fims-logistics/fims/internal/platform/db"
)

// Repository persists bills in PostgreSQL. The one-bill-per-document rule is
// carried by the unique constraint on document_id, so concurrent attempts
// resolve in the database regardless of what either writer observed first.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes a bill, mapping constraint hits to domain errors.
func (r *Repository) Insert(ctx context.Context, input CreateInput) (int64, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transport_documents WHERE id=$1)`, input.DocumentID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrDocumentNotFound
	}
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO bills (document_id, number, amount, generated_date) VALUES ($1,$2,$3,$4) RETURNING id`,
		input.DocumentID, input.Number, input.Amount, input.GeneratedDate).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err, "bills_document_id_key") {
			return 0, ErrAlreadyBilled
		}
		if db.IsUniqueViolation(err, "bills_number_key") {
			return 0, ErrDuplicateNumber
		}
		return 0, err
	}
	return id, nil
}

const billColumns = `b.id, b.document_id, d.number, b.number, b.amount, b.generated_date, b.created_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.DocumentID, &b.DocumentNumber, &b.Number, &b.Amount, &b.GeneratedDate, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, ErrNotFound
	}
	return b, err
}

// Get returns a bill by id.
func (r *Repository) Get(ctx context.Context, id int64) (Bill, error) {
	return scanBill(r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills b JOIN transport_documents d ON d.id = b.document_id WHERE b.id=$1`, id))
}

// List returns bills, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]Bill, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+billColumns+` FROM bills b JOIN transport_documents d ON d.id = b.document_id ORDER BY b.created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bills := []Bill{}
	for rows.Next() {
		var b Bill
		if err := rows.Scan(&b.ID, &b.DocumentID, &b.DocumentNumber, &b.Number, &b.Amount, &b.GeneratedDate, &b.CreatedAt); err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// ListUnbilled returns documents that have no bill yet.
func (r *Repository) ListUnbilled(ctx context.Context) ([]UnbilledDocument, error) {
	rows, err := r.pool.Query(ctx, `SELECT d.id, d.number, d.quantity_mt, d.doc_date
	FROM transport_documents d
	LEFT JOIN bills b ON b.document_id = d.id
	WHERE b.id IS NULL
	ORDER BY d.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := []UnbilledDocument{}
	for rows.Next() {
		var d UnbilledDocument
		if err := rows.Scan(&d.DocumentID, &d.Number, &d.Quantity, &d.Date); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
