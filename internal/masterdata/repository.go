package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fims-logistics/fims/internal/platform/db"
)

// Repository persists master data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) InsertAccount(ctx context.Context, a Account) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO accounts (name, type, contact, address) VALUES ($1,$2,$3,$4) RETURNING id`,
		a.Name, a.Type, a.Contact, a.Address).Scan(&id)
	return id, err
}

func (r *Repository) GetAccount(ctx context.Context, id int64) (Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `SELECT id, name, type, contact, address, created_at FROM accounts WHERE id=$1`, id).
		Scan(&a.ID, &a.Name, &a.Type, &a.Contact, &a.Address, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	return a, err
}

func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, type, contact, address, created_at FROM accounts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Account{}
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Contact, &a.Address, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) InsertProduct(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO products (name, code, unit, description) VALUES ($1,$2,$3,$4) RETURNING id`,
		p.Name, p.Code, p.Unit, p.Description).Scan(&id)
	if db.IsUniqueViolation(err, "products_name_key") {
		return 0, ErrDuplicate
	}
	return id, err
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, name, code, unit, description, created_at FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Code, &p.Unit, &p.Description, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, code, unit, description, created_at FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Code, &p.Unit, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) InsertWarehouse(ctx context.Context, w Warehouse) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouses (name, location, capacity_mt) VALUES ($1,$2,$3) RETURNING id`,
		w.Name, w.Location, w.CapacityMT).Scan(&id)
	return id, err
}

func (r *Repository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, name, location, capacity_mt, created_at FROM warehouses WHERE id=$1`, id).
		Scan(&w.ID, &w.Name, &w.Location, &w.CapacityMT, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, ErrNotFound
	}
	return w, err
}

func (r *Repository) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, location, capacity_mt, created_at FROM warehouses ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Warehouse{}
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.Location, &w.CapacityMT, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *Repository) InsertTruck(ctx context.Context, t Truck) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO trucks (number, driver_name, driver_mobile, owner_name, owner_mobile) VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		t.Number, t.DriverName, t.DriverMobile, t.OwnerName, t.OwnerMobile).Scan(&id)
	if db.IsUniqueViolation(err, "trucks_number_key") {
		return 0, ErrDuplicate
	}
	return id, err
}

func (r *Repository) GetTruck(ctx context.Context, id int64) (Truck, error) {
	var t Truck
	err := r.pool.QueryRow(ctx, `SELECT id, number, driver_name, driver_mobile, owner_name, owner_mobile, created_at FROM trucks WHERE id=$1`, id).
		Scan(&t.ID, &t.Number, &t.DriverName, &t.DriverMobile, &t.OwnerName, &t.OwnerMobile, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Truck{}, ErrNotFound
	}
	return t, err
}

func (r *Repository) ListTrucks(ctx context.Context) ([]Truck, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, number, driver_name, driver_mobile, owner_name, owner_mobile, created_at FROM trucks ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Truck{}
	for rows.Next() {
		var t Truck
		if err := rows.Scan(&t.ID, &t.Number, &t.DriverName, &t.DriverMobile, &t.OwnerName, &t.OwnerMobile, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) InsertSociety(ctx context.Context, s Society) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO societies (name, district, contact) VALUES ($1,$2,$3) RETURNING id`,
		s.Name, s.District, s.Contact).Scan(&id)
	return id, err
}

func (r *Repository) GetSociety(ctx context.Context, id int64) (Society, error) {
	var s Society
	err := r.pool.QueryRow(ctx, `SELECT id, name, district, contact, created_at FROM societies WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.District, &s.Contact, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Society{}, ErrNotFound
	}
	return s, err
}

func (r *Repository) ListSocieties(ctx context.Context) ([]Society, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, district, contact, created_at FROM societies ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Society{}
	for rows.Next() {
		var s Society
		if err := rows.Scan(&s.ID, &s.Name, &s.District, &s.Contact, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
