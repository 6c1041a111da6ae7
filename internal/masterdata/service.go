package masterdata

import (
	"context"
	"strings"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	InsertAccount(ctx context.Context, a Account) (int64, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	InsertProduct(ctx context.Context, p Product) (int64, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	InsertWarehouse(ctx context.Context, w Warehouse) (int64, error)
	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
	InsertTruck(ctx context.Context, t Truck) (int64, error)
	GetTruck(ctx context.Context, id int64) (Truck, error)
	ListTrucks(ctx context.Context) ([]Truck, error)
	InsertSociety(ctx context.Context, s Society) (int64, error)
	GetSociety(ctx context.Context, id int64) (Society, error)
	ListSocieties(ctx context.Context) ([]Society, error)
}

// Service validates and stores master data.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateAccount(ctx context.Context, a Account) (Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return Account{}, ErrNameRequired
	}
	if a.Type == "" {
		a.Type = "BUYER"
	}
	id, err := s.repo.InsertAccount(ctx, a)
	if err != nil {
		return Account{}, err
	}
	return s.repo.GetAccount(ctx, id)
}

func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetAccount(ctx, id)
}

func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Product{}, ErrNameRequired
	}
	if p.Unit == "" {
		p.Unit = "MT"
	}
	id, err := s.repo.InsertProduct(ctx, p)
	if err != nil {
		return Product{}, err
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return Warehouse{}, ErrNameRequired
	}
	id, err := s.repo.InsertWarehouse(ctx, w)
	if err != nil {
		return Warehouse{}, err
	}
	return s.repo.GetWarehouse(ctx, id)
}

func (s *Service) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	return s.repo.GetWarehouse(ctx, id)
}

func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.repo.ListWarehouses(ctx)
}

func (s *Service) CreateTruck(ctx context.Context, t Truck) (Truck, error) {
	t.Number = strings.ToUpper(strings.TrimSpace(t.Number))
	if t.Number == "" {
		return Truck{}, ErrNumberRequired
	}
	id, err := s.repo.InsertTruck(ctx, t)
	if err != nil {
		return Truck{}, err
	}
	return s.repo.GetTruck(ctx, id)
}

func (s *Service) GetTruck(ctx context.Context, id int64) (Truck, error) {
	return s.repo.GetTruck(ctx, id)
}

func (s *Service) ListTrucks(ctx context.Context) ([]Truck, error) {
	return s.repo.ListTrucks(ctx)
}

func (s *Service) CreateSociety(ctx context.Context, so Society) (Society, error) {
	so.Name = strings.TrimSpace(so.Name)
	if so.Name == "" {
		return Society{}, ErrNameRequired
	}
	id, err := s.repo.InsertSociety(ctx, so)
	if err != nil {
		return Society{}, err
	}
	return s.repo.GetSociety(ctx, id)
}

func (s *Service) GetSociety(ctx context.Context, id int64) (Society, error) {
	return s.repo.GetSociety(ctx, id)
}

func (s *Service) ListSocieties(ctx context.Context) ([]Society, error) {
	return s.repo.ListSocieties(ctx)
}
