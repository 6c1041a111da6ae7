package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fims-logistics/fims/internal/platform/cache"
	"github.com/fims-logistics/fims/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Allocation, error)
	ListByRake(ctx context.Context, rakeCode string) ([]Allocation, error)
	ListUnlinked(ctx context.Context) ([]Allocation, error)
	PeekNextSerial(ctx context.Context, rakeCode string) (int64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts allocation outcomes.
type MetricsPort interface {
	AllocationCreated(rakeCode string)
	AllocationRejected(reason string)
}

// Service creates dispatch allocations against a rake's remaining balance.
type Service struct {
	log      *slog.Logger
	repo     RepositoryPort
	audit    AuditPort
	metrics  MetricsPort
	balances *cache.Balances
}

// NewService builds Service.
func NewService(log *slog.Logger, repo RepositoryPort, audit AuditPort, metrics MetricsPort, balances *cache.Balances) *Service {
	return &Service{log: log, repo: repo, audit: audit, metrics: metrics, balances: balances}
}

// balanceTolerance absorbs float rounding when comparing metric-tonne sums.
const balanceTolerance = 0.01

// CreateAllocation validates the request, then re-checks the rake balance
// and reserves the next serial number under the rake row lock, in the same
// transaction as the insert. Two concurrent allocations against the same
// rake serialize on that lock; the loser sees the winner's quantity.
func (s *Service) CreateAllocation(ctx context.Context, input CreateInput) (Allocation, error) {
	input.RakeCode = strings.TrimSpace(input.RakeCode)
	if input.RakeCode == "" {
		return Allocation{}, fmt.Errorf("%w: rake code required", shared.ErrValidation)
	}
	if input.Quantity <= 0 {
		s.countRejection("invalid_quantity")
		return Allocation{}, ErrInvalidQuantity
	}
	if err := input.Destination.Validate(); err != nil {
		return Allocation{}, err
	}

	var created Allocation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rk, err := tx.LockRake(ctx, input.RakeCode)
		if err != nil {
			return err
		}
		if rk.IsClosed {
			return ErrRakeClosed
		}
		dispatched, err := tx.SumAllocations(ctx, input.RakeCode)
		if err != nil {
			return err
		}
		if input.Quantity > rk.TotalQuantity-dispatched+balanceTolerance {
			return ErrInsufficient
		}
		serial, err := tx.NextSerial(ctx, input.RakeCode)
		if err != nil {
			return err
		}
		product := input.Product
		if product == "" {
			product = rk.Product
		}
		created = Allocation{
			RakeCode:     input.RakeCode,
			SerialNumber: serial,
			Destination:  input.Destination,
			Product:      product,
			Bags:         input.Bags,
			Quantity:     input.Quantity,
			TruckID:      input.TruckID,
			WagonNumber:  input.WagonNumber,
		}
		id, err := tx.Insert(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id
		return s.balances.Invalidate(ctx, cache.RakeKey(input.RakeCode))
	})
	if err != nil {
		s.countRejectionFor(err)
		return Allocation{}, err
	}
	if s.metrics != nil {
		s.metrics.AllocationCreated(input.RakeCode)
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "dispatch:allocate",
			Entity:   "dispatch_allocation",
			EntityID: fmt.Sprintf("%s/%d", created.RakeCode, created.SerialNumber),
			Meta: map[string]any{
				"quantity_mt": created.Quantity,
				"destination": created.Destination,
			},
		})
		if err != nil {
			s.logger().Warn("audit record failed", "action", "dispatch:allocate", "rake_code", created.RakeCode, "error", err)
		}
	}
	return created, nil
}

func (s *Service) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return slog.Default()
}

// GetAllocation returns an allocation by id.
func (s *Service) GetAllocation(ctx context.Context, id int64) (Allocation, error) {
	return s.repo.Get(ctx, id)
}

// ListByRake returns allocations for a rake in serial order.
func (s *Service) ListByRake(ctx context.Context, rakeCode string) ([]Allocation, error) {
	return s.repo.ListByRake(ctx, rakeCode)
}

// ListUnlinked returns allocations awaiting a transport document.
func (s *Service) ListUnlinked(ctx context.Context) ([]Allocation, error) {
	return s.repo.ListUnlinked(ctx)
}

// GetNextSerial previews the next serial for a rake. Not authoritative: the
// true number is reserved inside CreateAllocation.
func (s *Service) GetNextSerial(ctx context.Context, rakeCode string) (int64, error) {
	return s.repo.PeekNextSerial(ctx, rakeCode)
}

func (s *Service) countRejection(reason string) {
	if s.metrics != nil {
		s.metrics.AllocationRejected(reason)
	}
}

func (s *Service) countRejectionFor(err error) {
	switch {
	case errors.Is(err, ErrInsufficient):
		s.countRejection("insufficient_balance")
	case errors.Is(err, ErrRakeClosed):
		s.countRejection("rake_closed")
	case shared.Retryable(err):
		s.countRejection("concurrency")
	}
}
