package rake

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fims-logistics/fims/internal/platform/cache"
	"github.com/fims-logistics/fims/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Insert(ctx context.Context, input CreateInput) (int64, error)
	Get(ctx context.Context, code string) (Rake, error)
	List(ctx context.Context) ([]Rake, error)
	SumAllocations(ctx context.Context, code string) (float64, error)
	TotalShortage(ctx context.Context) (float64, error)
	Summaries(ctx context.Context) ([]Summary, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns rake totals and the close/reopen lifecycle.
type Service struct {
	log      *slog.Logger
	repo     RepositoryPort
	audit    AuditPort
	balances *cache.Balances
	closure  ClosureCalculator
}

// NewService builds Service.
func NewService(log *slog.Logger, repo RepositoryPort, audit AuditPort, balances *cache.Balances) *Service {
	return &Service{log: log, repo: repo, audit: audit, balances: balances}
}

// CreateRake registers a new rake. The code must be unique; the declared
// quantity must be positive.
func (s *Service) CreateRake(ctx context.Context, input CreateInput) (int64, error) {
	input.Code = strings.TrimSpace(input.Code)
	if input.Code == "" {
		return 0, fmt.Errorf("%w: rake code required", shared.ErrValidation)
	}
	if input.TotalQuantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	if input.Product == "" {
		return 0, fmt.Errorf("%w: product required", shared.ErrValidation)
	}
	if input.ArrivalDate.IsZero() {
		input.ArrivalDate = time.Now().UTC()
	}
	id, err := s.repo.Insert(ctx, input)
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, input.ActorID, "rake:create", input.Code, map[string]any{
		"total_quantity": input.TotalQuantity,
		"product":        input.Product,
	})
	return id, nil
}

// GetRake returns a rake by code.
func (s *Service) GetRake(ctx context.Context, code string) (Rake, error) {
	return s.repo.Get(ctx, code)
}

// ListRakes returns all rakes.
func (s *Service) ListRakes(ctx context.Context) ([]Rake, error) {
	return s.repo.List(ctx)
}

// GetBalance reports total/dispatched/remaining for a rake. Served from the
// balance cache when warm; the cached figure is advisory only, since allocation
// checks always recompute under the rake row lock.
func (s *Service) GetBalance(ctx context.Context, code string) (Balance, error) {
	key := cache.RakeKey(code)
	var bal Balance
	if err := s.balances.Get(ctx, key, &bal); err == nil {
		return bal, nil
	}
	rk, err := s.repo.Get(ctx, code)
	if err != nil {
		return Balance{}, err
	}
	dispatched, err := s.repo.SumAllocations(ctx, code)
	if err != nil {
		return Balance{}, err
	}
	bal = Balance{Total: rk.TotalQuantity, Dispatched: dispatched, Remaining: rk.TotalQuantity - dispatched}
	_ = s.balances.Set(ctx, key, bal)
	return bal, nil
}

// CloseRake computes and persists the shortage, then marks the rake closed.
// Closure is terminal until ReopenRake.
func (s *Service) CloseRake(ctx context.Context, code string, actorID int64) (float64, error) {
	var shortage float64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rk, err := tx.GetForUpdate(ctx, code)
		if err != nil {
			return err
		}
		if rk.IsClosed {
			return ErrAlreadyClosed
		}
		dispatched, err := tx.SumAllocations(ctx, code)
		if err != nil {
			return err
		}
		shortage = s.closure.Shortage(ctx, rk.TotalQuantity, dispatched)
		now := time.Now().UTC()
		if err := tx.SetClosure(ctx, code, true, &shortage, &now); err != nil {
			return err
		}
		return s.balances.Invalidate(ctx, cache.RakeKey(code))
	})
	if err != nil {
		return 0, err
	}
	s.recordAudit(ctx, actorID, "rake:close", code, map[string]any{"shortage": shortage})
	return shortage, nil
}

// ReopenRake clears the closed flag. The last computed shortage is retained
// until the next close overwrites it, so the historical figure survives an
// accidental closure.
func (s *Service) ReopenRake(ctx context.Context, code string, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rk, err := tx.GetForUpdate(ctx, code)
		if err != nil {
			return err
		}
		if !rk.IsClosed {
			return ErrNotClosed
		}
		if err := tx.SetClosure(ctx, code, false, nil, nil); err != nil {
			return err
		}
		return s.balances.Invalidate(ctx, cache.RakeKey(code))
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "rake:reopen", code, nil)
	return nil
}

// TotalShortage sums shortages over all closed rakes.
func (s *Service) TotalShortage(ctx context.Context) (float64, error) {
	return s.repo.TotalShortage(ctx)
}

// Summaries returns the per-rake dispatch position.
func (s *Service) Summaries(ctx context.Context) ([]Summary, error) {
	return s.repo.Summaries(ctx)
}

// recordAudit runs after the operation committed; its failure must not undo
// the ledger write.
func (s *Service) recordAudit(ctx context.Context, actorID int64, action, code string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "rake",
		EntityID: code,
		Meta:     meta,
	})
	if err != nil {
		s.logger().Warn("audit record failed", "action", action, "rake_code", code, "error", err)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return slog.Default()
}
