package warehouse

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fims-logistics/fims/internal/platform/cache"
	"github.com/fims-logistics/fims/internal/shared"
)

// balanceTolerance absorbs float rounding when comparing metric-tonne sums.
const balanceTolerance = 0.01

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBalance(ctx context.Context, warehouseID int64) (Balance, error)
	Balances(ctx context.Context) ([]Balance, error)
	ListEntries(ctx context.Context, warehouseID int64, limit int) ([]Entry, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts stock movements.
type MetricsPort interface {
	StockEntryRecorded(entryType string)
	StockEntryRejected(reason string)
}

// Service owns the warehouse stock ledger.
type Service struct {
	log      *slog.Logger
	repo     RepositoryPort
	audit    AuditPort
	metrics  MetricsPort
	balances *cache.Balances
	group    singleflight.Group
}

// NewService builds Service.
func NewService(log *slog.Logger, repo RepositoryPort, audit AuditPort, metrics MetricsPort, balances *cache.Balances) *Service {
	return &Service{log: log, repo: repo, audit: audit, metrics: metrics, balances: balances}
}

// RecordStockIn receives goods into a warehouse. When the entry names a
// transport document, that document must be consigned to the warehouse, can
// be received at most once, and the received quantity cannot exceed what the
// document carries. Entries without a document are direct receipts and skip
// those checks.
func (s *Service) RecordStockIn(ctx context.Context, input StockInInput) (Entry, error) {
	if input.Quantity <= 0 {
		s.countRejection("invalid_quantity")
		return Entry{}, ErrInvalidQuantity
	}
	entry := Entry{
		WarehouseID: input.WarehouseID,
		DocumentID:  input.DocumentID,
		EntryType:   EntryIn,
		Bags:        input.Bags,
		Quantity:    input.Quantity,
		Unloader:    strings.TrimSpace(input.Unloader),
		EntryDate:   input.EntryDate,
	}
	if entry.EntryDate.IsZero() {
		entry.EntryDate = time.Now().UTC()
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockWarehouse(ctx, input.WarehouseID); err != nil {
			return err
		}
		if input.DocumentID != nil {
			doc, err := tx.GetDocument(ctx, *input.DocumentID)
			if err != nil {
				return err
			}
			if doc.WarehouseID == nil || *doc.WarehouseID != input.WarehouseID {
				return ErrWrongDestination
			}
			if input.Quantity > doc.Quantity+balanceTolerance {
				return ErrExceedsDocument
			}
		}
		id, err := tx.Insert(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id
		return s.balances.Invalidate(ctx, cache.WarehouseKey(input.WarehouseID))
	})
	if err != nil {
		s.countRejectionFor(err)
		return Entry{}, err
	}

	s.countRecorded(EntryIn)
	s.recordAudit(ctx, input.ActorID, "stock:in", input.WarehouseID, map[string]any{
		"document_id": input.DocumentID,
		"quantity_mt": input.Quantity,
	})
	return entry, nil
}

// RecordStockOut releases goods from a warehouse. The release is refused
// when it would take the net position negative.
func (s *Service) RecordStockOut(ctx context.Context, input StockOutInput) (Entry, error) {
	if input.Quantity <= 0 {
		s.countRejection("invalid_quantity")
		return Entry{}, ErrInvalidQuantity
	}
	entry := Entry{
		WarehouseID: input.WarehouseID,
		DocumentID:  input.DocumentID,
		AccountID:   input.AccountID,
		EntryType:   EntryOut,
		Bags:        input.Bags,
		Quantity:    input.Quantity,
		EntryDate:   input.EntryDate,
		Notes:       strings.TrimSpace(input.Notes),
	}
	if entry.EntryDate.IsZero() {
		entry.EntryDate = time.Now().UTC()
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockWarehouse(ctx, input.WarehouseID); err != nil {
			return err
		}
		net, err := tx.NetBalance(ctx, input.WarehouseID)
		if err != nil {
			return err
		}
		if input.Quantity > net+balanceTolerance {
			return ErrInsufficientStock
		}
		id, err := tx.Insert(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id
		return s.balances.Invalidate(ctx, cache.WarehouseKey(input.WarehouseID))
	})
	if err != nil {
		s.countRejectionFor(err)
		return Entry{}, err
	}

	s.countRecorded(EntryOut)
	s.recordAudit(ctx, input.ActorID, "stock:out", input.WarehouseID, map[string]any{
		"quantity_mt": input.Quantity,
	})
	return entry, nil
}

// RecordAdjustment posts a signed correction. A negative adjustment cannot
// take the net position below zero.
func (s *Service) RecordAdjustment(ctx context.Context, input AdjustInput) (Entry, error) {
	if input.Quantity == 0 {
		s.countRejection("invalid_quantity")
		return Entry{}, ErrInvalidQuantity
	}
	if strings.TrimSpace(input.Notes) == "" {
		return Entry{}, ErrNoteRequired
	}
	entry := Entry{
		WarehouseID: input.WarehouseID,
		EntryType:   EntryAdjust,
		Quantity:    input.Quantity,
		EntryDate:   time.Now().UTC(),
		Notes:       strings.TrimSpace(input.Notes),
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockWarehouse(ctx, input.WarehouseID); err != nil {
			return err
		}
		if input.Quantity < 0 {
			net, err := tx.NetBalance(ctx, input.WarehouseID)
			if err != nil {
				return err
			}
			if -input.Quantity > net+balanceTolerance {
				return ErrInsufficientStock
			}
		}
		id, err := tx.Insert(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id
		return s.balances.Invalidate(ctx, cache.WarehouseKey(input.WarehouseID))
	})
	if err != nil {
		s.countRejectionFor(err)
		return Entry{}, err
	}

	s.countRecorded(EntryAdjust)
	s.recordAudit(ctx, input.ActorID, "stock:adjust", input.WarehouseID, map[string]any{
		"quantity_mt": input.Quantity,
		"notes":       entry.Notes,
	})
	return entry, nil
}

// GetBalance reports one warehouse's position. Served from the balance cache
// when warm; the cached figure is advisory only, since stock-out checks always
// recompute under the warehouse row lock.
func (s *Service) GetBalance(ctx context.Context, warehouseID int64) (Balance, error) {
	key := cache.WarehouseKey(warehouseID)
	var bal Balance
	if err := s.balances.Get(ctx, key, &bal); err == nil {
		return bal, nil
	}
	bal, err := s.repo.GetBalance(ctx, warehouseID)
	if err != nil {
		return Balance{}, err
	}
	_ = s.balances.Set(ctx, key, bal)
	return bal, nil
}

// GetBalancesForAll reports every warehouse's position in one aggregated
// query. Concurrent callers share a single in-flight computation.
func (s *Service) GetBalancesForAll(ctx context.Context) ([]Balance, error) {
	v, err, _ := s.group.Do("warehouse-balances", func() (any, error) {
		return s.repo.Balances(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Balance), nil
}

// ListTransactions returns a warehouse's ledger, newest first.
func (s *Service) ListTransactions(ctx context.Context, warehouseID int64, limit int) ([]Entry, error) {
	return s.repo.ListEntries(ctx, warehouseID, limit)
}

func (s *Service) countRecorded(entryType EntryType) {
	if s.metrics != nil {
		s.metrics.StockEntryRecorded(string(entryType))
	}
}

func (s *Service) countRejection(reason string) {
	if s.metrics != nil {
		s.metrics.StockEntryRejected(reason)
	}
}

func (s *Service) countRejectionFor(err error) {
	switch {
	case errors.Is(err, ErrDuplicateEntry):
		s.countRejection("duplicate_entry")
	case errors.Is(err, ErrExceedsDocument):
		s.countRejection("exceeds_document")
	case errors.Is(err, ErrInsufficientStock):
		s.countRejection("insufficient_stock")
	}
}

// recordAudit runs after the operation committed; its failure must not undo
// the ledger write.
func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, warehouseID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "warehouse",
		EntityID: strconv.FormatInt(warehouseID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger().Warn("audit record failed", "action", action, "warehouse_id", warehouseID, "error", err)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return slog.Default()
}
