package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fims-logistics/fims/internal/platform/cache"
	"github.com/fims-logistics/fims/internal/shared"
)

// balanceTolerance absorbs float rounding when comparing metric-tonne sums.
const balanceTolerance = 0.01

// RepositoryPort is what the service needs from storage.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Document, error)
	GetByNumber(ctx context.Context, number string) (Document, error)
	List(ctx context.Context, filter ListFilter) ([]Document, error)
}

// AuditPort records who did what after the fact.
type AuditPort interface {
	Record(ctx context.Context, entry shared.AuditLog) error
}

// Service is the transport document registry.
type Service struct {
	log      *slog.Logger
	repo     RepositoryPort
	audit    AuditPort
	balances *cache.Balances
}

// NewService constructs Service.
func NewService(log *slog.Logger, repo RepositoryPort, audit AuditPort, balances *cache.Balances) *Service {
	return &Service{log: log, repo: repo, audit: audit, balances: balances}
}

// CreateDocument inserts a document and, when input.AllocationID is set,
// links that allocation in the same transaction. Either both happen or
// neither does.
func (s *Service) CreateDocument(ctx context.Context, input CreateInput) (Document, error) {
	if strings.TrimSpace(input.Number) == "" {
		return Document{}, fmt.Errorf("%w: document number is required", shared.ErrValidation)
	}
	if input.Quantity <= 0 {
		return Document{}, ErrInvalidQuantity
	}
	if err := input.Destination.Validate(); err != nil {
		return Document{}, err
	}
	if input.Bags < 0 {
		return Document{}, fmt.Errorf("%w: bags cannot be negative", shared.ErrValidation)
	}

	doc := Document{
		Number:         strings.TrimSpace(input.Number),
		RakeCode:       input.RakeCode,
		Date:           input.Date,
		Destination:    input.Destination,
		TruckID:        input.TruckID,
		LoadingPoint:   strings.TrimSpace(input.LoadingPoint),
		UnloadingPoint: strings.TrimSpace(input.UnloadingPoint),
		GoodsName:      strings.TrimSpace(input.GoodsName),
		Bags:           input.Bags,
		Quantity:       input.Quantity,
		CreatedByRole:  input.CreatedByRole,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.AssignLR {
			lr, err := tx.NextLRNumber(ctx)
			if err != nil {
				return err
			}
			doc.LRNumber = &lr
		}
		id, err := tx.InsertDocument(ctx, doc)
		if err != nil {
			return err
		}
		doc.ID = id
		if input.AllocationID != nil {
			if err := s.linkLocked(ctx, tx, *input.AllocationID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Document{}, err
	}

	s.recordAudit(ctx, input.ActorID, "document:create", doc.Number, map[string]any{"quantity": doc.Quantity})
	return s.repo.Get(ctx, doc.ID)
}

// LinkAllocationToDocument ties an existing allocation to an existing
// document. Relinking the same pair succeeds without change; a different
// existing link is a conflict.
func (s *Service) LinkAllocationToDocument(ctx context.Context, allocationID, documentID int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.DocumentExists(ctx, documentID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return s.linkLocked(ctx, tx, allocationID, documentID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "document:link", strconv.FormatInt(documentID, 10), map[string]any{"allocation_id": allocationID})
	return nil
}

// linkLocked locks the allocation row and sets its document reference.
// The unique constraint on document_id keeps one document from serving
// two allocations even across concurrent transactions.
func (s *Service) linkLocked(ctx context.Context, tx TxRepository, allocationID, documentID int64) error {
	link, err := tx.LockAllocation(ctx, allocationID)
	if err != nil {
		return err
	}
	if link.DocumentID != nil {
		if *link.DocumentID == documentID {
			return nil
		}
		return ErrAlreadyLinked
	}
	return tx.SetAllocationDocument(ctx, allocationID, &documentID)
}

// GetDocument returns a document by id.
func (s *Service) GetDocument(ctx context.Context, id int64) (Document, error) {
	return s.repo.Get(ctx, id)
}

// GetDocumentByNumber returns a document by its number.
func (s *Service) GetDocumentByNumber(ctx context.Context, number string) (Document, error) {
	return s.repo.GetByNumber(ctx, number)
}

// ListDocuments returns documents matching the filter.
func (s *Service) ListDocuments(ctx context.Context, filter ListFilter) ([]Document, error) {
	return s.repo.List(ctx, filter)
}

// DeleteDocument removes a document. With cascade the dependent stock
// entries and the linked allocation go with it; without cascade they are
// unlinked and stay. A billed document cannot be deleted either way, and a
// cascade is refused when it would take a warehouse's net position negative.
func (s *Service) DeleteDocument(ctx context.Context, id int64, cascade bool, actorID int64) error {
	var rakeCode *string
	var warehouseIDs []int64

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.LockDocument(ctx, id)
		if err != nil {
			return err
		}
		billed, err := tx.HasBill(ctx, id)
		if err != nil {
			return err
		}
		if billed {
			return ErrHasBill
		}
		rakeCode = doc.RakeCode
		warehouseIDs, err = tx.StockEntryWarehouses(ctx, id)
		if err != nil {
			return err
		}
		if cascade {
			if err := tx.DeleteStockEntries(ctx, id); err != nil {
				return err
			}
			// Removing the IN entries must not leave a warehouse net
			// negative: its remaining OUT entries already shipped the goods.
			for _, wid := range warehouseIDs {
				net, err := tx.WarehouseNetBalance(ctx, wid)
				if err != nil {
					return err
				}
				if net < -balanceTolerance {
					return ErrStockCommitted
				}
			}
			if err := tx.DeleteAllocationByDocument(ctx, id); err != nil {
				return err
			}
		} else {
			if err := tx.UnlinkStockEntries(ctx, id); err != nil {
				return err
			}
			if err := tx.UnlinkAllocationByDocument(ctx, id); err != nil {
				return err
			}
		}
		if err := tx.DeleteDocument(ctx, id); err != nil {
			return err
		}
		if rakeCode != nil {
			s.balances.Invalidate(ctx, cache.RakeKey(*rakeCode))
		}
		for _, wid := range warehouseIDs {
			s.balances.Invalidate(ctx, cache.WarehouseKey(wid))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actorID, "document:delete", strconv.FormatInt(id, 10), map[string]any{"cascade": cascade})
	return nil
}

// recordAudit runs after the operation committed; its failure must not
// undo the registry write.
func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "transport_document",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil {
		s.logger().Warn("audit record failed", "action", action, "entity_id", entityID, "error", err)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return slog.Default()
}
