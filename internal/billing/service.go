package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fims-logistics/fims/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, input CreateInput) (int64, error)
	Get(ctx context.Context, id int64) (Bill, error)
	List(ctx context.Context, limit int) ([]Bill, error)
	ListUnbilled(ctx context.Context) ([]UnbilledDocument, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts billing outcomes.
type MetricsPort interface {
	BillCreated()
	BillRejected(reason string)
}

// Service guards the one-bill-per-document rule.
type Service struct {
	log     *slog.Logger
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
}

// NewService builds Service.
func NewService(log *slog.Logger, repo RepositoryPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{log: log, repo: repo, audit: audit, metrics: metrics}
}

// CreateBill settles a document. A second bill against the same document is
// refused no matter how the two attempts interleave.
func (s *Service) CreateBill(ctx context.Context, input CreateInput) (Bill, error) {
	input.Number = strings.TrimSpace(input.Number)
	if input.Number == "" {
		return Bill{}, fmt.Errorf("%w: bill number required", shared.ErrValidation)
	}
	if input.Amount < 0 {
		return Bill{}, ErrInvalidAmount
	}
	if input.GeneratedDate.IsZero() {
		input.GeneratedDate = time.Now().UTC()
	}
	id, err := s.repo.Insert(ctx, input)
	if err != nil {
		s.countRejection(err)
		return Bill{}, err
	}

	if s.metrics != nil {
		s.metrics.BillCreated()
	}
	s.recordAudit(ctx, input.ActorID, "bill:create", id, map[string]any{
		"document_id": input.DocumentID,
		"number":      input.Number,
		"amount":      input.Amount,
	})
	return s.repo.Get(ctx, id)
}

// GetBill returns a bill by id.
func (s *Service) GetBill(ctx context.Context, id int64) (Bill, error) {
	return s.repo.Get(ctx, id)
}

// ListBills returns bills, newest first.
func (s *Service) ListBills(ctx context.Context, limit int) ([]Bill, error) {
	return s.repo.List(ctx, limit)
}

// ListUnbilledDocuments returns documents awaiting a bill.
func (s *Service) ListUnbilledDocuments(ctx context.Context) ([]UnbilledDocument, error) {
	return s.repo.ListUnbilled(ctx)
}

func (s *Service) countRejection(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, ErrAlreadyBilled):
		s.metrics.BillRejected("already_billed")
	case errors.Is(err, ErrDuplicateNumber):
		s.metrics.BillRejected("duplicate_number")
	}
}

// recordAudit runs after the operation committed; its failure must not undo
// the bill write.
func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, billID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "bill",
		EntityID: strconv.FormatInt(billID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger().Warn("audit record failed", "action", action, "bill_id", billID, "error", err)
	}
}

func (s *Service) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return slog.Default()
}
