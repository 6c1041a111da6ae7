package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IntegrityMetrics publishes the result of an integrity scan.
type IntegrityMetrics interface {
	SetIntegrityViolations(count int)
}

// Violation is one invariant breach found by a scan.
type Violation struct {
	Check  string
	Entity string
	Detail float64
}

// LedgerIntegrityJob re-verifies the conservation invariants the write path
// enforces: dispatch within rake totals, non-negative warehouse stock,
// receipts within document quantities, and recorded shortages matching the
// closing arithmetic. Violations indicate either out-of-band data edits or a
// defect, so they are logged loudly and published as a gauge.
type LedgerIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics IntegrityMetrics
	clock   func() time.Time
}

// NewLedgerIntegrityJob initialises the scan handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics IntegrityMetrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the scan.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("integrity scan: handler not configured")
	}
	var payload IntegrityScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.ToleranceMT <= 0 {
		payload.ToleranceMT = 0.01
	}

	start := j.now()
	logger := j.logger().With(slog.Float64("tolerance_mt", payload.ToleranceMT))
	logger.Info("starting ledger integrity scan")

	violations, err := j.Scan(ctx, payload.ToleranceMT)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	for _, v := range violations {
		logger.Warn("ledger integrity violation",
			slog.String("check", v.Check),
			slog.String("entity", v.Entity),
			slog.Float64("delta", v.Detail),
		)
	}
	if j.Metrics != nil {
		j.Metrics.SetIntegrityViolations(len(violations))
	}

	logger.Info("completed ledger integrity scan",
		slog.Int("violations", len(violations)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Scan runs each invariant query and collects the breaches.
func (j *LedgerIntegrityJob) Scan(ctx context.Context, tolerance float64) ([]Violation, error) {
	violations := []Violation{}

	collect := func(check, query string) error {
		rows, err := j.Pool.Query(ctx, query, tolerance)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var entity string
			var delta float64
			if err := rows.Scan(&entity, &delta); err != nil {
				return err
			}
			violations = append(violations, Violation{Check: check, Entity: entity, Detail: delta})
		}
		return rows.Err()
	}

	// dispatched quantity must never exceed the rake's declared total
	if err := collect("rake_overdispatch", `
		SELECT r.code, COALESCE(SUM(a.quantity_mt), 0) - r.total_quantity
		FROM rakes r
		JOIN dispatch_allocations a ON a.rake_code = r.code
		GROUP BY r.code, r.total_quantity
		HAVING COALESCE(SUM(a.quantity_mt), 0) > r.total_quantity + $1`); err != nil {
		return nil, err
	}

	// warehouse net stock must never be negative
	if err := collect("warehouse_negative_stock", `
		SELECT w.id::text, SUM(CASE
			WHEN e.entry_type = 'OUT' THEN -e.quantity_mt
			ELSE e.quantity_mt
		END)
		FROM warehouses w
		JOIN warehouse_stock_entries e ON e.warehouse_id = w.id
		GROUP BY w.id
		HAVING SUM(CASE
			WHEN e.entry_type = 'OUT' THEN -e.quantity_mt
			ELSE e.quantity_mt
		END) < -$1`); err != nil {
		return nil, err
	}

	// a received quantity must fit within its document's quantity
	if err := collect("stock_in_exceeds_document", `
		SELECT d.number, e.quantity_mt - d.quantity_mt
		FROM warehouse_stock_entries e
		JOIN transport_documents d ON d.id = e.document_id
		WHERE e.entry_type = 'IN' AND e.quantity_mt > d.quantity_mt + $1`); err != nil {
		return nil, err
	}

	// a closed rake's recorded shortage must match total minus dispatched
	if err := collect("shortage_mismatch", `
		SELECT r.code, r.shortage - (r.total_quantity - COALESCE(SUM(a.quantity_mt), 0))
		FROM rakes r
		LEFT JOIN dispatch_allocations a ON a.rake_code = r.code
		WHERE r.is_closed AND r.shortage IS NOT NULL
		GROUP BY r.code, r.shortage, r.total_quantity
		HAVING ABS(r.shortage - (r.total_quantity - COALESCE(SUM(a.quantity_mt), 0))) > $1`); err != nil {
		return nil, err
	}

	return violations, nil
}

func (j *LedgerIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
