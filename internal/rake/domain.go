package rake

import (
	"fmt"
	"time"

	"github.com/fims-logistics/fims/internal/shared"
)

// Rake models one inbound consignment with a fixed declared quantity.
// Rakes are historical records: never deleted, mutated only by close/reopen.
type Rake struct {
	ID            int64      `json:"id"`
	Code          string     `json:"code"`
	CompanyName   string     `json:"company_name"`
	ArrivalDate   time.Time  `json:"arrival_date"`
	TotalQuantity float64    `json:"total_quantity"`
	Product       string     `json:"product"`
	RakePoint     string     `json:"rake_point"`
	IsClosed      bool       `json:"is_closed"`
	Shortage      *float64   `json:"shortage,omitempty"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Balance summarises a rake's quantity position. Dispatched is the sum of
// dispatch allocations, which are the authoritative commitment even before a
// transport document exists.
type Balance struct {
	Total      float64 `json:"total"`
	Dispatched float64 `json:"dispatched"`
	Remaining  float64 `json:"remaining"`
}

// CreateInput describes an administrative rake registration.
type CreateInput struct {
	Code          string
	CompanyName   string
	ArrivalDate   time.Time
	TotalQuantity float64
	Product       string
	RakePoint     string
	ActorID       int64
}

// Summary is the per-rake dispatch figure served to dashboards, produced by
// one aggregated query.
type Summary struct {
	Code          string   `json:"code"`
	CompanyName   string   `json:"company_name"`
	TotalQuantity float64  `json:"total_quantity"`
	Dispatched    float64  `json:"dispatched"`
	Remaining     float64  `json:"remaining"`
	IsClosed      bool     `json:"is_closed"`
	Shortage      *float64 `json:"shortage,omitempty"`
}

// Domain errors, classified by the shared taxonomy.
var (
	ErrNotFound        = fmt.Errorf("%w: rake", shared.ErrNotFound)
	ErrDuplicateCode   = fmt.Errorf("%w: rake code already exists", shared.ErrConflict)
	ErrAlreadyClosed   = fmt.Errorf("%w: rake already closed", shared.ErrConflict)
	ErrNotClosed       = fmt.Errorf("%w: rake is not closed", shared.ErrConflict)
	ErrInvalidQuantity = fmt.Errorf("%w: total quantity must be positive", shared.ErrValidation)
)
