package transport

import (
	"fmt"
	"time"

	"github.com/fims-logistics/fims/internal/shared"
)

// Document is the record accompanying an actual truck movement ("builty").
// It may originate at a rake point (RakeCode set) or directly at a
// warehouse, and may or may not correspond to a prior dispatch allocation.
type Document struct {
	ID             int64              `json:"id"`
	Number         string             `json:"number"`
	RakeCode       *string            `json:"rake_code,omitempty"`
	Date           time.Time          `json:"date"`
	Destination    shared.Destination `json:"destination"`
	TruckID        *int64             `json:"truck_id,omitempty"`
	LoadingPoint   string             `json:"loading_point,omitempty"`
	UnloadingPoint string             `json:"unloading_point,omitempty"`
	GoodsName      string             `json:"goods_name,omitempty"`
	Bags           int64              `json:"bags"`
	Quantity       float64            `json:"quantity_mt"`
	LRNumber       *string            `json:"lr_number,omitempty"`
	CreatedByRole  string             `json:"created_by_role,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// CreateInput describes a new transport document. AllocationID, when set,
// links the named allocation in the same transaction as the insert.
type CreateInput struct {
	Number         string
	RakeCode       *string
	Date           time.Time
	Destination    shared.Destination
	TruckID        *int64
	LoadingPoint   string
	UnloadingPoint string
	GoodsName      string
	Bags           int64
	Quantity       float64
	AssignLR       bool
	CreatedByRole  string
	AllocationID   *int64
	ActorID        int64
}

// ListFilter narrows ListDocuments.
type ListFilter struct {
	RakeCode      string
	WarehouseOnly bool
	Limit         int
}

// Domain errors.
var (
	ErrNotFound           = fmt.Errorf("%w: transport document", shared.ErrNotFound)
	ErrAllocationNotFound = fmt.Errorf("%w: allocation", shared.ErrNotFound)
	ErrDuplicateNumber    = fmt.Errorf("%w: document number already exists", shared.ErrConflict)
	ErrAlreadyLinked      = fmt.Errorf("%w: allocation already linked to another document", shared.ErrConflict)
	ErrDocumentTaken      = fmt.Errorf("%w: document already linked to another allocation", shared.ErrConflict)
	ErrInvalidQuantity    = fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
	ErrHasBill            = fmt.Errorf("%w: document has a bill", shared.ErrConflict)
	ErrLRNumberTaken      = fmt.Errorf("%w: lr number already assigned", shared.ErrConcurrency)
	ErrStockCommitted     = fmt.Errorf("%w: stock received on this document was already issued", shared.ErrConflict)
)
