package warehouse

import (
	"fmt"
	"time"

	"github.com/fims-logistics/fims/internal/shared"
)

// EntryType classifies a stock ledger entry.
type EntryType string

const (
	EntryIn     EntryType = "IN"
	EntryOut    EntryType = "OUT"
	EntryAdjust EntryType = "ADJUST"
)

// Entry is one row in the warehouse stock ledger. Quantity is strictly
// positive for IN and OUT; ADJUST carries a signed correction.
type Entry struct {
	ID          int64     `json:"id"`
	WarehouseID int64     `json:"warehouse_id"`
	DocumentID  *int64    `json:"document_id,omitempty"`
	EntryType   EntryType `json:"entry_type"`
	Bags        int64     `json:"bags"`
	Quantity    float64   `json:"quantity_mt"`
	AccountID   *int64    `json:"account_id,omitempty"`
	Unloader    string    `json:"unloader,omitempty"`
	EntryDate   time.Time `json:"entry_date"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Balance is the net stock position of one warehouse.
type Balance struct {
	WarehouseID int64   `json:"warehouse_id"`
	Name        string  `json:"name,omitempty"`
	In          float64 `json:"in_mt"`
	Out         float64 `json:"out_mt"`
	Net         float64 `json:"net_mt"`
}

// StockInInput receives goods. The document reference is optional; direct
// receipts (local purchases, transfers without a builty) carry none, and the
// per-document cap and single-receipt rule apply only when one is named.
type StockInInput struct {
	WarehouseID int64
	DocumentID  *int64
	Bags        int64
	Quantity    float64
	Unloader    string
	EntryDate   time.Time
	ActorID     int64
}

// StockOutInput releases goods. The document reference is optional; direct
// sales out of the warehouse carry none, but usually name the account served.
type StockOutInput struct {
	WarehouseID int64
	DocumentID  *int64
	AccountID   *int64
	Bags        int64
	Quantity    float64
	EntryDate   time.Time
	Notes       string
	ActorID     int64
}

// AdjustInput corrects the ledger by a signed quantity.
type AdjustInput struct {
	WarehouseID int64
	Quantity    float64
	Notes       string
	ActorID     int64
}

// Domain errors.
var (
	ErrNotFound          = fmt.Errorf("%w: warehouse", shared.ErrNotFound)
	ErrDocumentNotFound  = fmt.Errorf("%w: transport document", shared.ErrNotFound)
	ErrDuplicateEntry    = fmt.Errorf("%w: document already received at this warehouse", shared.ErrConflict)
	ErrExceedsDocument   = fmt.Errorf("%w: received quantity exceeds document quantity", shared.ErrInsufficient)
	ErrInsufficientStock = fmt.Errorf("%w: warehouse stock", shared.ErrInsufficient)
	ErrInvalidQuantity   = fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
	ErrNoteRequired      = fmt.Errorf("%w: adjustment requires a note", shared.ErrValidation)
	ErrWrongDestination  = fmt.Errorf("%w: document is not consigned to this warehouse", shared.ErrValidation)
)
