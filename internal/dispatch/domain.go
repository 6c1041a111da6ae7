package dispatch

import (
	"fmt"
	"time"

	"github.com/fims-logistics/fims/internal/shared"
)

// Allocation is a committed share of a rake's quantity earmarked for a
// destination, created before (or independently of) the physical transport
// document. Known on the ground as a loading slip.
type Allocation struct {
	ID           int64              `json:"id"`
	RakeCode     string             `json:"rake_code"`
	SerialNumber int64              `json:"serial_number"`
	Destination  shared.Destination `json:"destination"`
	// Product narrows the allocation to one product of a multi-product
	// rake. Empty means the rake's declared product.
	Product     string    `json:"product,omitempty"`
	Bags        int64     `json:"bags"`
	Quantity    float64   `json:"quantity_mt"`
	TruckID     *int64    `json:"truck_id,omitempty"`
	WagonNumber string    `json:"wagon_number,omitempty"`
	DocumentID  *int64    `json:"document_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateInput describes a new allocation request.
type CreateInput struct {
	RakeCode    string
	Destination shared.Destination
	Product     string
	Bags        int64
	Quantity    float64
	TruckID     *int64
	WagonNumber string
	ActorID     int64
}

// Domain errors.
var (
	ErrRakeNotFound    = fmt.Errorf("%w: rake", shared.ErrNotFound)
	ErrNotFound        = fmt.Errorf("%w: allocation", shared.ErrNotFound)
	ErrRakeClosed      = fmt.Errorf("%w: rake is closed", shared.ErrConflict)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
	ErrInsufficient    = fmt.Errorf("%w: allocation exceeds remaining rake quantity", shared.ErrInsufficient)
	ErrDuplicateSerial = fmt.Errorf("%w: serial number already taken for rake", shared.ErrConflict)
)
