package billing

import (
	"fmt"
	"time"

	"github.com/fims-logistics/fims/internal/shared"
)

// Bill settles exactly one transport document.
type Bill struct {
	ID             int64     `json:"id"`
	DocumentID     int64     `json:"document_id"`
	DocumentNumber string    `json:"document_number,omitempty"`
	Number         string    `json:"number"`
	Amount         float64   `json:"amount"`
	GeneratedDate  time.Time `json:"generated_date"`
	CreatedAt      time.Time `json:"created_at"`
}

// UnbilledDocument is a transport document with no bill against it yet.
type UnbilledDocument struct {
	DocumentID int64     `json:"document_id"`
	Number     string    `json:"number"`
	Quantity   float64   `json:"quantity_mt"`
	Date       time.Time `json:"date"`
}

// CreateInput describes a new bill.
type CreateInput struct {
	DocumentID    int64
	Number        string
	Amount        float64
	GeneratedDate time.Time
	ActorID       int64
}

// Domain errors.
var (
	ErrNotFound         = fmt.Errorf("%w: bill", shared.ErrNotFound)
	ErrDocumentNotFound = fmt.Errorf("%w: transport document", shared.ErrNotFound)
	ErrAlreadyBilled    = fmt.Errorf("%w: document already billed", shared.ErrConflict)
	ErrDuplicateNumber  = fmt.Errorf("%w: bill number already exists", shared.ErrConflict)
	ErrInvalidAmount    = fmt.Errorf("%w: amount cannot be negative", shared.ErrValidation)
)
