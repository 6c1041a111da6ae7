// Package masterdata holds the reference entities the ledgers point at:
// accounts, products, warehouses, trucks and societies.
package masterdata

import (
	"fmt"
	"time"

	"github.com/fims-logistics/fims/internal/shared"
)

// Account is a buyer or trader billed for dispatched goods.
type Account struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Contact   string    `json:"contact,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Product is a fertilizer variety moved through the system.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code,omitempty"`
	Unit        string    `json:"unit"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Warehouse is a storage godown.
type Warehouse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Location   string    `json:"location,omitempty"`
	CapacityMT *float64  `json:"capacity_mt,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Truck is a registered vehicle with its driver and owner contacts.
type Truck struct {
	ID           int64     `json:"id"`
	Number       string    `json:"number"`
	DriverName   string    `json:"driver_name,omitempty"`
	DriverMobile string    `json:"driver_mobile,omitempty"`
	OwnerName    string    `json:"owner_name,omitempty"`
	OwnerMobile  string    `json:"owner_mobile,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Society is a cooperative society receiving allotted stock.
type Society struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	District  string    `json:"district,omitempty"`
	Contact   string    `json:"contact,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Domain errors.
var (
	ErrNotFound       = fmt.Errorf("%w: master record", shared.ErrNotFound)
	ErrDuplicate      = fmt.Errorf("%w: master record already exists", shared.ErrConflict)
	ErrNameRequired   = fmt.Errorf("%w: name is required", shared.ErrValidation)
	ErrNumberRequired = fmt.Errorf("%w: number is required", shared.ErrValidation)
)
