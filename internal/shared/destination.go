package shared

import "fmt"

// DestinationKind discriminates the three destination types a dispatch can
// target.
type DestinationKind string

const (
	// DestinationAccount targets a dealer, retailer or company account.
	DestinationAccount DestinationKind = "ACCOUNT"
	// DestinationWarehouse targets one of our own warehouses.
	DestinationWarehouse DestinationKind = "WAREHOUSE"
	// DestinationSociety targets a cooperative society (CGMF).
	DestinationSociety DestinationKind = "SOCIETY"
)

// Destination is the tagged union used by allocations and transport
// documents. Exactly one of the id fields is meaningful, selected by Kind.
// Resolving a typed destination name to an id is the caller's job.
type Destination struct {
	Kind DestinationKind `json:"kind"`
	ID   int64           `json:"id"`
}

// Validate checks kind and id without touching the store.
func (d Destination) Validate() error {
	switch d.Kind {
	case DestinationAccount, DestinationWarehouse, DestinationSociety:
	default:
		return fmt.Errorf("%w: unknown destination kind %q", ErrValidation, d.Kind)
	}
	if d.ID <= 0 {
		return fmt.Errorf("%w: destination id must be positive", ErrValidation)
	}
	return nil
}

// Columns splits the union into the three nullable id columns the schema
// uses. The returned pointers are nil except for the selected kind.
func (d Destination) Columns() (accountID, warehouseID, societyID *int64) {
	id := d.ID
	switch d.Kind {
	case DestinationAccount:
		accountID = &id
	case DestinationWarehouse:
		warehouseID = &id
	case DestinationSociety:
		societyID = &id
	}
	return accountID, warehouseID, societyID
}

// DestinationFromColumns rebuilds the union from scanned nullable columns.
func DestinationFromColumns(accountID, warehouseID, societyID *int64) Destination {
	switch {
	case accountID != nil:
		return Destination{Kind: DestinationAccount, ID: *accountID}
	case warehouseID != nil:
		return Destination{Kind: DestinationWarehouse, ID: *warehouseID}
	case societyID != nil:
		return Destination{Kind: DestinationSociety, ID: *societyID}
	}
	return Destination{}
}
