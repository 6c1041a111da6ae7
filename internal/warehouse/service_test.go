package warehouse

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fims-logistics/fims/internal/shared"
)

type memoryDocument struct {
	quantity    float64
	warehouseID *int64
}

type memoryRepo struct {
	mu         sync.Mutex
	warehouses map[int64]string
	docs       map[int64]memoryDocument
	entries    []Entry
	nextID     int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		warehouses: make(map[int64]string),
		docs:       make(map[int64]memoryDocument),
	}
}

// WithTx serializes callbacks with a mutex, mirroring the row lock the real
// repository takes on the warehouse.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetBalance(ctx context.Context, warehouseID int64) (Balance, error) {
	if _, ok := r.warehouses[warehouseID]; !ok {
		return Balance{}, ErrNotFound
	}
	bal := Balance{WarehouseID: warehouseID, Name: r.warehouses[warehouseID]}
	for _, e := range r.entries {
		if e.WarehouseID != warehouseID {
			continue
		}
		switch {
		case e.EntryType == EntryOut:
			bal.Out += e.Quantity
		case e.EntryType == EntryAdjust && e.Quantity < 0:
			bal.Out += -e.Quantity
		default:
			bal.In += e.Quantity
		}
	}
	bal.Net = bal.In - bal.Out
	return bal, nil
}

func (r *memoryRepo) Balances(ctx context.Context) ([]Balance, error) {
	out := []Balance{}
	for id := range r.warehouses {
		bal, err := r.GetBalance(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, bal)
	}
	return out, nil
}

func (r *memoryRepo) ListEntries(ctx context.Context, warehouseID int64, limit int) ([]Entry, error) {
	out := []Entry{}
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].WarehouseID == warehouseID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (tx *memoryTx) LockWarehouse(ctx context.Context, warehouseID int64) error {
	if _, ok := tx.repo.warehouses[warehouseID]; !ok {
		return ErrNotFound
	}
	return nil
}

func (tx *memoryTx) GetDocument(ctx context.Context, documentID int64) (documentInfo, error) {
	doc, ok := tx.repo.docs[documentID]
	if !ok {
		return documentInfo{}, ErrDocumentNotFound
	}
	return documentInfo{Quantity: doc.quantity, WarehouseID: doc.warehouseID}, nil
}

func (tx *memoryTx) NetBalance(ctx context.Context, warehouseID int64) (float64, error) {
	var net float64
	for _, e := range tx.repo.entries {
		if e.WarehouseID != warehouseID {
			continue
		}
		if e.EntryType == EntryOut {
			net -= e.Quantity
		} else {
			net += e.Quantity
		}
	}
	return net, nil
}

func (tx *memoryTx) Insert(ctx context.Context, entry Entry) (int64, error) {
	if entry.EntryType == EntryIn && entry.DocumentID != nil {
		for _, e := range tx.repo.entries {
			if e.EntryType == EntryIn && e.WarehouseID == entry.WarehouseID &&
				e.DocumentID != nil && *e.DocumentID == *entry.DocumentID {
				return 0, ErrDuplicateEntry
			}
		}
	}
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.repo.entries = append(tx.repo.entries, entry)
	return entry.ID, nil
}

func docRef(id int64) *int64 { return &id }

func seedRepo() *memoryRepo {
	repo := newMemoryRepo()
	repo.warehouses[7] = "Central Godown"
	wid := int64(7)
	repo.docs[100] = memoryDocument{quantity: 25, warehouseID: &wid}
	return repo
}

func TestRecordStockInCapAndDuplicate(t *testing.T) {
	repo := seedRepo()
	svc := NewService(nil, repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordStockIn(ctx, StockInInput{WarehouseID: 7, DocumentID: docRef(100), Quantity: 30})
	require.ErrorIs(t, err, ErrExceedsDocument)
	require.ErrorIs(t, err, shared.ErrInsufficient)

	entry, err := svc.RecordStockIn(ctx, StockInInput{WarehouseID: 7, DocumentID: docRef(100), Quantity: 24.8})
	require.NoError(t, err)
	require.Equal(t, EntryIn, entry.EntryType)

	_, err = svc.RecordStockIn(ctx, StockInInput{WarehouseID: 7, DocumentID: docRef(100), Quantity: 0.2})
	require.ErrorIs(t, err, ErrDuplicateEntry)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestRecordStockInWithoutDocument(t *testing.T) {
	repo := seedRepo()
	svc := NewService(nil, repo, nil, nil, nil)
	ctx := context.Background()

	entry, err := svc.RecordStockIn(ctx, StockInInput{WarehouseID: 7, Quantity: 12})
	require.NoError(t, err)
	require.Nil(t, entry.DocumentID)

	// direct receipts have no per-document cap or once-only rule
	_, err = svc.RecordStockIn(ctx, StockInInput{WarehouseID: 7, Quantity: 40})
	require.NoError(t, err)

	bal, err := svc.GetBalance(ctx, 7)
	require.NoError(t, err)
	require.InDelta(t, 52, bal.Net, 0.001)
}

func TestRecordStockInDestinationChecks(t *testing.T) {
	repo := seedRepo()
	repo.warehouses[8] = "North Godown"
	repo.docs[200] = memoryDocument{quantity: 10} // consigned to an account
	svc := NewService(nil, repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordStockIn(ctx, StockInInput{WarehouseID: 8, DocumentID: docRef(100), Quantity: 5})
	require.ErrorIs(t, err, ErrWrongDestination)

	_, err = svc.RecordStockIn(ctx, StockInInput{WarehouseID: 7, DocumentID: docRef(200), Quantity: 5})
	require.ErrorIs(t, err, ErrWrongDestination)

	_, err = svc.RecordStockIn(ctx, StockInInput{WarehouseID: 7, DocumentID: docRef(404), Quantity: 5})
	require.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = svc.RecordStockIn(ctx, StockInInput{WarehouseID: 404, DocumentID: docRef(100), Quantity: 5})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecordStockOutBalanceFloor(t *testing.T) {
	repo := seedRepo()
	svc := NewService(nil, repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordStockIn(ctx, StockInInput{WarehouseID: 7, DocumentID: docRef(100), Quantity: 25})
	require.NoError(t, err)

	_, err = svc.RecordStockOut(ctx, StockOutInput{WarehouseID: 7, Quantity: 30})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.ErrorIs(t, err, shared.ErrInsufficient)

	_, err = svc.RecordStockOut(ctx, StockOutInput{WarehouseID: 7, Quantity: 25})
	require.NoError(t, err)

	bal, err := svc.GetBalance(ctx, 7)
	require.NoError(t, err)
	require.InDelta(t, 0, bal.Net, 0.001)
}

func TestConcurrentStockOutNeverGoesNegative(t *testing.T) {
	repo := seedRepo()
	svc := NewService(nil, repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordStockIn(ctx, StockInInput{WarehouseID: 7, DocumentID: docRef(100), Quantity: 25})
	require.NoError(t, err)

	const workers = 3
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordStockOut(ctx, StockOutInput{WarehouseID: 7, Quantity: 15})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, ErrInsufficientStock)
			insufficient++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 2, insufficient)

	bal, err := svc.GetBalance(ctx, 7)
	require.NoError(t, err)
	require.GreaterOrEqual(t, bal.Net, 0.0)
}

func TestRecordAdjustment(t *testing.T) {
	repo := seedRepo()
	svc := NewService(nil, repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordStockIn(ctx, StockInInput{WarehouseID: 7, DocumentID: docRef(100), Quantity: 25})
	require.NoError(t, err)

	_, err = svc.RecordAdjustment(ctx, AdjustInput{WarehouseID: 7, Quantity: -2.5})
	require.ErrorIs(t, err, ErrNoteRequired)

	_, err = svc.RecordAdjustment(ctx, AdjustInput{WarehouseID: 7, Quantity: -30, Notes: "stocktake"})
	require.ErrorIs(t, err, ErrInsufficientStock)

	_, err = svc.RecordAdjustment(ctx, AdjustInput{WarehouseID: 7, Quantity: -2.5, Notes: "stocktake"})
	require.NoError(t, err)

	bal, err := svc.GetBalance(ctx, 7)
	require.NoError(t, err)
	require.InDelta(t, 22.5, bal.Net, 0.001)
}
