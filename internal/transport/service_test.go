package transport

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fims-logistics/fims/internal/shared"
)

type memoryAllocation struct {
	id         int64
	rakeCode   string
	documentID *int64
}

type memoryStockEntry struct {
	warehouseID int64
	documentID  *int64
	entryType   string
	quantity    float64
}

type memoryRepo struct {
	mu        sync.Mutex
	docs      map[int64]Document
	allocs    map[int64]*memoryAllocation
	entries   []*memoryStockEntry
	billedIDs map[int64]bool
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		docs:      make(map[int64]Document),
		allocs:    make(map[int64]*memoryAllocation),
		billedIDs: make(map[int64]bool),
	}
}

// WithTx snapshots state and restores it when fn fails, mirroring the
// rollback the real repository gets from its transaction.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs := make(map[int64]Document, len(r.docs))
	for id, d := range r.docs {
		docs[id] = d
	}
	allocs := make(map[int64]*memoryAllocation, len(r.allocs))
	for id, a := range r.allocs {
		copied := *a
		allocs[id] = &copied
	}
	entries := make([]*memoryStockEntry, len(r.entries))
	for i, e := range r.entries {
		copied := *e
		entries[i] = &copied
	}
	nextID := r.nextID

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.docs = docs
		r.allocs = allocs
		r.entries = entries
		r.nextID = nextID
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (r *memoryRepo) GetByNumber(ctx context.Context, number string) (Document, error) {
	for _, doc := range r.docs {
		if doc.Number == number {
			return doc, nil
		}
	}
	return Document{}, ErrNotFound
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	out := []Document{}
	for _, doc := range r.docs {
		if filter.RakeCode != "" && (doc.RakeCode == nil || *doc.RakeCode != filter.RakeCode) {
			continue
		}
		if filter.WarehouseOnly && doc.Destination.Kind != shared.DestinationWarehouse {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func (tx *memoryTx) InsertDocument(ctx context.Context, doc Document) (int64, error) {
	for _, existing := range tx.repo.docs {
		if existing.Number == doc.Number {
			return 0, ErrDuplicateNumber
		}
	}
	tx.repo.nextID++
	doc.ID = tx.repo.nextID
	tx.repo.docs[doc.ID] = doc
	return doc.ID, nil
}

func (tx *memoryTx) LockAllocation(ctx context.Context, allocationID int64) (allocationLink, error) {
	a, ok := tx.repo.allocs[allocationID]
	if !ok {
		return allocationLink{}, ErrAllocationNotFound
	}
	return allocationLink{ID: a.id, RakeCode: a.rakeCode, DocumentID: a.documentID}, nil
}

func (tx *memoryTx) SetAllocationDocument(ctx context.Context, allocationID int64, documentID *int64) error {
	if documentID != nil {
		for id, a := range tx.repo.allocs {
			if id != allocationID && a.documentID != nil && *a.documentID == *documentID {
				return ErrDocumentTaken
			}
		}
	}
	tx.repo.allocs[allocationID].documentID = documentID
	return nil
}

func (tx *memoryTx) DocumentExists(ctx context.Context, documentID int64) (bool, error) {
	_, ok := tx.repo.docs[documentID]
	return ok, nil
}

func (tx *memoryTx) LockDocument(ctx context.Context, documentID int64) (Document, error) {
	doc, ok := tx.repo.docs[documentID]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (tx *memoryTx) NextLRNumber(ctx context.Context) (string, error) {
	max := int64(1000)
	for _, doc := range tx.repo.docs {
		if doc.LRNumber == nil {
			continue
		}
		if n, err := strconv.ParseInt(*doc.LRNumber, 10, 64); err == nil && n > max {
			max = n
		}
	}
	return strconv.FormatInt(max+1, 10), nil
}

func (tx *memoryTx) HasBill(ctx context.Context, documentID int64) (bool, error) {
	return tx.repo.billedIDs[documentID], nil
}

func (tx *memoryTx) StockEntryWarehouses(ctx context.Context, documentID int64) ([]int64, error) {
	seen := map[int64]bool{}
	out := []int64{}
	for _, e := range tx.repo.entries {
		if e.documentID != nil && *e.documentID == documentID && !seen[e.warehouseID] {
			seen[e.warehouseID] = true
			out = append(out, e.warehouseID)
		}
	}
	return out, nil
}

func (tx *memoryTx) DeleteStockEntries(ctx context.Context, documentID int64) error {
	kept := tx.repo.entries[:0]
	for _, e := range tx.repo.entries {
		if e.documentID == nil || *e.documentID != documentID {
			kept = append(kept, e)
		}
	}
	tx.repo.entries = kept
	return nil
}

func (tx *memoryTx) WarehouseNetBalance(ctx context.Context, warehouseID int64) (float64, error) {
	var net float64
	for _, e := range tx.repo.entries {
		if e.warehouseID != warehouseID {
			continue
		}
		if e.entryType == "OUT" {
			net -= e.quantity
		} else {
			net += e.quantity
		}
	}
	return net, nil
}

func (tx *memoryTx) UnlinkStockEntries(ctx context.Context, documentID int64) error {
	for _, e := range tx.repo.entries {
		if e.documentID != nil && *e.documentID == documentID {
			e.documentID = nil
		}
	}
	return nil
}

func (tx *memoryTx) DeleteAllocationByDocument(ctx context.Context, documentID int64) error {
	for id, a := range tx.repo.allocs {
		if a.documentID != nil && *a.documentID == documentID {
			delete(tx.repo.allocs, id)
		}
	}
	return nil
}

func (tx *memoryTx) UnlinkAllocationByDocument(ctx context.Context, documentID int64) error {
	for _, a := range tx.repo.allocs {
		if a.documentID != nil && *a.documentID == documentID {
			a.documentID = nil
		}
	}
	return nil
}

func (tx *memoryTx) DeleteDocument(ctx context.Context, documentID int64) error {
	if _, ok := tx.repo.docs[documentID]; !ok {
		return ErrNotFound
	}
	delete(tx.repo.docs, documentID)
	return nil
}

func validInput(number string) CreateInput {
	return CreateInput{
		Number:      number,
		Date:        time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Destination: shared.Destination{Kind: shared.DestinationWarehouse, ID: 7},
		Quantity:    25.5,
		Bags:        510,
	}
}

func TestCreateDocumentAssignsLRNumbers(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, nil, nil)
	ctx := context.Background()

	in := validInput("BLT-1")
	in.AssignLR = true
	first, err := svc.CreateDocument(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, first.LRNumber)
	require.Equal(t, "1001", *first.LRNumber)

	in = validInput("BLT-2")
	in.AssignLR = true
	second, err := svc.CreateDocument(ctx, in)
	require.NoError(t, err)
	require.Equal(t, "1002", *second.LRNumber)

	in = validInput("BLT-3")
	third, err := svc.CreateDocument(ctx, in)
	require.NoError(t, err)
	require.Nil(t, third.LRNumber)
}

func TestConcurrentCreateGetsDistinctLRNumbers(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, nil, nil)
	ctx := context.Background()

	const workers = 8
	lrs := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := validInput("BLT-" + strconv.Itoa(i))
			in.AssignLR = true
			doc, err := svc.CreateDocument(ctx, in)
			require.NoError(t, err)
			require.NotNil(t, doc.LRNumber)
			lrs <- *doc.LRNumber
		}(i)
	}
	wg.Wait()
	close(lrs)

	seen := map[string]bool{}
	for lr := range lrs {
		require.False(t, seen[lr], "lr number %s assigned twice", lr)
		seen[lr] = true
	}
	require.Len(t, seen, workers)
}

func TestCreateDocumentValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, nil, nil)
	ctx := context.Background()

	in := validInput("BLT-1")
	in.Quantity = 0
	_, err := svc.CreateDocument(ctx, in)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	in = validInput("")
	_, err = svc.CreateDocument(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateDocument(ctx, validInput("BLT-1"))
	require.NoError(t, err)
	_, err = svc.CreateDocument(ctx, validInput("BLT-1"))
	require.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestCreateDocumentWithAllocationIsAllOrNothing(t *testing.T) {
	repo := newMemoryRepo()
	taken := int64(99)
	repo.allocs[1] = &memoryAllocation{id: 1, rakeCode: "R1"}
	repo.allocs[2] = &memoryAllocation{id: 2, rakeCode: "R1", documentID: &taken}
	svc := NewService(nil, repo, nil, nil)
	ctx := context.Background()

	in := validInput("BLT-1")
	allocID := int64(1)
	in.AllocationID = &allocID
	doc, err := svc.CreateDocument(ctx, in)
	require.NoError(t, err)
	require.Equal(t, doc.ID, *repo.allocs[1].documentID)

	// Linking an allocation already tied elsewhere must also undo the insert.
	in = validInput("BLT-2")
	allocID = 2
	in.AllocationID = &allocID
	_, err = svc.CreateDocument(ctx, in)
	require.ErrorIs(t, err, ErrAlreadyLinked)
	_, err = repo.GetByNumber(ctx, "BLT-2")
	require.ErrorIs(t, err, ErrNotFound)

	in = validInput("BLT-3")
	allocID = 404
	in.AllocationID = &allocID
	_, err = svc.CreateDocument(ctx, in)
	require.ErrorIs(t, err, ErrAllocationNotFound)
}

func TestLinkAllocationIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	repo.allocs[1] = &memoryAllocation{id: 1, rakeCode: "R1"}
	svc := NewService(nil, repo, nil, nil)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, validInput("BLT-1"))
	require.NoError(t, err)
	other, err := svc.CreateDocument(ctx, validInput("BLT-2"))
	require.NoError(t, err)

	require.NoError(t, svc.LinkAllocationToDocument(ctx, 1, doc.ID, 0))
	require.NoError(t, svc.LinkAllocationToDocument(ctx, 1, doc.ID, 0))
	require.ErrorIs(t, svc.LinkAllocationToDocument(ctx, 1, other.ID, 0), ErrAlreadyLinked)
	require.ErrorIs(t, svc.LinkAllocationToDocument(ctx, 1, 404, 0), ErrNotFound)
}

func TestDeleteDocument(t *testing.T) {
	repo := newMemoryRepo()
	repo.allocs[1] = &memoryAllocation{id: 1, rakeCode: "R1"}
	svc := NewService(nil, repo, nil, nil)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, validInput("BLT-1"))
	require.NoError(t, err)
	require.NoError(t, svc.LinkAllocationToDocument(ctx, 1, doc.ID, 0))
	repo.entries = append(repo.entries, &memoryStockEntry{warehouseID: 7, documentID: &doc.ID})

	// Without cascade the allocation and stock entry survive, unlinked.
	require.NoError(t, svc.DeleteDocument(ctx, doc.ID, false, 0))
	require.Nil(t, repo.allocs[1].documentID)
	require.Len(t, repo.entries, 1)
	require.Nil(t, repo.entries[0].documentID)

	doc2, err := svc.CreateDocument(ctx, validInput("BLT-2"))
	require.NoError(t, err)
	require.NoError(t, svc.LinkAllocationToDocument(ctx, 1, doc2.ID, 0))
	repo.entries = append(repo.entries, &memoryStockEntry{warehouseID: 7, documentID: &doc2.ID})

	// Cascade takes the dependents with it.
	require.NoError(t, svc.DeleteDocument(ctx, doc2.ID, true, 0))
	require.NotContains(t, repo.allocs, int64(1))
	require.Len(t, repo.entries, 1)

	doc3, err := svc.CreateDocument(ctx, validInput("BLT-3"))
	require.NoError(t, err)
	repo.billedIDs[doc3.ID] = true
	require.ErrorIs(t, svc.DeleteDocument(ctx, doc3.ID, true, 0), ErrHasBill)
	_, err = repo.Get(ctx, doc3.ID)
	require.NoError(t, err)
}

func TestDeleteDocumentCascadeRefusedWhenStockIssued(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(nil, repo, nil, nil)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, validInput("BLT-1"))
	require.NoError(t, err)
	repo.entries = append(repo.entries,
		&memoryStockEntry{warehouseID: 7, documentID: &doc.ID, entryType: "IN", quantity: 20},
		&memoryStockEntry{warehouseID: 7, entryType: "OUT", quantity: 20},
	)

	// The receipt already left the warehouse, so removing it would drive
	// the net position to -20.
	err = svc.DeleteDocument(ctx, doc.ID, true, 0)
	require.ErrorIs(t, err, ErrStockCommitted)
	require.ErrorIs(t, err, shared.ErrConflict)

	// The rollback keeps the document and both entries.
	_, err = repo.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, repo.entries, 2)
	require.NotNil(t, repo.entries[0].documentID)

	// Once the issue is reversed the cascade goes through.
	repo.entries = repo.entries[:1]
	require.NoError(t, svc.DeleteDocument(ctx, doc.ID, true, 0))
	require.Empty(t, repo.entries)
}
