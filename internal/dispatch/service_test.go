package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fims-logistics/fims/internal/shared"
)

type memoryRake struct {
	total    float64
	product  string
	isClosed bool
}

type memoryRepo struct {
	mu     sync.Mutex
	rakes  map[string]*memoryRake
	allocs []Allocation
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rakes: make(map[string]*memoryRake)}
}

// WithTx serializes callbacks with a mutex, mirroring the row lock the real
// repository takes on the rake.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Allocation, error) {
	for _, a := range r.allocs {
		if a.ID == id {
			return a, nil
		}
	}
	return Allocation{}, ErrNotFound
}

func (r *memoryRepo) ListByRake(ctx context.Context, rakeCode string) ([]Allocation, error) {
	out := []Allocation{}
	for _, a := range r.allocs {
		if a.RakeCode == rakeCode {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListUnlinked(ctx context.Context) ([]Allocation, error) {
	out := []Allocation{}
	for _, a := range r.allocs {
		if a.DocumentID == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) PeekNextSerial(ctx context.Context, rakeCode string) (int64, error) {
	tx := &memoryTx{repo: r}
	return tx.NextSerial(ctx, rakeCode)
}

func (tx *memoryTx) LockRake(ctx context.Context, rakeCode string) (rakeState, error) {
	rk, ok := tx.repo.rakes[rakeCode]
	if !ok {
		return rakeState{}, ErrRakeNotFound
	}
	return rakeState{TotalQuantity: rk.total, Product: rk.product, IsClosed: rk.isClosed}, nil
}

func (tx *memoryTx) SumAllocations(ctx context.Context, rakeCode string) (float64, error) {
	var sum float64
	for _, a := range tx.repo.allocs {
		if a.RakeCode == rakeCode {
			sum += a.Quantity
		}
	}
	return sum, nil
}

func (tx *memoryTx) NextSerial(ctx context.Context, rakeCode string) (int64, error) {
	var max int64
	for _, a := range tx.repo.allocs {
		if a.RakeCode == rakeCode && a.SerialNumber > max {
			max = a.SerialNumber
		}
	}
	return max + 1, nil
}

func (tx *memoryTx) Insert(ctx context.Context, alloc Allocation) (int64, error) {
	for _, a := range tx.repo.allocs {
		if a.RakeCode == alloc.RakeCode && a.SerialNumber == alloc.SerialNumber {
			return 0, ErrDuplicateSerial
		}
	}
	tx.repo.nextID++
	alloc.ID = tx.repo.nextID
	tx.repo.allocs = append(tx.repo.allocs, alloc)
	return alloc.ID, nil
}

func warehouseDest(id int64) shared.Destination {
	return shared.Destination{Kind: shared.DestinationWarehouse, ID: id}
}

func TestCreateAllocationBalanceCheck(t *testing.T) {
	repo := newMemoryRepo()
	repo.rakes["R1"] = &memoryRake{total: 100, product: "Urea"}
	svc := NewService(nil, repo, nil, nil, nil)
	ctx := context.Background()

	first, err := svc.CreateAllocation(ctx, CreateInput{RakeCode: "R1", Destination: warehouseDest(1), Quantity: 60})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.SerialNumber)
	require.Equal(t, "Urea", first.Product)

	_, err = svc.CreateAllocation(ctx, CreateInput{RakeCode: "R1", Destination: warehouseDest(2), Quantity: 50})
	require.ErrorIs(t, err, ErrInsufficient)
	require.ErrorIs(t, err, shared.ErrInsufficient)

	second, err := svc.CreateAllocation(ctx, CreateInput{RakeCode: "R1", Destination: warehouseDest(2), Quantity: 40})
	require.NoError(t, err)
	require.Equal(t, int64(2), second.SerialNumber)
}

func TestCreateAllocationValidation(t *testing.T) {
	repo := newMemoryRepo()
	repo.rakes["R1"] = &memoryRake{total: 100, product: "Urea"}
	svc := NewService(nil, repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateAllocation(ctx, CreateInput{RakeCode: "R1", Destination: warehouseDest(1), Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateAllocation(ctx, CreateInput{RakeCode: "R1", Destination: shared.Destination{Kind: "TRUCK", ID: 1}, Quantity: 5})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateAllocation(ctx, CreateInput{RakeCode: "R404", Destination: warehouseDest(1), Quantity: 5})
	require.ErrorIs(t, err, ErrRakeNotFound)

	repo.rakes["R1"].isClosed = true
	_, err = svc.CreateAllocation(ctx, CreateInput{RakeCode: "R1", Destination: warehouseDest(1), Quantity: 5})
	require.ErrorIs(t, err, ErrRakeClosed)
}

func TestConcurrentAllocationsNeverOverdispatch(t *testing.T) {
	repo := newMemoryRepo()
	repo.rakes["R1"] = &memoryRake{total: 10, product: "DAP"}
	svc := NewService(nil, repo, nil, nil, nil)
	ctx := context.Background()

	const workers = 2
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateAllocation(ctx, CreateInput{RakeCode: "R1", Destination: warehouseDest(1), Quantity: 10})
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
			require.ErrorIs(t, err, ErrInsufficient)
			insufficient++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, insufficient)

	sum, err := (&memoryTx{repo: repo}).SumAllocations(ctx, "R1")
	require.NoError(t, err)
	require.InDelta(t, 10, sum, 0.001)
}

func TestSerialNumbersMonotonicPerRake(t *testing.T) {
	repo := newMemoryRepo()
	repo.rakes["R1"] = &memoryRake{total: 1000, product: "Urea"}
	repo.rakes["R2"] = &memoryRake{total: 1000, product: "MOP"}
	svc := NewService(nil, repo, nil, nil, nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		a, err := svc.CreateAllocation(ctx, CreateInput{RakeCode: "R1", Destination: warehouseDest(1), Quantity: 10})
		require.NoError(t, err)
		require.Equal(t, int64(i), a.SerialNumber)
	}
	a, err := svc.CreateAllocation(ctx, CreateInput{RakeCode: "R2", Destination: warehouseDest(1), Quantity: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), a.SerialNumber)

	next, err := svc.GetNextSerial(ctx, "R1")
	require.NoError(t, err)
	require.Equal(t, int64(4), next)
}
