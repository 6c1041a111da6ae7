package billing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fims-logistics/fims/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	docs   map[int64]string
	bills  map[int64]Bill
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{docs: make(map[int64]string), bills: make(map[int64]Bill)}
}

// Insert resolves conflicts under a single lock, the way the unique
// constraints do in the real store.
func (r *memoryRepo) Insert(ctx context.Context, input CreateInput) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[input.DocumentID]; !ok {
		return 0, ErrDocumentNotFound
	}
	for _, b := range r.bills {
		if b.DocumentID == input.DocumentID {
			return 0, ErrAlreadyBilled
		}
		if b.Number == input.Number {
			return 0, ErrDuplicateNumber
		}
	}
	r.nextID++
	r.bills[r.nextID] = Bill{
		ID:             r.nextID,
		DocumentID:     input.DocumentID,
		DocumentNumber: r.docs[input.DocumentID],
		Number:         input.Number,
		Amount:         input.Amount,
		GeneratedDate:  input.GeneratedDate,
		CreatedAt:      time.Now(),
	}
	return r.nextID, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bills[id]
	if !ok {
		return Bill{}, ErrNotFound
	}
	return b, nil
}

func (r *memoryRepo) List(ctx context.Context, limit int) ([]Bill, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Bill{}
	for _, b := range r.bills {
		out = append(out, b)
	}
	return out, nil
}

func (r *memoryRepo) ListUnbilled(ctx context.Context) ([]UnbilledDocument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	billed := map[int64]bool{}
	for _, b := range r.bills {
		billed[b.DocumentID] = true
	}
	out := []UnbilledDocument{}
	for id, number := range r.docs {
		if !billed[id] {
			out = append(out, UnbilledDocument{DocumentID: id, Number: number})
		}
	}
	return out, nil
}

func TestCreateBillValidation(t *testing.T) {
	repo := newMemoryRepo()
	repo.docs[1] = "BLT-1"
	svc := NewService(nil, repo, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateBill(ctx, CreateInput{DocumentID: 1, Number: ""})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.CreateBill(ctx, CreateInput{DocumentID: 1, Number: "INV-1", Amount: -5})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.CreateBill(ctx, CreateInput{DocumentID: 404, Number: "INV-1", Amount: 100})
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestCreateBillOncePerDocument(t *testing.T) {
	repo := newMemoryRepo()
	repo.docs[1] = "BLT-1"
	repo.docs[2] = "BLT-2"
	svc := NewService(nil, repo, nil, nil)
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, CreateInput{DocumentID: 1, Number: "INV-1", Amount: 125000})
	require.NoError(t, err)
	require.Equal(t, "BLT-1", bill.DocumentNumber)

	_, err = svc.CreateBill(ctx, CreateInput{DocumentID: 1, Number: "INV-2", Amount: 125000})
	require.ErrorIs(t, err, ErrAlreadyBilled)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.CreateBill(ctx, CreateInput{DocumentID: 2, Number: "INV-1", Amount: 90000})
	require.ErrorIs(t, err, ErrDuplicateNumber)

	unbilled, err := svc.ListUnbilledDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, unbilled, 1)
	require.Equal(t, int64(2), unbilled[0].DocumentID)
}

func TestConcurrentBillingOneWinner(t *testing.T) {
	repo := newMemoryRepo()
	repo.docs[1] = "BLT-1"
	svc := NewService(nil, repo, nil, nil)
	ctx := context.Background()

	const workers = 4
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateBill(ctx, CreateInput{DocumentID: 1, Number: "INV-" + string(rune('A'+i)), Amount: 100})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflict int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, ErrAlreadyBilled)
			conflict++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, workers-1, conflict)
}
