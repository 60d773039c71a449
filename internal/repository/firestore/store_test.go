package firestore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bizops-backend/internal/domain"
)

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(status.Error(codes.NotFound, "no doc"), domain.ErrRoleNotFound), domain.ErrRoleNotFound)
	assert.ErrorIs(t, classify(status.Error(codes.AlreadyExists, "dup"), nil), domain.ErrAlreadyExists)
	assert.ErrorIs(t, classify(status.Error(codes.Aborted, "contention"), nil), domain.ErrConflict)
	assert.ErrorIs(t, classify(status.Error(codes.Unavailable, "down"), nil), domain.ErrBackendUnavailable)
	assert.ErrorIs(t, classify(status.Error(codes.DeadlineExceeded, "slow"), nil), domain.ErrBackendUnavailable)
	assert.ErrorIs(t, classify(domain.ErrOutstandingDebt, nil), domain.ErrOutstandingDebt)
	assert.Nil(t, classify(nil, domain.ErrNotFound))
}

func TestIdempotencyID(t *testing.T) {
	assert.Equal(t, idempotencyID("order/42"), idempotencyID("order/42"))
	assert.NotEqual(t, idempotencyID("order/42"), idempotencyID("order/43"))
	assert.NotContains(t, idempotencyID("a/b/c"), "/")
	assert.Equal(t, "00000000000000000042", sequenceID(42))
}

// TestStore_Emulator runs against a local emulator when one is configured.
func TestStore_Emulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	client, err := Open(ctx, Config{ProjectID: "bizops-test"})
	require.NoError(t, err)
	store := NewStore(client)
	defer store.Close()

	bid := uuid.NewString()
	now := time.Now().UTC()
	require.NoError(t, store.Customers.Create(ctx, &domain.Customer{ID: "c1", BusinessID: bid, Name: "Acme", IsActive: true, CreatedAt: now, UpdatedAt: now}))

	err = store.RunInTx(ctx, func(ctx context.Context) error {
		c, err := store.Customers.GetByID(ctx, bid, "c1")
		if err != nil {
			return err
		}
		c.CreditUsed = 500
		c.TotalSpent = 500
		expected := c.Version
		if err := store.Customers.UpdateBalance(ctx, c, expected); err != nil {
			return err
		}
		return store.Transactions.Append(ctx, &domain.CustomerTransaction{
			ID: uuid.NewString(), BusinessID: bid, CustomerID: "c1", Type: domain.TransactionTypeInvoice,
			Amount: 500, BalanceAfter: 500, IdempotencyKey: "inv-1", Sequence: c.Version,
		})
	})
	require.NoError(t, err)

	got, err := store.Transactions.GetByIdempotencyKey(ctx, bid, "c1", "inv-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Sequence)

	c, err := store.Customers.GetByID(ctx, bid, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), c.CreditUsed)
	assert.ErrorIs(t, store.Customers.UpdateBalance(ctx, c, 0), domain.ErrConflict)

	_, err = store.Roles.GetByID(ctx, bid, "missing")
	assert.ErrorIs(t, err, domain.ErrRoleNotFound)
}
