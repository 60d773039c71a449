package jobs

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizops-backend/internal/config"
	"bizops-backend/internal/domain"
	"bizops-backend/internal/events"
	"bizops-backend/internal/repository"
	"bizops-backend/internal/repository/memory"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func seed(t *testing.T, store *repository.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Businesses.Create(ctx, &domain.Business{ID: "biz-1", Name: "Northwind", BusinessCode: "AAAAAA", SystemCode: "BBBBBB"}))

	// healthy: invoice 800, payment 1000 clamps to zero, invoice 300
	require.NoError(t, store.Customers.Create(ctx, &domain.Customer{
		ID: "c-ok", BusinessID: "biz-1", Name: "Acme", CreditLimit: 1000, CreditUsed: 300, IsActive: true, Version: 3,
	}))
	entries := []struct {
		typ    domain.TransactionType
		amount int64
	}{
		{domain.TransactionTypeInvoice, 800},
		{domain.TransactionTypePayment, 1000},
		{domain.TransactionTypeInvoice, 300},
	}
	for i, e := range entries {
		require.NoError(t, store.Transactions.Append(ctx, &domain.CustomerTransaction{
			ID: "t-" + string(rune('a'+i)), BusinessID: "biz-1", CustomerID: "c-ok",
			Type: e.typ, Amount: e.amount, Sequence: int64(i + 1),
		}))
	}

	// drifted: balance says 500, history is empty
	require.NoError(t, store.Customers.Create(ctx, &domain.Customer{
		ID: "c-drift", BusinessID: "biz-1", Name: "Bolt", CreditLimit: 100, CreditUsed: 500, IsActive: true,
	}))
}

func TestJobRunner_Reconcile(t *testing.T) {
	store := memory.NewStore()
	seed(t, store)
	jr := NewJobRunner(store, nil, &config.Config{})

	mismatches, err := jr.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, LedgerMismatch{BusinessID: "biz-1", CustomerID: "c-drift", Stored: 500, Folded: 0}, mismatches[0])
}

func TestJobRunner_CreditBreaches(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seed(t, store)
	require.NoError(t, store.Customers.Create(ctx, &domain.Customer{
		ID: "c-off", BusinessID: "biz-1", Name: "Closed", CreditLimit: 0, CreditUsed: 50, IsActive: false,
	}))
	pub := &capturePublisher{}
	jr := NewJobRunner(store, pub, &config.Config{})

	breaches, err := jr.CreditBreaches(ctx)
	require.NoError(t, err)
	require.Len(t, breaches, 1)
	assert.Equal(t, "c-drift", breaches[0].CustomerID)

	jr.ReportCreditBreaches()
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.CreditLimitBreached, pub.events[0].Type)
	assert.Equal(t, "biz-1", pub.events[0].BusinessID)
}

func TestJobRunner_RunWithRecovery(t *testing.T) {
	jr := NewJobRunner(memory.NewStore(), nil, &config.Config{})

	ran := false
	assert.NotPanics(t, func() {
		jr.runWithRecovery("Explodes", func() {
			ran = true
			panic("boom")
		})
	})
	assert.True(t, ran)
}

func TestJobRunner_RunAllOnEmptyStore(t *testing.T) {
	jr := NewJobRunner(memory.NewStore(), nil, &config.Config{})
	assert.NotPanics(t, jr.RunAll)
}
