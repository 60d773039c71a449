package service_test

import (
	"context"
	"fmt"
	"iter"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bizops-backend/internal/config"
	"bizops-backend/internal/domain"
	"bizops-backend/internal/events"
	"bizops-backend/internal/repository"
	"bizops-backend/internal/repository/memory"
	"bizops-backend/internal/service"
)

var testLedgerConfig = config.LedgerConfig{MaxRetries: 5, RetryInitialIntervalMs: 1, CacheSize: 16}

// MockApprovalChecker
type MockApprovalChecker struct {
	mock.Mock
}

func (m *MockApprovalChecker) CanApprove(ctx context.Context, businessID, userID string, action domain.ActionType, amount int64) (domain.Decision, error) {
	args := m.Called(ctx, businessID, userID, action, amount)
	return args.Get(0).(domain.Decision), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Type
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// flakyCustomers fails UpdateBalance with a version conflict a fixed
// number of times before delegating.
type flakyCustomers struct {
	repository.CustomerRepository
	failures atomic.Int32
	calls    atomic.Int32
}

func (f *flakyCustomers) UpdateBalance(ctx context.Context, c *domain.Customer, expectedVersion int64) error {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return fmt.Errorf("customer %s moved: %w", c.ID, domain.ErrConflict)
	}
	return f.CustomerRepository.UpdateBalance(ctx, c, expectedVersion)
}

// outageTransactions makes Stream fail as if the backend were down.
type outageTransactions struct {
	repository.CustomerTransactionRepository
	down bool
}

func (o *outageTransactions) Stream(ctx context.Context, businessID, customerID string) iter.Seq2[domain.CustomerTransaction, error] {
	if !o.down {
		return o.CustomerTransactionRepository.Stream(ctx, businessID, customerID)
	}
	return func(yield func(domain.CustomerTransaction, error) bool) {
		yield(domain.CustomerTransaction{}, fmt.Errorf("quota exceeded: %w", domain.ErrBackendUnavailable))
	}
}

func newLedger(t *testing.T, store *repository.Store, checker service.ApprovalChecker, cfg config.LedgerConfig) (service.CreditLedgerService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	svc, err := service.NewCreditLedgerService(store, checker, pub, cfg)
	require.NoError(t, err)
	return svc, pub
}

func seedCustomer(t *testing.T, svc service.CreditLedgerService, limit int64) *domain.Customer {
	t.Helper()
	c := &domain.Customer{BusinessID: "biz-1", Name: "Acme Hardware", CreditLimit: limit}
	require.NoError(t, svc.CreateCustomer(context.Background(), c))
	return c
}

func record(svc service.CreditLedgerService, c *domain.Customer, typ domain.TransactionType, amount int64) (*domain.CustomerTransaction, error) {
	return svc.RecordTransaction(context.Background(), service.RecordTransactionRequest{
		BusinessID: c.BusinessID, CustomerID: c.ID, Type: typ, Amount: amount, ActorUserID: "user-1",
	})
}

func TestCreditLedgerService_RecordTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, pub := newLedger(t, memory.NewStore(), nil, testLedgerConfig)
		c := seedCustomer(t, svc, 100000)

		txn, err := record(svc, c, domain.TransactionTypeInvoice, 5000)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), txn.BalanceAfter)
		assert.Equal(t, int64(1), txn.Sequence)
		assert.Equal(t, "user-1", txn.RecordedBy)

		txn, err = record(svc, c, domain.TransactionTypePayment, 2000)
		require.NoError(t, err)
		assert.Equal(t, int64(3000), txn.BalanceAfter)
		assert.Equal(t, int64(2), txn.Sequence)

		got, err := svc.GetCustomer(ctx, c.BusinessID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3000), got.CreditUsed)
		assert.Equal(t, int64(5000), got.TotalSpent)
		assert.Equal(t, []events.Type{events.TransactionRecorded, events.TransactionRecorded}, pub.types())
	})

	t.Run("OverpaymentClampsAtZero", func(t *testing.T) {
		svc, _ := newLedger(t, memory.NewStore(), nil, testLedgerConfig)
		c := seedCustomer(t, svc, 100000)

		_, err := record(svc, c, domain.TransactionTypeInvoice, 1000)
		require.NoError(t, err)
		txn, err := record(svc, c, domain.TransactionTypeRefund, 4000)
		require.NoError(t, err)
		assert.Equal(t, int64(0), txn.BalanceAfter)

		got, err := svc.GetCustomer(ctx, c.BusinessID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.CreditUsed)
		assert.Equal(t, int64(1000), got.TotalSpent)
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		svc, _ := newLedger(t, memory.NewStore(), nil, testLedgerConfig)
		c := seedCustomer(t, svc, 1000)

		_, err := record(svc, c, domain.TransactionTypeInvoice, 0)
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = record(svc, c, domain.TransactionTypeInvoice, -5)
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = record(svc, c, "gift", 100)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("OverflowingDebitRejected", func(t *testing.T) {
		svc, pub := newLedger(t, memory.NewStore(), nil, testLedgerConfig)
		c := seedCustomer(t, svc, 1000)

		_, err := record(svc, c, domain.TransactionTypeInvoice, 500)
		require.NoError(t, err)
		_, err = record(svc, c, domain.TransactionTypeInvoice, math.MaxInt64-499)
		assert.ErrorIs(t, err, domain.ErrValidation)

		got, err := svc.GetCustomer(ctx, c.BusinessID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(500), got.CreditUsed)
		assert.Equal(t, int64(500), got.TotalSpent)
		assert.Equal(t, int64(1), got.Version)
		assert.Len(t, pub.types(), 1)
	})

	t.Run("CustomerNotFound", func(t *testing.T) {
		svc, _ := newLedger(t, memory.NewStore(), nil, testLedgerConfig)
		_, err := record(svc, &domain.Customer{BusinessID: "biz-1", ID: "missing"}, domain.TransactionTypeInvoice, 100)
		assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("InactiveCustomer", func(t *testing.T) {
		svc, _ := newLedger(t, memory.NewStore(), nil, testLedgerConfig)
		c := seedCustomer(t, svc, 1000)
		require.NoError(t, svc.SetCustomerActive(ctx, c.BusinessID, c.ID, false))

		_, err := record(svc, c, domain.TransactionTypeInvoice, 100)
		assert.ErrorIs(t, err, domain.ErrCustomerInactive)
	})
}

func TestCreditLedgerService_IdempotencyKey(t *testing.T) {
	ctx := context.Background()
	svc, pub := newLedger(t, memory.NewStore(), nil, testLedgerConfig)
	c := seedCustomer(t, svc, 100000)

	req := service.RecordTransactionRequest{
		BusinessID: c.BusinessID, CustomerID: c.ID, Type: domain.TransactionTypeInvoice,
		Amount: 2500, IdempotencyKey: "inv-42",
	}
	first, err := svc.RecordTransaction(ctx, req)
	require.NoError(t, err)
	second, err := svc.RecordTransaction(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, []events.Type{events.TransactionRecorded}, pub.types(), "a replay publishes nothing")

	got, err := svc.GetCustomer(ctx, c.BusinessID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), got.CreditUsed)

	history, err := svc.LedgerHistory(ctx, c.BusinessID, c.ID)
	require.NoError(t, err)
	assert.Len(t, history.Transactions, 1)

	t.Run("KeyReusedForDifferentEntry", func(t *testing.T) {
		req.Amount = 9999
		_, err := svc.RecordTransaction(ctx, req)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestCreditLedgerService_ConcurrentWritersNeverLoseUpdates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedger(t, memory.NewStore(), nil, testLedgerConfig)
	c := seedCustomer(t, svc, 1000000)

	const writers = 40
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			typ := domain.TransactionTypeInvoice
			if i%3 == 0 {
				typ = domain.TransactionTypePayment
			}
			if _, err := record(svc, c, typ, int64(100+i)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var txs []domain.CustomerTransaction
	for txn, err := range svc.QueryLedger(ctx, c.BusinessID, c.ID) {
		require.NoError(t, err)
		txs = append(txs, txn)
	}
	require.Len(t, txs, writers)
	slices.Reverse(txs)

	var balance int64
	for i, txn := range txs {
		assert.Equal(t, int64(i+1), txn.Sequence)
		balance = domain.ApplyTransaction(balance, txn.Type, txn.Amount)
		assert.Equal(t, balance, txn.BalanceAfter, "sequence %d", txn.Sequence)
	}

	got, err := svc.GetCustomer(ctx, c.BusinessID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FoldLedger(txs), got.CreditUsed)
	assert.Equal(t, int64(writers), got.Version)
}

func TestCreditLedgerService_RetriesVersionConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("RecoversWithinBudget", func(t *testing.T) {
		store := memory.NewStore()
		flaky := &flakyCustomers{CustomerRepository: store.Customers}
		store.Customers = flaky
		svc, _ := newLedger(t, store, nil, testLedgerConfig)
		c := seedCustomer(t, svc, 10000)

		flaky.failures.Store(2)
		txn, err := record(svc, c, domain.TransactionTypeInvoice, 700)
		require.NoError(t, err)
		assert.Equal(t, int64(700), txn.BalanceAfter)
		assert.Equal(t, int32(3), flaky.calls.Load())

		count := 0
		for _, err := range svc.QueryLedger(ctx, c.BusinessID, c.ID) {
			require.NoError(t, err)
			count++
		}
		assert.Equal(t, 1, count)
	})

	t.Run("SurfacesConflictWhenExhausted", func(t *testing.T) {
		store := memory.NewStore()
		flaky := &flakyCustomers{CustomerRepository: store.Customers}
		store.Customers = flaky
		svc, _ := newLedger(t, store, nil, testLedgerConfig)
		c := seedCustomer(t, svc, 10000)

		flaky.failures.Store(100)
		_, err := record(svc, c, domain.TransactionTypeInvoice, 700)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.Equal(t, int32(testLedgerConfig.MaxRetries), flaky.calls.Load())

		got, err := svc.GetCustomer(ctx, c.BusinessID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.CreditUsed)
	})
}

func TestCreditLedgerService_ApprovalGate(t *testing.T) {
	ctx := context.Background()
	cfg := testLedgerConfig
	cfg.ApprovalThresholdCents = 1000

	setup := func(t *testing.T) (service.CreditLedgerService, *MockApprovalChecker, *domain.Customer) {
		checker := new(MockApprovalChecker)
		svc, _ := newLedger(t, memory.NewStore(), checker, cfg)
		return svc, checker, seedCustomer(t, svc, 100000)
	}
	req := func(c *domain.Customer, typ domain.TransactionType, amount int64, second string) service.RecordTransactionRequest {
		return service.RecordTransactionRequest{
			BusinessID: c.BusinessID, CustomerID: c.ID, Type: typ, Amount: amount,
			ActorUserID: "clerk", SecondaryApproverID: second,
		}
	}

	t.Run("BelowThresholdNotChecked", func(t *testing.T) {
		svc, checker, c := setup(t)
		_, err := svc.RecordTransaction(ctx, req(c, domain.TransactionTypeInvoice, 1000, ""))
		require.NoError(t, err)
		checker.AssertNotCalled(t, "CanApprove", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PaymentsNeverGated", func(t *testing.T) {
		svc, checker, c := setup(t)
		_, err := svc.RecordTransaction(ctx, req(c, domain.TransactionTypePayment, 50000, ""))
		require.NoError(t, err)
		checker.AssertNotCalled(t, "CanApprove", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Approved", func(t *testing.T) {
		svc, checker, c := setup(t)
		checker.On("CanApprove", mock.Anything, "biz-1", "clerk", domain.ActionCredit, int64(5000)).
			Return(domain.Decision{Outcome: domain.Approved, RoleID: "r1"}, nil)

		_, err := svc.RecordTransaction(ctx, req(c, domain.TransactionTypeInvoice, 5000, ""))
		require.NoError(t, err)
		checker.AssertExpectations(t)
	})

	t.Run("Denied", func(t *testing.T) {
		svc, checker, c := setup(t)
		checker.On("CanApprove", mock.Anything, "biz-1", "clerk", domain.ActionCredit, int64(5000)).
			Return(domain.Decision{Outcome: domain.Denied, Reason: domain.ReasonOverLimit}, nil)

		_, err := svc.RecordTransaction(ctx, req(c, domain.TransactionTypeInvoice, 5000, ""))
		assert.ErrorIs(t, err, domain.ErrApprovalDenied)

		got, err := svc.GetCustomer(ctx, c.BusinessID, c.ID)
		require.NoError(t, err)
		assert.Zero(t, got.CreditUsed)
	})

	t.Run("SecondaryRequired", func(t *testing.T) {
		svc, checker, c := setup(t)
		checker.On("CanApprove", mock.Anything, "biz-1", "clerk", domain.ActionCredit, int64(5000)).
			Return(domain.Decision{Outcome: domain.NeedsSecondaryApproval, RoleID: "r1"}, nil)

		_, err := svc.RecordTransaction(ctx, req(c, domain.TransactionTypeInvoice, 5000, ""))
		assert.ErrorIs(t, err, domain.ErrSecondaryApprovalRequired)

		_, err = svc.RecordTransaction(ctx, req(c, domain.TransactionTypeInvoice, 5000, "clerk"))
		assert.ErrorIs(t, err, domain.ErrSecondaryApprovalRequired)
	})

	t.Run("SecondaryApproverSignsOff", func(t *testing.T) {
		svc, checker, c := setup(t)
		checker.On("CanApprove", mock.Anything, "biz-1", "clerk", domain.ActionCredit, int64(5000)).
			Return(domain.Decision{Outcome: domain.NeedsSecondaryApproval, RoleID: "r1"}, nil)
		checker.On("CanApprove", mock.Anything, "biz-1", "manager", domain.ActionCredit, int64(5000)).
			Return(domain.Decision{Outcome: domain.Approved, RoleID: "r2"}, nil)

		txn, err := svc.RecordTransaction(ctx, req(c, domain.TransactionTypeInvoice, 5000, "manager"))
		require.NoError(t, err)
		assert.Equal(t, int64(5000), txn.BalanceAfter)
		checker.AssertExpectations(t)
	})

	t.Run("SecondaryApproverDenied", func(t *testing.T) {
		svc, checker, c := setup(t)
		checker.On("CanApprove", mock.Anything, "biz-1", "clerk", domain.ActionCredit, int64(5000)).
			Return(domain.Decision{Outcome: domain.NeedsSecondaryApproval, RoleID: "r1"}, nil)
		checker.On("CanApprove", mock.Anything, "biz-1", "intern", domain.ActionCredit, int64(5000)).
			Return(domain.Decision{Outcome: domain.Denied, Reason: domain.ReasonNoBinding}, nil)

		_, err := svc.RecordTransaction(ctx, req(c, domain.TransactionTypeInvoice, 5000, "intern"))
		assert.ErrorIs(t, err, domain.ErrApprovalDenied)
	})
}

func TestCreditLedgerService_LedgerHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("DegradesToCachedHistory", func(t *testing.T) {
		store := memory.NewStore()
		outage := &outageTransactions{CustomerTransactionRepository: store.Transactions}
		store.Transactions = outage
		svc, _ := newLedger(t, store, nil, testLedgerConfig)
		c := seedCustomer(t, svc, 10000)

		_, err := record(svc, c, domain.TransactionTypeInvoice, 300)
		require.NoError(t, err)
		_, err = record(svc, c, domain.TransactionTypeInvoice, 200)
		require.NoError(t, err)

		fresh, err := svc.LedgerHistory(ctx, c.BusinessID, c.ID)
		require.NoError(t, err)
		assert.False(t, fresh.Degraded)
		require.Len(t, fresh.Transactions, 2)
		assert.Equal(t, int64(200), fresh.Transactions[0].Amount)

		outage.down = true
		degraded, err := svc.LedgerHistory(ctx, c.BusinessID, c.ID)
		require.NoError(t, err)
		assert.True(t, degraded.Degraded)
		assert.Equal(t, fresh.Transactions, degraded.Transactions)
	})

	t.Run("DegradesToEmptyWithoutCache", func(t *testing.T) {
		store := memory.NewStore()
		store.Transactions = &outageTransactions{CustomerTransactionRepository: store.Transactions, down: true}
		svc, _ := newLedger(t, store, nil, testLedgerConfig)

		h, err := svc.LedgerHistory(ctx, "biz-1", "cust-1")
		require.NoError(t, err)
		assert.True(t, h.Degraded)
		assert.Empty(t, h.Transactions)
	})

	t.Run("UnknownCustomer", func(t *testing.T) {
		svc, _ := newLedger(t, memory.NewStore(), nil, testLedgerConfig)
		_, err := svc.LedgerHistory(ctx, "biz-1", "missing")
		assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
	})
}

func TestCreditLedgerService_CreditStatus(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedger(t, memory.NewStore(), nil, testLedgerConfig)

	c := seedCustomer(t, svc, 1000)
	_, err := record(svc, c, domain.TransactionTypeInvoice, 800)
	require.NoError(t, err)

	report, err := svc.CreditStatus(ctx, c.BusinessID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CreditStatusWarning, report.Status)
	assert.Equal(t, "80.00", report.Utilization)
	assert.False(t, report.OverLimit)

	cash := seedCustomer(t, svc, 0)
	report, err = svc.CreditStatus(ctx, cash.BusinessID, cash.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CreditStatusCashOnly, report.Status)
}

func TestCreditLedgerService_SetCreditLimit(t *testing.T) {
	ctx := context.Background()
	svc, pub := newLedger(t, memory.NewStore(), nil, testLedgerConfig)
	c := seedCustomer(t, svc, 1000)

	t.Run("Success", func(t *testing.T) {
		require.NoError(t, svc.SetCreditLimit(ctx, c.BusinessID, c.ID, 5000, "admin-1"))

		got, err := svc.GetCustomer(ctx, c.BusinessID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5000), got.CreditLimit)
		assert.Equal(t, int64(0), got.Version)

		count := 0
		for range svc.QueryLedger(ctx, c.BusinessID, c.ID) {
			count++
		}
		assert.Zero(t, count, "limit changes never write ledger entries")
		assert.Contains(t, pub.types(), events.CreditLimitChanged)
	})

	t.Run("NegativeLimit", func(t *testing.T) {
		err := svc.SetCreditLimit(ctx, c.BusinessID, c.ID, -1, "admin-1")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestCreditLedgerService_DeleteCustomer(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedger(t, memory.NewStore(), nil, testLedgerConfig)
	c := seedCustomer(t, svc, 1000)

	_, err := record(svc, c, domain.TransactionTypeInvoice, 400)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteCustomer(ctx, c.BusinessID, c.ID), domain.ErrOutstandingDebt)

	_, err = record(svc, c, domain.TransactionTypePayment, 400)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteCustomer(ctx, c.BusinessID, c.ID))

	_, err = svc.GetCustomer(ctx, c.BusinessID, c.ID)
	assert.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func TestCreditLedgerService_CreateCustomerValidation(t *testing.T) {
	svc, _ := newLedger(t, memory.NewStore(), nil, testLedgerConfig)

	err := svc.CreateCustomer(context.Background(), &domain.Customer{BusinessID: "biz-1", Name: "  "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = svc.CreateCustomer(context.Background(), &domain.Customer{BusinessID: "biz-1", Name: "Acme", CreditLimit: -1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
