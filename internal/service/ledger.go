package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"bizops-backend/internal/config"
	"bizops-backend/internal/domain"
	"bizops-backend/internal/events"
	"bizops-backend/internal/logger"
	"bizops-backend/internal/repository"
)

type ledgerService struct {
	store     *repository.Store
	approvals ApprovalChecker
	publisher events.Publisher
	cfg       config.LedgerConfig
	history   *lru.Cache[string, []domain.CustomerTransaction]
	now       func() time.Time
}

func NewCreditLedgerService(store *repository.Store, approvals ApprovalChecker, publisher events.Publisher, cfg config.LedgerConfig) (CreditLedgerService, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 1024
	}
	history, err := lru.New[string, []domain.CustomerTransaction](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger history cache: %w", err)
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ledgerService{
		store:     store,
		approvals: approvals,
		publisher: publisher,
		cfg:       cfg,
		history:   history,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func historyKey(businessID, customerID string) string {
	return businessID + "/" + customerID
}

func (s *ledgerService) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	logger.EnterMethod("ledgerService.CreateCustomer", "businessID", c.BusinessID, "name", c.Name)

	if strings.TrimSpace(c.Name) == "" {
		err := domain.NewValidationError("name", "must not be empty")
		logger.ExitMethodWithError("ledgerService.CreateCustomer", err)
		return err
	}
	if c.CreditLimit < 0 {
		err := domain.NewValidationError("credit_limit", "must not be negative")
		logger.ExitMethodWithError("ledgerService.CreateCustomer", err)
		return err
	}

	now := s.now()
	c.ID = uuid.NewString()
	c.CreditUsed = 0
	c.TotalSpent = 0
	c.IsActive = true
	c.Version = 0
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := s.store.Customers.Create(ctx, c); err != nil {
		logger.ExitMethodWithError("ledgerService.CreateCustomer", err, "businessID", c.BusinessID)
		return fmt.Errorf("failed to create customer: %w", err)
	}

	logger.WithBusiness(ctx, c.BusinessID).Info("Customer created", "customerID", c.ID, "creditLimit", c.CreditLimit)
	logger.ExitMethod("ledgerService.CreateCustomer", "customerID", c.ID)
	return nil
}

func (s *ledgerService) GetCustomer(ctx context.Context, businessID, customerID string) (*domain.Customer, error) {
	c, err := s.store.Customers.GetByID(ctx, businessID, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer %s: %w", customerID, err)
	}
	return c, nil
}

func (s *ledgerService) ListCustomers(ctx context.Context, businessID string) ([]domain.Customer, error) {
	customers, err := s.store.Customers.List(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, nil
}

func (s *ledgerService) SetCustomerActive(ctx context.Context, businessID, customerID string, active bool) error {
	logger.EnterMethod("ledgerService.SetCustomerActive", "customerID", customerID, "active", active)
	if err := s.store.Customers.SetActive(ctx, businessID, customerID, active); err != nil {
		logger.ExitMethodWithError("ledgerService.SetCustomerActive", err, "customerID", customerID)
		return fmt.Errorf("failed to set customer active: %w", err)
	}
	logger.ExitMethod("ledgerService.SetCustomerActive", "customerID", customerID)
	return nil
}

func (s *ledgerService) DeleteCustomer(ctx context.Context, businessID, customerID string) error {
	logger.EnterMethod("ledgerService.DeleteCustomer", "customerID", customerID)
	if err := s.store.Customers.Delete(ctx, businessID, customerID); err != nil {
		logger.ExitMethodWithError("ledgerService.DeleteCustomer", err, "customerID", customerID)
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	s.history.Remove(historyKey(businessID, customerID))
	logger.WithBusiness(ctx, businessID).Info("Customer deleted", "customerID", customerID)
	logger.ExitMethod("ledgerService.DeleteCustomer", "customerID", customerID)
	return nil
}

// RecordTransaction posts one ledger entry and moves the customer's
// balance in the same commit. Lost updates surface as version conflicts
// and the whole read-compute-write is retried; a repeated idempotency key
// returns the entry committed the first time.
func (s *ledgerService) RecordTransaction(ctx context.Context, req RecordTransactionRequest) (*domain.CustomerTransaction, error) {
	logger.EnterMethod("ledgerService.RecordTransaction",
		"businessID", req.BusinessID, "customerID", req.CustomerID, "type", req.Type, "amount", req.Amount)

	if !req.Type.Valid() {
		err := domain.NewValidationError("type", fmt.Sprintf("unknown transaction type %q", req.Type))
		logger.ExitMethodWithError("ledgerService.RecordTransaction", err)
		return nil, err
	}
	if req.Amount <= 0 {
		err := domain.NewValidationError("amount", "must be greater than zero")
		logger.ExitMethodWithError("ledgerService.RecordTransaction", err)
		return nil, err
	}
	if err := s.checkApproval(ctx, req); err != nil {
		logger.ExitMethodWithError("ledgerService.RecordTransaction", err, "actor", req.ActorUserID)
		return nil, err
	}

	attempt := 0
	replayed := false
	op := func() (*domain.CustomerTransaction, error) {
		attempt++
		txn, replay, err := s.post(ctx, req)
		if err == nil {
			replayed = replay
			return txn, nil
		}
		if domain.IsRetryable(err) {
			logger.Warn("Ledger write conflict, retrying",
				"customerID", req.CustomerID, "attempt", attempt, "error", err)
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.cfg.RetryInitialInterval()
	maxTries := s.cfg.MaxRetries
	if maxTries <= 0 {
		maxTries = 1
	}

	txn, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(uint(maxTries)),
	)
	if err != nil {
		logger.ExitMethodWithError("ledgerService.RecordTransaction", err, "customerID", req.CustomerID, "attempts", attempt)
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	if replayed {
		logger.ExitMethod("ledgerService.RecordTransaction", "transactionID", txn.ID, "replayed", true)
		return txn, nil
	}

	s.history.Remove(historyKey(req.BusinessID, req.CustomerID))
	s.publish(ctx, events.New(events.TransactionRecorded, req.BusinessID, txn))

	logger.WithBusiness(ctx, req.BusinessID).Info("Transaction recorded",
		"customerID", txn.CustomerID, "transactionID", txn.ID, "sequence", txn.Sequence, "balanceAfter", txn.BalanceAfter)
	logger.ExitMethod("ledgerService.RecordTransaction", "transactionID", txn.ID)
	return txn, nil
}

// post is one attempt of the read-compute-write cycle. replay is true when
// the idempotency key matched an earlier commit.
func (s *ledgerService) post(ctx context.Context, req RecordTransactionRequest) (out *domain.CustomerTransaction, replay bool, err error) {
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		if req.IdempotencyKey != "" {
			prev, err := s.store.Transactions.GetByIdempotencyKey(ctx, req.BusinessID, req.CustomerID, req.IdempotencyKey)
			switch {
			case err == nil:
				if prev.Type != req.Type || prev.Amount != req.Amount {
					return domain.NewValidationError("idempotency_key", "already used for a different transaction")
				}
				out, replay = prev, true
				return nil
			case !errors.Is(err, domain.ErrTxnNotFound):
				return err
			}
		}

		c, err := s.store.Customers.GetByID(ctx, req.BusinessID, req.CustomerID)
		if err != nil {
			return err
		}
		if !c.IsActive {
			return domain.ErrCustomerInactive
		}

		if err := domain.CheckApply(c.CreditUsed, c.TotalSpent, req.Type, req.Amount); err != nil {
			return err
		}

		now := s.now()
		expected := c.Version
		c.CreditUsed = domain.ApplyTransaction(c.CreditUsed, req.Type, req.Amount)
		if req.Type.IsDebit() {
			c.TotalSpent += req.Amount
		}
		c.UpdatedAt = now
		if err := s.store.Customers.UpdateBalance(ctx, c, expected); err != nil {
			return err
		}

		txn := &domain.CustomerTransaction{
			ID:             uuid.NewString(),
			BusinessID:     req.BusinessID,
			CustomerID:     req.CustomerID,
			Type:           req.Type,
			Amount:         req.Amount,
			BalanceAfter:   c.CreditUsed,
			Reference:      req.Reference,
			Note:           req.Note,
			IdempotencyKey: req.IdempotencyKey,
			Sequence:       c.Version,
			RecordedBy:     req.ActorUserID,
			CreatedAt:      now,
		}
		if err := s.store.Transactions.Append(ctx, txn); err != nil {
			// A concurrent writer claimed the sequence or the idempotency
			// key first. The next attempt sees its commit.
			if errors.Is(err, domain.ErrAlreadyExists) {
				return fmt.Errorf("append raced on customer %s: %w", req.CustomerID, domain.ErrConflict)
			}
			return err
		}
		out = txn
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, replay, nil
}

// checkApproval gates large non-payment entries on the actor's credit
// authority.
func (s *ledgerService) checkApproval(ctx context.Context, req RecordTransactionRequest) error {
	threshold := s.cfg.ApprovalThresholdCents
	if s.approvals == nil || threshold <= 0 || req.Amount <= threshold || req.Type == domain.TransactionTypePayment {
		return nil
	}
	if req.ActorUserID == "" {
		return domain.ErrApprovalDenied
	}

	d, err := s.approvals.CanApprove(ctx, req.BusinessID, req.ActorUserID, domain.ActionCredit, req.Amount)
	if err != nil {
		return fmt.Errorf("failed to check approval: %w", err)
	}
	switch d.Outcome {
	case domain.Approved:
		return nil
	case domain.NeedsSecondaryApproval:
		if req.SecondaryApproverID == "" || req.SecondaryApproverID == req.ActorUserID {
			return domain.ErrSecondaryApprovalRequired
		}
		second, err := s.approvals.CanApprove(ctx, req.BusinessID, req.SecondaryApproverID, domain.ActionCredit, req.Amount)
		if err != nil {
			return fmt.Errorf("failed to check secondary approval: %w", err)
		}
		if !second.Allowed() {
			return fmt.Errorf("secondary approver %s: %s: %w", req.SecondaryApproverID, second.Reason, domain.ErrApprovalDenied)
		}
		return nil
	default:
		return fmt.Errorf("%s: %w", d.Reason, domain.ErrApprovalDenied)
	}
}

func (s *ledgerService) QueryLedger(ctx context.Context, businessID, customerID string) iter.Seq2[domain.CustomerTransaction, error] {
	return s.store.Transactions.Stream(ctx, businessID, customerID)
}

// LedgerHistory reads the full history newest first. When the backend is
// unavailable it serves the last good read instead of failing.
func (s *ledgerService) LedgerHistory(ctx context.Context, businessID, customerID string) (*LedgerHistory, error) {
	key := historyKey(businessID, customerID)

	var txs []domain.CustomerTransaction
	var readErr error
	for t, err := range s.store.Transactions.Stream(ctx, businessID, customerID) {
		if err != nil {
			readErr = err
			break
		}
		txs = append(txs, t)
	}

	if readErr != nil {
		if !errors.Is(readErr, domain.ErrBackendUnavailable) {
			return nil, fmt.Errorf("failed to read ledger: %w", readErr)
		}
		cached, _ := s.history.Get(key)
		logger.WithBusiness(ctx, businessID).Warn("Serving degraded ledger history",
			"customerID", customerID, "cachedEntries", len(cached), "error", readErr)
		return &LedgerHistory{Transactions: cached, Degraded: true}, nil
	}

	if len(txs) == 0 {
		if _, err := s.store.Customers.GetByID(ctx, businessID, customerID); err != nil {
			return nil, fmt.Errorf("failed to get customer %s: %w", customerID, err)
		}
	}
	s.history.Add(key, txs)
	return &LedgerHistory{Transactions: txs}, nil
}

func (s *ledgerService) CreditStatus(ctx context.Context, businessID, customerID string) (*CreditReport, error) {
	c, err := s.GetCustomer(ctx, businessID, customerID)
	if err != nil {
		return nil, err
	}

	utilization := "0.00"
	if c.CreditLimit > 0 {
		utilization = domain.CreditUtilization(c.CreditUsed, c.CreditLimit).StringFixed(2)
	}
	return &CreditReport{
		CustomerID:  c.ID,
		CreditLimit: c.CreditLimit,
		CreditUsed:  c.CreditUsed,
		Utilization: utilization,
		Status:      c.CreditStatus(),
		OverLimit:   c.OverLimit(),
	}, nil
}

// SetCreditLimit changes the limit in place. No ledger entry is written;
// the change is logged and published as an event instead.
func (s *ledgerService) SetCreditLimit(ctx context.Context, businessID, customerID string, limit int64, actorUserID string) error {
	logger.EnterMethod("ledgerService.SetCreditLimit", "customerID", customerID, "limit", limit)

	if limit < 0 {
		err := domain.NewValidationError("credit_limit", "must not be negative")
		logger.ExitMethodWithError("ledgerService.SetCreditLimit", err)
		return err
	}

	prev, err := s.store.Customers.GetByID(ctx, businessID, customerID)
	if err != nil {
		logger.ExitMethodWithError("ledgerService.SetCreditLimit", err, "customerID", customerID)
		return fmt.Errorf("failed to get customer %s: %w", customerID, err)
	}
	if err := s.store.Customers.UpdateCreditLimit(ctx, businessID, customerID, limit); err != nil {
		logger.ExitMethodWithError("ledgerService.SetCreditLimit", err, "customerID", customerID)
		return fmt.Errorf("failed to update credit limit: %w", err)
	}

	logger.WithBusiness(ctx, businessID).Info("Credit limit changed",
		"customerID", customerID, "from", prev.CreditLimit, "to", limit, "changedBy", actorUserID)
	s.publish(ctx, events.New(events.CreditLimitChanged, businessID, map[string]any{
		"customer_id":    customerID,
		"previous_limit": prev.CreditLimit,
		"credit_limit":   limit,
		"changed_by":     actorUserID,
	}))

	logger.ExitMethod("ledgerService.SetCreditLimit", "customerID", customerID)
	return nil
}

func (s *ledgerService) publish(ctx context.Context, e events.Event) {
	publish(ctx, s.publisher, e)
}

// publish is best effort. The write it describes has already committed.
func publish(ctx context.Context, p events.Publisher, e events.Event) {
	if err := p.Publish(ctx, e); err != nil {
		logger.WithBusiness(ctx, e.BusinessID).Warn("Failed to publish event", "type", e.Type, "eventID", e.ID, "error", err)
	}
}
