package jobs

import (
	"context"
	"fmt"
	"slices"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/events"
	"bizops-backend/internal/logger"
)

// LedgerMismatch is a customer whose stored balance differs from the fold
// of its transaction history.
type LedgerMismatch struct {
	BusinessID string `json:"business_id"`
	CustomerID string `json:"customer_id"`
	Stored     int64  `json:"stored"`
	Folded     int64  `json:"folded"`
}

// CreditBreach is a customer whose balance exceeds its credit limit.
type CreditBreach struct {
	BusinessID  string `json:"business_id"`
	CustomerID  string `json:"customer_id"`
	CreditUsed  int64  `json:"credit_used"`
	CreditLimit int64  `json:"credit_limit"`
}

// ReconcileLedgers re-folds every customer's history and reports drift
func (jr *JobRunner) ReconcileLedgers() {
	jr.runWithRecovery("ReconcileLedgers", func() {
		mismatches, err := jr.Reconcile(context.Background())
		if err != nil {
			logger.Error("Failed to reconcile ledgers", "error", err)
			return
		}
		logger.Info("Completed ledger reconciliation", "mismatches", len(mismatches))
	})
}

// Reconcile compares each customer's creditUsed with the fold of its
// history. A business that cannot be read is logged and skipped.
func (jr *JobRunner) Reconcile(ctx context.Context) ([]LedgerMismatch, error) {
	businesses, err := jr.store.Businesses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}

	var mismatches []LedgerMismatch
	for _, b := range businesses {
		log := logger.WithBusiness(ctx, b.ID)
		customers, err := jr.store.Customers.List(ctx, b.ID)
		if err != nil {
			log.Error("Failed to list customers", "error", err)
			continue
		}
		for _, c := range customers {
			folded, err := jr.fold(ctx, b.ID, c.ID)
			if err != nil {
				log.Error("Failed to read ledger", "customer_id", c.ID, "error", err)
				continue
			}
			if folded != c.CreditUsed {
				log.Error("Ledger balance drift detected",
					"customer_id", c.ID, "stored", c.CreditUsed, "folded", folded)
				mismatches = append(mismatches, LedgerMismatch{
					BusinessID: b.ID, CustomerID: c.ID, Stored: c.CreditUsed, Folded: folded,
				})
			}
		}
	}
	return mismatches, nil
}

func (jr *JobRunner) fold(ctx context.Context, businessID, customerID string) (int64, error) {
	var txs []domain.CustomerTransaction
	for t, err := range jr.store.Transactions.Stream(ctx, businessID, customerID) {
		if err != nil {
			return 0, err
		}
		txs = append(txs, t)
	}
	slices.Reverse(txs)
	return domain.FoldLedger(txs), nil
}

// ReportCreditBreaches surfaces customers whose balance exceeds their limit
func (jr *JobRunner) ReportCreditBreaches() {
	jr.runWithRecovery("ReportCreditBreaches", func() {
		ctx := context.Background()
		breaches, err := jr.CreditBreaches(ctx)
		if err != nil {
			logger.Error("Failed to scan for credit breaches", "error", err)
			return
		}
		for _, b := range breaches {
			e := events.New(events.CreditLimitBreached, b.BusinessID, b)
			if err := jr.publisher.Publish(ctx, e); err != nil {
				logger.Warn("Failed to publish event", "type", e.Type, "error", err)
			}
		}
		logger.Info("Completed credit breach scan", "breaches", len(breaches))
	})
}

// CreditBreaches lists active customers with creditUsed above creditLimit.
func (jr *JobRunner) CreditBreaches(ctx context.Context) ([]CreditBreach, error) {
	businesses, err := jr.store.Businesses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}

	var breaches []CreditBreach
	for _, b := range businesses {
		customers, err := jr.store.Customers.List(ctx, b.ID)
		if err != nil {
			logger.WithBusiness(ctx, b.ID).Error("Failed to list customers", "error", err)
			continue
		}
		for _, c := range customers {
			if !c.IsActive || !c.OverLimit() {
				continue
			}
			logger.WithBusiness(ctx, b.ID).Error("Customer over credit limit",
				"customer_id", c.ID, "credit_used", c.CreditUsed, "credit_limit", c.CreditLimit)
			breaches = append(breaches, CreditBreach{
				BusinessID: b.ID, CustomerID: c.ID, CreditUsed: c.CreditUsed, CreditLimit: c.CreditLimit,
			})
		}
	}
	return breaches, nil
}
