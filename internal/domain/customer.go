package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeInvoice          TransactionType = "invoice"
	TransactionTypePayment          TransactionType = "payment"
	TransactionTypeCreditAdjustment TransactionType = "credit-adjustment"
	TransactionTypeRefund           TransactionType = "refund"
)

// Valid reports whether t is one of the known ledger entry types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeInvoice, TransactionTypePayment, TransactionTypeCreditAdjustment, TransactionTypeRefund:
		return true
	}
	return false
}

// IsDebit reports whether t increases the amount the customer owes.
func (t TransactionType) IsDebit() bool {
	return t == TransactionTypeInvoice
}

type Customer struct {
	ID          string    `json:"id"`
	BusinessID  string    `json:"business_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	CreditLimit int64     `json:"credit_limit"` // cents
	CreditUsed  int64     `json:"credit_used"`  // cents, always the fold of the ledger
	TotalSpent  int64     `json:"total_spent"`  // cents, sum of debits
	IsActive    bool      `json:"is_active"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CustomerTransaction is an immutable ledger entry.
type CustomerTransaction struct {
	ID             string          `json:"id"`
	BusinessID     string          `json:"business_id"`
	CustomerID     string          `json:"customer_id"`
	Type           TransactionType `json:"type"`
	Amount         int64           `json:"amount"`
	BalanceAfter   int64           `json:"balance_after"`
	Reference      string          `json:"reference,omitempty"`
	Note           string          `json:"note,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Sequence       int64           `json:"sequence"` // customer version produced by this entry
	RecordedBy     string          `json:"recorded_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ApplyTransaction returns the balance after posting amount of type t on
// top of balance. Credits clamp at zero; overpayment is absorbed.
func ApplyTransaction(balance int64, t TransactionType, amount int64) int64 {
	if t.IsDebit() {
		return balance + amount
	}
	if amount >= balance {
		return 0
	}
	return balance - amount
}

// CheckApply rejects a debit that would push balance or totalSpent past
// the int64 range.
func CheckApply(balance, totalSpent int64, t TransactionType, amount int64) error {
	if !t.IsDebit() {
		return nil
	}
	if amount > math.MaxInt64-balance || amount > math.MaxInt64-totalSpent {
		return NewValidationError("amount", "would overflow the customer balance")
	}
	return nil
}

// FoldLedger replays txs in ascending Sequence order starting from a zero
// balance. Callers must pass entries already sorted oldest first.
func FoldLedger(txs []CustomerTransaction) int64 {
	var balance int64
	for _, t := range txs {
		balance = ApplyTransaction(balance, t.Type, t.Amount)
	}
	return balance
}

type CreditStatus string

const (
	CreditStatusCashOnly CreditStatus = "cash-only"
	CreditStatusGood     CreditStatus = "good"
	CreditStatusWarning  CreditStatus = "warning"
	CreditStatusHighRisk CreditStatus = "high-risk"
)

var (
	warningThreshold  = decimal.NewFromInt(70)
	highRiskThreshold = decimal.NewFromInt(90)
	hundred           = decimal.NewFromInt(100)
)

// CreditUtilization returns creditUsed as a percentage of creditLimit.
// The limit must be positive.
func CreditUtilization(creditUsed, creditLimit int64) decimal.Decimal {
	return decimal.NewFromInt(creditUsed).Mul(hundred).Div(decimal.NewFromInt(creditLimit))
}

// ClassifyCredit buckets a customer's utilisation. It has no side effects.
func ClassifyCredit(creditUsed, creditLimit int64) CreditStatus {
	if creditLimit == 0 {
		return CreditStatusCashOnly
	}
	pct := CreditUtilization(creditUsed, creditLimit)
	switch {
	case pct.LessThan(warningThreshold):
		return CreditStatusGood
	case pct.LessThan(highRiskThreshold):
		return CreditStatusWarning
	default:
		return CreditStatusHighRisk
	}
}

// CreditStatus classifies c from its current balance and limit.
func (c *Customer) CreditStatus() CreditStatus {
	return ClassifyCredit(c.CreditUsed, c.CreditLimit)
}

// OverLimit reports whether the balance exceeds the limit. This is a
// business-rule breach to surface, never a reason to reject a write.
func (c *Customer) OverLimit() bool {
	return c.CreditUsed > c.CreditLimit
}
