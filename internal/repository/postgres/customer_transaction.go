package postgres

import (
	"context"
	"database/sql"
	"iter"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/repository"
)

type customerTransactionRepository struct {
	db *sql.DB
}

func NewCustomerTransactionRepository(db *sql.DB) repository.CustomerTransactionRepository {
	return &customerTransactionRepository{db: db}
}

const transactionColumns = `id, business_id, customer_id, type, amount, balance_after, reference, note,
	COALESCE(idempotency_key, ''), sequence, recorded_by, created_at`

func scanTransaction(row interface{ Scan(...any) error }) (domain.CustomerTransaction, error) {
	var t domain.CustomerTransaction
	err := row.Scan(&t.ID, &t.BusinessID, &t.CustomerID, &t.Type, &t.Amount, &t.BalanceAfter,
		&t.Reference, &t.Note, &t.IdempotencyKey, &t.Sequence, &t.RecordedBy, &t.CreatedAt)
	return t, err
}

// Append inserts an entry. A duplicate sequence or idempotency key yields
// domain.ErrAlreadyExists.
func (r *customerTransactionRepository) Append(ctx context.Context, t *domain.CustomerTransaction) error {
	query := `INSERT INTO customer_transactions (id, business_id, customer_id, type, amount, balance_after,
	          reference, note, idempotency_key, sequence, recorded_by, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	key := sql.NullString{String: t.IdempotencyKey, Valid: t.IdempotencyKey != ""}
	_, err := conn(ctx, r.db).ExecContext(ctx, query, t.ID, t.BusinessID, t.CustomerID, t.Type, t.Amount, t.BalanceAfter,
		t.Reference, t.Note, key, t.Sequence, t.RecordedBy, t.CreatedAt)
	return classify(err, nil)
}

func (r *customerTransactionRepository) GetByIdempotencyKey(ctx context.Context, businessID, customerID, key string) (*domain.CustomerTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM customer_transactions
	          WHERE business_id = $1 AND customer_id = $2 AND idempotency_key = $3`
	t, err := scanTransaction(conn(ctx, r.db).QueryRowContext(ctx, query, businessID, customerID, key))
	if err != nil {
		return nil, classify(err, domain.ErrTxnNotFound)
	}
	return &t, nil
}

func (r *customerTransactionRepository) Stream(ctx context.Context, businessID, customerID string) iter.Seq2[domain.CustomerTransaction, error] {
	return func(yield func(domain.CustomerTransaction, error) bool) {
		query := `SELECT ` + transactionColumns + ` FROM customer_transactions
		          WHERE business_id = $1 AND customer_id = $2 ORDER BY sequence DESC`
		rows, err := conn(ctx, r.db).QueryContext(ctx, query, businessID, customerID)
		if err != nil {
			yield(domain.CustomerTransaction{}, classify(err, nil))
			return
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTransaction(rows)
			if err != nil {
				yield(domain.CustomerTransaction{}, classify(err, nil))
				return
			}
			if !yield(t, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(domain.CustomerTransaction{}, classify(err, nil))
		}
	}
}
