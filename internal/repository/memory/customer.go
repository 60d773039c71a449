package memory

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"

	"bizops-backend/internal/domain"
)

type customerRepo struct{ s *Store }

func (r *customerRepo) Create(ctx context.Context, c *domain.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := key(c.BusinessID, c.ID)
	if _, exists := r.s.customers[k]; exists {
		return domain.ErrAlreadyExists
	}
	r.s.customers[k] = *c
	record(ctx, func() { delete(r.s.customers, k) })
	return nil
}

func (r *customerRepo) GetByID(_ context.Context, businessID, id string) (*domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.customers[key(businessID, id)]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	return &c, nil
}

func (r *customerRepo) List(_ context.Context, businessID string) ([]domain.Customer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.Customer
	for _, c := range r.s.customers {
		if c.BusinessID == businessID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.Customer) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (r *customerRepo) UpdateBalance(ctx context.Context, c *domain.Customer, expectedVersion int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := key(c.BusinessID, c.ID)
	stored, ok := r.s.customers[k]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	if stored.Version != expectedVersion {
		return fmt.Errorf("customer %s moved past version %d: %w", c.ID, expectedVersion, domain.ErrConflict)
	}

	prev := stored
	stored.CreditUsed = c.CreditUsed
	stored.TotalSpent = c.TotalSpent
	stored.UpdatedAt = c.UpdatedAt
	stored.Version = expectedVersion + 1
	r.s.customers[k] = stored
	record(ctx, func() { r.s.customers[k] = prev })

	c.Version = stored.Version
	return nil
}

func (r *customerRepo) mutate(ctx context.Context, businessID, id string, fn func(*domain.Customer)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := key(businessID, id)
	c, ok := r.s.customers[k]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	prev := c
	fn(&c)
	r.s.customers[k] = c
	record(ctx, func() { r.s.customers[k] = prev })
	return nil
}

func (r *customerRepo) UpdateCreditLimit(ctx context.Context, businessID, id string, limit int64) error {
	return r.mutate(ctx, businessID, id, func(c *domain.Customer) { c.CreditLimit = limit })
}

func (r *customerRepo) SetActive(ctx context.Context, businessID, id string, active bool) error {
	return r.mutate(ctx, businessID, id, func(c *domain.Customer) { c.IsActive = active })
}

func (r *customerRepo) Delete(ctx context.Context, businessID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := key(businessID, id)
	c, ok := r.s.customers[k]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	if c.CreditUsed != 0 {
		return domain.ErrOutstandingDebt
	}
	txs := r.s.transactions[k]
	delete(r.s.customers, k)
	delete(r.s.transactions, k)
	record(ctx, func() {
		r.s.customers[k] = c
		if txs != nil {
			r.s.transactions[k] = txs
		}
	})
	return nil
}

type transactionRepo struct{ s *Store }

func (r *transactionRepo) Append(ctx context.Context, t *domain.CustomerTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	k := key(t.BusinessID, t.CustomerID)
	existing := r.s.transactions[k]
	for _, e := range existing {
		if e.Sequence == t.Sequence || (t.IdempotencyKey != "" && e.IdempotencyKey == t.IdempotencyKey) {
			return domain.ErrAlreadyExists
		}
	}

	i, _ := slices.BinarySearchFunc(existing, t.Sequence, func(e domain.CustomerTransaction, seq int64) int {
		return cmp.Compare(e.Sequence, seq)
	})
	r.s.transactions[k] = slices.Insert(existing, i, *t)
	record(ctx, func() {
		r.s.transactions[k] = slices.DeleteFunc(r.s.transactions[k], func(e domain.CustomerTransaction) bool {
			return e.ID == t.ID
		})
	})
	return nil
}

func (r *transactionRepo) GetByIdempotencyKey(_ context.Context, businessID, customerID, idemKey string) (*domain.CustomerTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, e := range r.s.transactions[key(businessID, customerID)] {
		if e.IdempotencyKey == idemKey {
			return &e, nil
		}
	}
	return nil, domain.ErrTxnNotFound
}

// Stream snapshots the ledger when ranging starts.
func (r *transactionRepo) Stream(ctx context.Context, businessID, customerID string) iter.Seq2[domain.CustomerTransaction, error] {
	return func(yield func(domain.CustomerTransaction, error) bool) {
		r.s.mu.RLock()
		snapshot := slices.Clone(r.s.transactions[key(businessID, customerID)])
		r.s.mu.RUnlock()

		for i := len(snapshot) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				yield(domain.CustomerTransaction{}, err)
				return
			}
			if !yield(snapshot[i], nil) {
				return
			}
		}
	}
}
