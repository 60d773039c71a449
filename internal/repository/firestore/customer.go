package firestore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"bizops-backend/internal/domain"
)

type customerRepo struct{ s *Store }

func (r *customerRepo) ref(businessID, id string) *firestore.DocumentRef {
	return r.s.sub(businessID, "customers").Doc(id)
}

func (r *customerRepo) Create(ctx context.Context, c *domain.Customer) error {
	ref := r.ref(c.BusinessID, c.ID)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		return tx.Create(ref, toCustomerDoc(c))
	})
}

func (r *customerRepo) GetByID(ctx context.Context, businessID, id string) (*domain.Customer, error) {
	snap, err := r.s.get(ctx, r.ref(businessID, id))
	if err != nil {
		return nil, classify(err, domain.ErrCustomerNotFound)
	}
	var d customerDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to decode customer %s: %w", id, err)
	}
	return d.toDomain(businessID, id), nil
}

func (r *customerRepo) List(ctx context.Context, businessID string) ([]domain.Customer, error) {
	it := r.s.documents(ctx, r.s.sub(businessID, "customers").OrderBy("name", firestore.Asc))
	defer it.Stop()

	var out []domain.Customer
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classify(err, nil)
		}
		var d customerDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode customer %s: %w", snap.Ref.ID, err)
		}
		out = append(out, *d.toDomain(businessID, snap.Ref.ID))
	}
	return out, nil
}

func (r *customerRepo) UpdateBalance(ctx context.Context, c *domain.Customer, expectedVersion int64) error {
	ref := r.ref(c.BusinessID, c.ID)
	err := r.s.write(ctx, func(tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return classify(err, domain.ErrCustomerNotFound)
		}
		var d customerDoc
		if err := snap.DataTo(&d); err != nil {
			return err
		}
		if d.Version != expectedVersion {
			return fmt.Errorf("customer %s moved past version %d: %w", c.ID, expectedVersion, domain.ErrConflict)
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "creditUsed", Value: c.CreditUsed},
			{Path: "totalSpent", Value: c.TotalSpent},
			{Path: "version", Value: expectedVersion + 1},
			{Path: "updatedAt", Value: c.UpdatedAt},
		})
	})
	if err != nil {
		return err
	}
	c.Version = expectedVersion + 1
	return nil
}

func (r *customerRepo) update(ctx context.Context, businessID, id string, updates []firestore.Update) error {
	ref := r.ref(businessID, id)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			return classify(err, domain.ErrCustomerNotFound)
		}
		return tx.Update(ref, append(updates, firestore.Update{Path: "updatedAt", Value: time.Now().UTC()}))
	})
}

func (r *customerRepo) UpdateCreditLimit(ctx context.Context, businessID, id string, limit int64) error {
	return r.update(ctx, businessID, id, []firestore.Update{{Path: "creditLimit", Value: limit}})
}

func (r *customerRepo) SetActive(ctx context.Context, businessID, id string, active bool) error {
	return r.update(ctx, businessID, id, []firestore.Update{{Path: "isActive", Value: active}})
}

// Delete removes the customer together with its ledger and idempotency
// reservations.
func (r *customerRepo) Delete(ctx context.Context, businessID, id string) error {
	ref := r.ref(businessID, id)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return classify(err, domain.ErrCustomerNotFound)
		}
		var d customerDoc
		if err := snap.DataTo(&d); err != nil {
			return err
		}
		if d.CreditUsed != 0 {
			return domain.ErrOutstandingDebt
		}

		var children []*firestore.DocumentSnapshot
		for _, col := range []string{"transactions", "idempotencyKeys"} {
			docs, err := tx.Documents(ref.Collection(col)).GetAll()
			if err != nil {
				return classify(err, nil)
			}
			children = append(children, docs...)
		}
		for _, child := range children {
			if err := tx.Delete(child.Ref); err != nil {
				return err
			}
		}
		return tx.Delete(ref)
	})
}

type transactionRepo struct{ s *Store }

func (r *transactionRepo) customer(businessID, customerID string) *firestore.DocumentRef {
	return r.s.sub(businessID, "customers").Doc(customerID)
}

func sequenceID(seq int64) string {
	return fmt.Sprintf("%020d", seq)
}

// idempotencyID turns an arbitrary client key into a valid document ID.
func idempotencyID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// Append creates the entry under its zero-padded sequence so a second
// write at the same version collides on commit.
func (r *transactionRepo) Append(ctx context.Context, t *domain.CustomerTransaction) error {
	cust := r.customer(t.BusinessID, t.CustomerID)
	return r.s.write(ctx, func(tx *firestore.Transaction) error {
		if err := tx.Create(cust.Collection("transactions").Doc(sequenceID(t.Sequence)), toTransactionDoc(t)); err != nil {
			return err
		}
		if t.IdempotencyKey == "" {
			return nil
		}
		return tx.Create(cust.Collection("idempotencyKeys").Doc(idempotencyID(t.IdempotencyKey)),
			map[string]any{"sequence": t.Sequence, "key": t.IdempotencyKey})
	})
}

func (r *transactionRepo) GetByIdempotencyKey(ctx context.Context, businessID, customerID, key string) (*domain.CustomerTransaction, error) {
	cust := r.customer(businessID, customerID)
	snap, err := r.s.get(ctx, cust.Collection("idempotencyKeys").Doc(idempotencyID(key)))
	if err != nil {
		return nil, classify(err, domain.ErrTxnNotFound)
	}
	seq, err := snap.DataAt("sequence")
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency reservation: %w", err)
	}
	n, ok := seq.(int64)
	if !ok {
		return nil, fmt.Errorf("idempotency reservation has sequence of type %T", seq)
	}

	snap, err = r.s.get(ctx, cust.Collection("transactions").Doc(sequenceID(n)))
	if err != nil {
		return nil, classify(err, domain.ErrTxnNotFound)
	}
	var d transactionDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	t := d.toDomain(businessID, customerID)
	return &t, nil
}

func (r *transactionRepo) Stream(ctx context.Context, businessID, customerID string) iter.Seq2[domain.CustomerTransaction, error] {
	return func(yield func(domain.CustomerTransaction, error) bool) {
		q := r.customer(businessID, customerID).Collection("transactions").OrderBy("sequence", firestore.Desc)
		it := r.s.documents(ctx, q)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield(domain.CustomerTransaction{}, classify(err, nil))
				return
			}
			var d transactionDoc
			if err := snap.DataTo(&d); err != nil {
				yield(domain.CustomerTransaction{}, err)
				return
			}
			if !yield(d.toDomain(businessID, customerID), nil) {
				return
			}
		}
	}
}
