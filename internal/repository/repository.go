package repository

import (
	"context"
	"iter"

	"bizops-backend/internal/domain"
)

// TransactionManager runs fn atomically. Repositories called with the ctx
// passed to fn take part in the same transaction.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CustomerRepository interface {
	Create(ctx context.Context, c *domain.Customer) error
	GetByID(ctx context.Context, businessID, id string) (*domain.Customer, error)
	List(ctx context.Context, businessID string) ([]domain.Customer, error)

	// UpdateBalance writes CreditUsed and TotalSpent only if the stored
	// version still equals expectedVersion, then bumps the version by one.
	// It returns domain.ErrConflict when the version moved underneath.
	UpdateBalance(ctx context.Context, c *domain.Customer, expectedVersion int64) error
	UpdateCreditLimit(ctx context.Context, businessID, id string, limit int64) error
	SetActive(ctx context.Context, businessID, id string, active bool) error
	Delete(ctx context.Context, businessID, id string) error
}

type CustomerTransactionRepository interface {
	Append(ctx context.Context, t *domain.CustomerTransaction) error
	GetByIdempotencyKey(ctx context.Context, businessID, customerID, key string) (*domain.CustomerTransaction, error)

	// Stream yields a customer's entries newest first. Rows are fetched
	// lazily as the caller ranges; breaking early releases the cursor.
	Stream(ctx context.Context, businessID, customerID string) iter.Seq2[domain.CustomerTransaction, error]
}

type ApprovalRoleRepository interface {
	Create(ctx context.Context, r *domain.ApprovalRole) error
	GetByID(ctx context.Context, businessID, id string) (*domain.ApprovalRole, error)
	List(ctx context.Context, businessID string) ([]domain.ApprovalRole, error)
	Update(ctx context.Context, r *domain.ApprovalRole) error
	Delete(ctx context.Context, businessID, id string) error
}

type ApprovalUserRepository interface {
	Create(ctx context.Context, u *domain.ApprovalUser) error
	GetByID(ctx context.Context, businessID, id string) (*domain.ApprovalUser, error)
	GetActiveByUser(ctx context.Context, businessID, userID string) (*domain.ApprovalUser, error)
	ListByRole(ctx context.Context, businessID, roleID string) ([]domain.ApprovalUser, error)
	Deactivate(ctx context.Context, businessID, id string) error
}

type BusinessRepository interface {
	Create(ctx context.Context, b *domain.Business) error
	GetByID(ctx context.Context, id string) (*domain.Business, error)
	GetByBusinessCode(ctx context.Context, code string) (*domain.Business, error)
	CodeInUse(ctx context.Context, code string) (bool, error)
	UpdateCodes(ctx context.Context, id, businessCode, systemCode string) error
	List(ctx context.Context) ([]domain.Business, error)
}

type PendingMemberRepository interface {
	Create(ctx context.Context, p *domain.PendingMember) error
	GetByID(ctx context.Context, businessID, id string) (*domain.PendingMember, error)
	GetByUser(ctx context.Context, businessID, userID string) (*domain.PendingMember, error)
	ListByBusiness(ctx context.Context, businessID string) ([]domain.PendingMember, error)
	// Delete is a no-op when the record is already gone.
	Delete(ctx context.Context, businessID, id string) error
}

type MemberRepository interface {
	Create(ctx context.Context, m *domain.Member) error
	Get(ctx context.Context, businessID, userID string) (*domain.Member, error)
	ListByBusiness(ctx context.Context, businessID string) ([]domain.Member, error)
	UpdateRole(ctx context.Context, businessID, userID string, role domain.MemberRole) error
}

// Store bundles every repository of one backend.
type Store struct {
	TransactionManager
	Customers     CustomerRepository
	Transactions  CustomerTransactionRepository
	Roles         ApprovalRoleRepository
	ApprovalUsers ApprovalUserRepository
	Businesses    BusinessRepository
	Pending       PendingMemberRepository
	Members       MemberRepository
	closer        func() error
}

// WithCloser attaches the function Close releases.
func (s *Store) WithCloser(fn func() error) *Store {
	s.closer = fn
	return s
}

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
