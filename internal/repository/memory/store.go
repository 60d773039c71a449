// Package memory is an in-process backend for development and tests.
// Transactions are serialized and rolled back from an undo log.
package memory

import (
	"context"
	"sync"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/repository"
)

type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	customers     map[string]domain.Customer
	transactions  map[string][]domain.CustomerTransaction // ascending sequence
	roles         map[string]domain.ApprovalRole
	approvalUsers map[string]domain.ApprovalUser
	businesses    map[string]domain.Business
	pending       map[string]domain.PendingMember
	members       map[string]domain.Member
}

func New() *Store {
	return &Store{
		customers:     make(map[string]domain.Customer),
		transactions:  make(map[string][]domain.CustomerTransaction),
		roles:         make(map[string]domain.ApprovalRole),
		approvalUsers: make(map[string]domain.ApprovalUser),
		businesses:    make(map[string]domain.Business),
		pending:       make(map[string]domain.PendingMember),
		members:       make(map[string]domain.Member),
	}
}

// NewStore returns the repository bundle backed by a fresh Store.
func NewStore() *repository.Store {
	s := New()
	return &repository.Store{
		TransactionManager: s,
		Customers:          &customerRepo{s},
		Transactions:       &transactionRepo{s},
		Roles:              &roleRepo{s},
		ApprovalUsers:      &approvalUserRepo{s},
		Businesses:         &businessRepo{s},
		Pending:            &pendingRepo{s},
		Members:            &memberRepo{s},
	}
}

func key(parts ...string) string {
	k := parts[0]
	for _, p := range parts[1:] {
		k += "/" + p
	}
	return k
}

type txKey struct{}

type undoLog struct {
	fns []func()
}

// record registers fn to run if the surrounding transaction rolls back.
// Callers hold s.mu.
func record(ctx context.Context, fn func()) {
	if log, ok := ctx.Value(txKey{}).(*undoLog); ok {
		log.fns = append(log.fns, fn)
	}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*undoLog); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	log := &undoLog{}
	rollback := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := len(log.fns) - 1; i >= 0; i-- {
			log.fns[i]()
		}
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		rollback()
	}
	return err
}
