package memory_test

import (
	"context"
	"errors"
	"testing"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTx_RollsBackEveryWrite(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Customers.Create(ctx, &domain.Customer{ID: "c1", BusinessID: "b1", Name: "Acme", IsActive: true}))

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(ctx context.Context) error {
		c, err := store.Customers.GetByID(ctx, "b1", "c1")
		if err != nil {
			return err
		}
		c.CreditUsed = 900
		if err := store.Customers.UpdateBalance(ctx, c, c.Version); err != nil {
			return err
		}
		if err := store.Transactions.Append(ctx, &domain.CustomerTransaction{
			ID: "t1", BusinessID: "b1", CustomerID: "c1", Type: domain.TransactionTypeInvoice, Amount: 900, Sequence: c.Version,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	c, err := store.Customers.GetByID(ctx, "b1", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.CreditUsed)
	assert.Equal(t, int64(0), c.Version)

	count := 0
	for _, err := range store.Transactions.Stream(ctx, "b1", "c1") {
		require.NoError(t, err)
		count++
	}
	assert.Zero(t, count)
}

func TestCustomerRepo_UpdateBalanceVersionCheck(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Customers.Create(ctx, &domain.Customer{ID: "c1", BusinessID: "b1", Version: 2}))

	c := &domain.Customer{ID: "c1", BusinessID: "b1", CreditUsed: 100}
	assert.ErrorIs(t, store.Customers.UpdateBalance(ctx, c, 1), domain.ErrConflict)
	require.NoError(t, store.Customers.UpdateBalance(ctx, c, 2))
	assert.Equal(t, int64(3), c.Version)
}

func TestTransactionRepo_StreamOrderAndUniqueness(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	for _, seq := range []int64{2, 1, 3} {
		require.NoError(t, store.Transactions.Append(ctx, &domain.CustomerTransaction{
			ID: string(rune('a' + seq)), BusinessID: "b1", CustomerID: "c1", Sequence: seq,
		}))
	}
	assert.ErrorIs(t, store.Transactions.Append(ctx, &domain.CustomerTransaction{
		ID: "dup", BusinessID: "b1", CustomerID: "c1", Sequence: 2,
	}), domain.ErrAlreadyExists)

	var seqs []int64
	for tx, err := range store.Transactions.Stream(ctx, "b1", "c1") {
		require.NoError(t, err)
		seqs = append(seqs, tx.Sequence)
	}
	assert.Equal(t, []int64{3, 2, 1}, seqs)
}

func TestApprovalUserRepo_OneActiveBinding(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	require.NoError(t, store.ApprovalUsers.Create(ctx, &domain.ApprovalUser{ID: "a1", BusinessID: "b1", UserID: "u1", RoleID: "r1", IsActive: true}))
	assert.ErrorIs(t, store.ApprovalUsers.Create(ctx, &domain.ApprovalUser{ID: "a2", BusinessID: "b1", UserID: "u1", RoleID: "r2", IsActive: true}), domain.ErrAlreadyExists)

	require.NoError(t, store.ApprovalUsers.Deactivate(ctx, "b1", "a1"))
	assert.NoError(t, store.ApprovalUsers.Create(ctx, &domain.ApprovalUser{ID: "a2", BusinessID: "b1", UserID: "u1", RoleID: "r2", IsActive: true}))

	active, err := store.ApprovalUsers.GetActiveByUser(ctx, "b1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "r2", active.RoleID)
}

func TestCustomerRepo_DeleteRequiresZeroBalance(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Customers.Create(ctx, &domain.Customer{ID: "c1", BusinessID: "b1", CreditUsed: 50}))

	assert.ErrorIs(t, store.Customers.Delete(ctx, "b1", "c1"), domain.ErrOutstandingDebt)
	assert.ErrorIs(t, store.Customers.Delete(ctx, "b1", "nope"), domain.ErrCustomerNotFound)
}

func TestMemberRepo_UpdateRoleRollsBack(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Members.Create(ctx, &domain.Member{
		BusinessID: "b1", UserID: "u1", Role: domain.MemberRoleSalesRep, Status: domain.MemberStatusActive,
	}))

	assert.ErrorIs(t, store.Members.UpdateRole(ctx, "b1", "nobody", domain.MemberRoleAdmin), domain.ErrMemberNotFound)

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(ctx context.Context) error {
		if err := store.Members.UpdateRole(ctx, "b1", "u1", domain.MemberRoleAdmin); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	m, err := store.Members.Get(ctx, "b1", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberRoleSalesRep, m.Role)

	require.NoError(t, store.Members.UpdateRole(ctx, "b1", "u1", domain.MemberRoleAdmin))
	m, err = store.Members.Get(ctx, "b1", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberRoleAdmin, m.Role)
}
