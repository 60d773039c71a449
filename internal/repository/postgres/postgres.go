package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/repository"

	"github.com/lib/pq"
)

// dbtx is the subset of *sql.DB and *sql.Tx the repositories need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn returns the transaction carried by ctx, or db when there is none.
func conn(ctx context.Context, db *sql.DB) dbtx {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", classify(err, nil))
	}
	return db, nil
}

func NewStore(db *sql.DB) *repository.Store {
	s := &repository.Store{
		TransactionManager: NewTxManager(db),
		Customers:          NewCustomerRepository(db),
		Transactions:       NewCustomerTransactionRepository(db),
		Roles:              NewApprovalRoleRepository(db),
		ApprovalUsers:      NewApprovalUserRepository(db),
		Businesses:         NewBusinessRepository(db),
		Pending:            NewPendingMemberRepository(db),
		Members:            NewMemberRepository(db),
	}
	return s.WithCloser(db.Close)
}

// classify maps driver errors onto the domain taxonomy. notFound is
// returned for sql.ErrNoRows and may be nil when no row is not an error.
func classify(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) && notFound != nil {
		return notFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, pqErr.Message)
		case pqErr.Code.Class() == "40":
			// serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s", domain.ErrConflict, pqErr.Message)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "53", pqErr.Code.Class() == "57":
			return fmt.Errorf("%w: %s", domain.ErrBackendUnavailable, pqErr.Message)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return err
}

// expectOne turns a zero-row UPDATE or DELETE into notFound.
func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, nil)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
