// Package firestore stores businesses and everything they own as
// subcollections under businesses/{businessID}.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/repository"
)

type Config struct {
	ProjectID       string
	CredentialsFile string
}

type Store struct {
	client *firestore.Client
}

// Open initialises a Firebase app and returns its Firestore client. An
// empty CredentialsFile falls back to application default credentials,
// which also covers FIRESTORE_EMULATOR_HOST.
func Open(ctx context.Context, cfg Config) (*firestore.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", classify(err, nil))
	}
	return client, nil
}

// Ping reads at most one business to prove the client can reach Firestore.
func Ping(ctx context.Context, client *firestore.Client) error {
	it := client.Collection("businesses").Limit(1).Documents(ctx)
	defer it.Stop()
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return classify(err, nil)
	}
	return nil
}

func NewStore(client *firestore.Client) *repository.Store {
	s := &Store{client: client}
	rs := &repository.Store{
		TransactionManager: s,
		Customers:          &customerRepo{s},
		Transactions:       &transactionRepo{s},
		Roles:              &roleRepo{s},
		ApprovalUsers:      &approvalUserRepo{s},
		Businesses:         &businessRepo{s},
		Pending:            &pendingRepo{s},
		Members:            &memberRepo{s},
	}
	return rs.WithCloser(client.Close)
}

type txKey struct{}

func txFrom(ctx context.Context) *firestore.Transaction {
	tx, _ := ctx.Value(txKey{}).(*firestore.Transaction)
	return tx
}

// RunInTx runs fn in a Firestore transaction. Firestore requires every read
// to precede the first write, so callers read before they mutate.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	return classify(err, nil)
}

// write runs fn in the caller's transaction or in a fresh one.
func (s *Store) write(ctx context.Context, fn func(tx *firestore.Transaction) error) error {
	if tx := txFrom(ctx); tx != nil {
		return fn(tx)
	}
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(tx)
	})
	return classify(err, nil)
}

func (s *Store) get(ctx context.Context, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	if tx := txFrom(ctx); tx != nil {
		return tx.Get(ref)
	}
	return ref.Get(ctx)
}

func (s *Store) documents(ctx context.Context, q firestore.Query) *firestore.DocumentIterator {
	if tx := txFrom(ctx); tx != nil {
		return tx.Documents(q)
	}
	return q.Documents(ctx)
}

func (s *Store) business(id string) *firestore.DocumentRef {
	return s.client.Collection("businesses").Doc(id)
}

func (s *Store) sub(businessID, collection string) *firestore.CollectionRef {
	return s.business(businessID).Collection(collection)
}

// classify maps gRPC status codes onto the domain taxonomy.
func classify(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrBackendUnavailable) {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		if notFound != nil {
			return notFound
		}
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", domain.ErrAlreadyExists, err)
	case codes.Aborted, codes.FailedPrecondition:
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return err
}
