package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/logger"
	"bizops-backend/internal/repository"
)

type customerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) repository.CustomerRepository {
	return &customerRepository{db: db}
}

const customerColumns = `id, business_id, name, email, phone, address, credit_limit, credit_used, total_spent, is_active, version, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.BusinessID, &c.Name, &c.Email, &c.Phone, &c.Address,
		&c.CreditLimit, &c.CreditUsed, &c.TotalSpent, &c.IsActive, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *customerRepository) Create(ctx context.Context, c *domain.Customer) error {
	query := `INSERT INTO customers (` + customerColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, c.ID, c.BusinessID, c.Name, c.Email, c.Phone, c.Address,
		c.CreditLimit, c.CreditUsed, c.TotalSpent, c.IsActive, c.Version, c.CreatedAt, c.UpdatedAt)
	return classify(err, nil)
}

func (r *customerRepository) GetByID(ctx context.Context, businessID, id string) (*domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE business_id = $1 AND id = $2`
	c, err := scanCustomer(conn(ctx, r.db).QueryRowContext(ctx, query, businessID, id))
	if err != nil {
		return nil, classify(err, domain.ErrCustomerNotFound)
	}
	return c, nil
}

func (r *customerRepository) List(ctx context.Context, businessID string) ([]domain.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE business_id = $1 ORDER BY name, id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, classify(err, nil)
		}
		customers = append(customers, *c)
	}
	return customers, classify(rows.Err(), nil)
}

func (r *customerRepository) UpdateBalance(ctx context.Context, c *domain.Customer, expectedVersion int64) error {
	query := `UPDATE customers SET credit_used = $1, total_spent = $2, version = version + 1, updated_at = $3
	          WHERE business_id = $4 AND id = $5 AND version = $6`
	logger.DatabaseCall("customerRepository.UpdateBalance", query, "customerID", c.ID, "expectedVersion", expectedVersion)
	res, err := conn(ctx, r.db).ExecContext(ctx, query, c.CreditUsed, c.TotalSpent, c.UpdatedAt, c.BusinessID, c.ID, expectedVersion)
	if err != nil {
		err = classify(err, nil)
		logger.DatabaseResult("customerRepository.UpdateBalance", 0, err, "customerID", c.ID)
		return err
	}
	if err := expectOne(res, domain.ErrConflict); err != nil {
		return fmt.Errorf("customer %s moved past version %d: %w", c.ID, expectedVersion, err)
	}
	c.Version = expectedVersion + 1
	return nil
}

func (r *customerRepository) UpdateCreditLimit(ctx context.Context, businessID, id string, limit int64) error {
	query := `UPDATE customers SET credit_limit = $1, updated_at = now() WHERE business_id = $2 AND id = $3`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, limit, businessID, id)
	if err != nil {
		return classify(err, nil)
	}
	return expectOne(res, domain.ErrCustomerNotFound)
}

func (r *customerRepository) SetActive(ctx context.Context, businessID, id string, active bool) error {
	query := `UPDATE customers SET is_active = $1, updated_at = now() WHERE business_id = $2 AND id = $3`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, active, businessID, id)
	if err != nil {
		return classify(err, nil)
	}
	return expectOne(res, domain.ErrCustomerNotFound)
}

// Delete removes a customer that owes nothing. Ledger rows go with it
// through the foreign key cascade.
func (r *customerRepository) Delete(ctx context.Context, businessID, id string) error {
	db := conn(ctx, r.db)
	res, err := db.ExecContext(ctx, `DELETE FROM customers WHERE business_id = $1 AND id = $2 AND credit_used = 0`, businessID, id)
	if err != nil {
		return classify(err, nil)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return classify(err, nil)
	}

	var used int64
	err = db.QueryRowContext(ctx, `SELECT credit_used FROM customers WHERE business_id = $1 AND id = $2`, businessID, id).Scan(&used)
	if err != nil {
		return classify(err, domain.ErrCustomerNotFound)
	}
	return domain.ErrOutstandingDebt
}
