package postgres

import (
	"context"
	"database/sql"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/repository"
)

type businessRepository struct {
	db *sql.DB
}

func NewBusinessRepository(db *sql.DB) repository.BusinessRepository {
	return &businessRepository{db: db}
}

const businessColumns = `id, name, email, phone, address, owner_user_id, business_code, system_code, created_at`

func scanBusiness(row interface{ Scan(...any) error }) (*domain.Business, error) {
	var b domain.Business
	err := row.Scan(&b.ID, &b.Name, &b.Email, &b.Phone, &b.Address, &b.OwnerUserID, &b.BusinessCode, &b.SystemCode, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *businessRepository) Create(ctx context.Context, b *domain.Business) error {
	query := `INSERT INTO businesses (` + businessColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, b.ID, b.Name, b.Email, b.Phone, b.Address,
		b.OwnerUserID, b.BusinessCode, b.SystemCode, b.CreatedAt)
	return classify(err, nil)
}

func (r *businessRepository) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE id = $1`
	b, err := scanBusiness(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify(err, domain.ErrBusinessNotFound)
	}
	return b, nil
}

func (r *businessRepository) GetByBusinessCode(ctx context.Context, code string) (*domain.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE business_code = $1`
	b, err := scanBusiness(conn(ctx, r.db).QueryRowContext(ctx, query, code))
	if err != nil {
		return nil, classify(err, domain.ErrBusinessNotFound)
	}
	return b, nil
}

// CodeInUse reports whether code is taken as either kind of join code.
func (r *businessRepository) CodeInUse(ctx context.Context, code string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM businesses WHERE business_code = $1 OR system_code = $1)`
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, code).Scan(&exists); err != nil {
		return false, classify(err, nil)
	}
	return exists, nil
}

func (r *businessRepository) UpdateCodes(ctx context.Context, id, businessCode, systemCode string) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE businesses SET business_code = $1, system_code = $2 WHERE id = $3`, businessCode, systemCode, id)
	if err != nil {
		return classify(err, nil)
	}
	return expectOne(res, domain.ErrBusinessNotFound)
}

func (r *businessRepository) List(ctx context.Context) ([]domain.Business, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT `+businessColumns+` FROM businesses ORDER BY created_at, id`)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	var businesses []domain.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, classify(err, nil)
		}
		businesses = append(businesses, *b)
	}
	return businesses, classify(rows.Err(), nil)
}
