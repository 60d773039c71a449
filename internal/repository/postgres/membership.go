package postgres

import (
	"context"
	"database/sql"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/repository"
)

type pendingMemberRepository struct {
	db *sql.DB
}

func NewPendingMemberRepository(db *sql.DB) repository.PendingMemberRepository {
	return &pendingMemberRepository{db: db}
}

const pendingColumns = `id, business_id, user_id, first_name, last_name, email, phone, requested_role, joined_at`

func scanPending(row interface{ Scan(...any) error }) (*domain.PendingMember, error) {
	var p domain.PendingMember
	err := row.Scan(&p.ID, &p.BusinessID, &p.UserID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.RequestedRole, &p.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *pendingMemberRepository) Create(ctx context.Context, p *domain.PendingMember) error {
	query := `INSERT INTO pending_members (` + pendingColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, p.ID, p.BusinessID, p.UserID, p.FirstName, p.LastName,
		p.Email, p.Phone, p.RequestedRole, p.JoinedAt)
	return classify(err, nil)
}

func (r *pendingMemberRepository) GetByID(ctx context.Context, businessID, id string) (*domain.PendingMember, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_members WHERE business_id = $1 AND id = $2`
	p, err := scanPending(conn(ctx, r.db).QueryRowContext(ctx, query, businessID, id))
	if err != nil {
		return nil, classify(err, domain.ErrMemberNotFound)
	}
	return p, nil
}

func (r *pendingMemberRepository) GetByUser(ctx context.Context, businessID, userID string) (*domain.PendingMember, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_members WHERE business_id = $1 AND user_id = $2`
	p, err := scanPending(conn(ctx, r.db).QueryRowContext(ctx, query, businessID, userID))
	if err != nil {
		return nil, classify(err, domain.ErrMemberNotFound)
	}
	return p, nil
}

func (r *pendingMemberRepository) ListByBusiness(ctx context.Context, businessID string) ([]domain.PendingMember, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_members WHERE business_id = $1 ORDER BY joined_at`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	var pending []domain.PendingMember
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, classify(err, nil)
		}
		pending = append(pending, *p)
	}
	return pending, classify(rows.Err(), nil)
}

func (r *pendingMemberRepository) Delete(ctx context.Context, businessID, id string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM pending_members WHERE business_id = $1 AND id = $2`, businessID, id)
	return classify(err, nil)
}

type memberRepository struct {
	db *sql.DB
}

func NewMemberRepository(db *sql.DB) repository.MemberRepository {
	return &memberRepository{db: db}
}

const memberColumns = `business_id, user_id, first_name, last_name, email, phone, role, status, approved_by, joined_at`

func scanMember(row interface{ Scan(...any) error }) (*domain.Member, error) {
	var m domain.Member
	err := row.Scan(&m.BusinessID, &m.UserID, &m.FirstName, &m.LastName, &m.Email, &m.Phone, &m.Role, &m.Status, &m.ApprovedBy, &m.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *memberRepository) Create(ctx context.Context, m *domain.Member) error {
	query := `INSERT INTO members (` + memberColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, m.BusinessID, m.UserID, m.FirstName, m.LastName, m.Email,
		m.Phone, m.Role, m.Status, m.ApprovedBy, m.JoinedAt)
	return classify(err, nil)
}

func (r *memberRepository) Get(ctx context.Context, businessID, userID string) (*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE business_id = $1 AND user_id = $2`
	m, err := scanMember(conn(ctx, r.db).QueryRowContext(ctx, query, businessID, userID))
	if err != nil {
		return nil, classify(err, domain.ErrMemberNotFound)
	}
	return m, nil
}

func (r *memberRepository) UpdateRole(ctx context.Context, businessID, userID string, role domain.MemberRole) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE members SET role = $1 WHERE business_id = $2 AND user_id = $3`,
		role, businessID, userID)
	if err != nil {
		return classify(err, nil)
	}
	return expectOne(res, domain.ErrMemberNotFound)
}

func (r *memberRepository) ListByBusiness(ctx context.Context, businessID string) ([]domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE business_id = $1 ORDER BY joined_at, user_id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, classify(err, nil)
		}
		members = append(members, *m)
	}
	return members, classify(rows.Err(), nil)
}
