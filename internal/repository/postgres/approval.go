package postgres

import (
	"context"
	"database/sql"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/repository"
)

type approvalRoleRepository struct {
	db *sql.DB
}

func NewApprovalRoleRepository(db *sql.DB) repository.ApprovalRoleRepository {
	return &approvalRoleRepository{db: db}
}

const roleColumns = `id, business_id, name, description, can_approve_orders, can_approve_credit, can_approve_transfers,
	max_approval_amount, requires_secondary_approval, secondary_approval_amount, is_active, created_at, updated_at`

func scanRole(row interface{ Scan(...any) error }) (*domain.ApprovalRole, error) {
	var r domain.ApprovalRole
	err := row.Scan(&r.ID, &r.BusinessID, &r.Name, &r.Description, &r.CanApproveOrders, &r.CanApproveCredit,
		&r.CanApproveTransfers, &r.MaxApprovalAmount, &r.RequiresSecondaryApproval, &r.SecondaryApprovalAmount,
		&r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *approvalRoleRepository) Create(ctx context.Context, role *domain.ApprovalRole) error {
	query := `INSERT INTO approval_roles (` + roleColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, role.ID, role.BusinessID, role.Name, role.Description,
		role.CanApproveOrders, role.CanApproveCredit, role.CanApproveTransfers, role.MaxApprovalAmount,
		role.RequiresSecondaryApproval, role.SecondaryApprovalAmount, role.IsActive, role.CreatedAt, role.UpdatedAt)
	return classify(err, nil)
}

func (r *approvalRoleRepository) GetByID(ctx context.Context, businessID, id string) (*domain.ApprovalRole, error) {
	query := `SELECT ` + roleColumns + ` FROM approval_roles WHERE business_id = $1 AND id = $2`
	role, err := scanRole(conn(ctx, r.db).QueryRowContext(ctx, query, businessID, id))
	if err != nil {
		return nil, classify(err, domain.ErrRoleNotFound)
	}
	return role, nil
}

func (r *approvalRoleRepository) List(ctx context.Context, businessID string) ([]domain.ApprovalRole, error) {
	query := `SELECT ` + roleColumns + ` FROM approval_roles WHERE business_id = $1 ORDER BY name, id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	var roles []domain.ApprovalRole
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, classify(err, nil)
		}
		roles = append(roles, *role)
	}
	return roles, classify(rows.Err(), nil)
}

func (r *approvalRoleRepository) Update(ctx context.Context, role *domain.ApprovalRole) error {
	query := `UPDATE approval_roles SET name = $1, description = $2, can_approve_orders = $3, can_approve_credit = $4,
	          can_approve_transfers = $5, max_approval_amount = $6, requires_secondary_approval = $7,
	          secondary_approval_amount = $8, is_active = $9, updated_at = $10
	          WHERE business_id = $11 AND id = $12`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, role.Name, role.Description, role.CanApproveOrders,
		role.CanApproveCredit, role.CanApproveTransfers, role.MaxApprovalAmount, role.RequiresSecondaryApproval,
		role.SecondaryApprovalAmount, role.IsActive, role.UpdatedAt, role.BusinessID, role.ID)
	if err != nil {
		return classify(err, nil)
	}
	return expectOne(res, domain.ErrRoleNotFound)
}

func (r *approvalRoleRepository) Delete(ctx context.Context, businessID, id string) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM approval_roles WHERE business_id = $1 AND id = $2`, businessID, id)
	if err != nil {
		return classify(err, nil)
	}
	return expectOne(res, domain.ErrRoleNotFound)
}

type approvalUserRepository struct {
	db *sql.DB
}

func NewApprovalUserRepository(db *sql.DB) repository.ApprovalUserRepository {
	return &approvalUserRepository{db: db}
}

const approvalUserColumns = `id, business_id, user_id, user_name, user_email, role_id, assigned_at, assigned_by, is_active`

func scanApprovalUser(row interface{ Scan(...any) error }) (*domain.ApprovalUser, error) {
	var u domain.ApprovalUser
	err := row.Scan(&u.ID, &u.BusinessID, &u.UserID, &u.UserName, &u.UserEmail, &u.RoleID, &u.AssignedAt, &u.AssignedBy, &u.IsActive)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a binding. The partial unique index on active bindings
// surfaces a second active binding for the same user as ErrAlreadyExists.
func (r *approvalUserRepository) Create(ctx context.Context, u *domain.ApprovalUser) error {
	query := `INSERT INTO approval_users (` + approvalUserColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := conn(ctx, r.db).ExecContext(ctx, query, u.ID, u.BusinessID, u.UserID, u.UserName, u.UserEmail,
		u.RoleID, u.AssignedAt, u.AssignedBy, u.IsActive)
	return classify(err, nil)
}

func (r *approvalUserRepository) GetByID(ctx context.Context, businessID, id string) (*domain.ApprovalUser, error) {
	query := `SELECT ` + approvalUserColumns + ` FROM approval_users WHERE business_id = $1 AND id = $2`
	u, err := scanApprovalUser(conn(ctx, r.db).QueryRowContext(ctx, query, businessID, id))
	if err != nil {
		return nil, classify(err, domain.ErrBindingNotFound)
	}
	return u, nil
}

func (r *approvalUserRepository) GetActiveByUser(ctx context.Context, businessID, userID string) (*domain.ApprovalUser, error) {
	query := `SELECT ` + approvalUserColumns + ` FROM approval_users
	          WHERE business_id = $1 AND user_id = $2 AND is_active`
	u, err := scanApprovalUser(conn(ctx, r.db).QueryRowContext(ctx, query, businessID, userID))
	if err != nil {
		return nil, classify(err, domain.ErrBindingNotFound)
	}
	return u, nil
}

func (r *approvalUserRepository) ListByRole(ctx context.Context, businessID, roleID string) ([]domain.ApprovalUser, error) {
	query := `SELECT ` + approvalUserColumns + ` FROM approval_users
	          WHERE business_id = $1 AND role_id = $2 AND is_active ORDER BY assigned_at`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, businessID, roleID)
	if err != nil {
		return nil, classify(err, nil)
	}
	defer rows.Close()

	var users []domain.ApprovalUser
	for rows.Next() {
		u, err := scanApprovalUser(rows)
		if err != nil {
			return nil, classify(err, nil)
		}
		users = append(users, *u)
	}
	return users, classify(rows.Err(), nil)
}

func (r *approvalUserRepository) Deactivate(ctx context.Context, businessID, id string) error {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE approval_users SET is_active = false WHERE business_id = $1 AND id = $2 AND is_active`, businessID, id)
	if err != nil {
		return classify(err, nil)
	}
	return expectOne(res, domain.ErrBindingNotFound)
}
