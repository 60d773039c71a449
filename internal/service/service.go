package service

import (
	"context"
	"iter"

	"bizops-backend/internal/domain"
)

type CreditLedgerService interface {
	CreateCustomer(ctx context.Context, c *domain.Customer) error
	GetCustomer(ctx context.Context, businessID, customerID string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, businessID string) ([]domain.Customer, error)
	SetCustomerActive(ctx context.Context, businessID, customerID string, active bool) error
	DeleteCustomer(ctx context.Context, businessID, customerID string) error

	RecordTransaction(ctx context.Context, req RecordTransactionRequest) (*domain.CustomerTransaction, error)
	QueryLedger(ctx context.Context, businessID, customerID string) iter.Seq2[domain.CustomerTransaction, error]
	LedgerHistory(ctx context.Context, businessID, customerID string) (*LedgerHistory, error)
	CreditStatus(ctx context.Context, businessID, customerID string) (*CreditReport, error)
	SetCreditLimit(ctx context.Context, businessID, customerID string, limit int64, actorUserID string) error
}

type ApprovalPolicyService interface {
	CreateRole(ctx context.Context, r *domain.ApprovalRole, actorUserID string) error
	GetRole(ctx context.Context, businessID, roleID string) (*domain.ApprovalRole, error)
	ListRoles(ctx context.Context, businessID string) ([]domain.ApprovalRole, error)
	UpdateRole(ctx context.Context, r *domain.ApprovalRole, actorUserID string) error
	DeleteRole(ctx context.Context, businessID, roleID, actorUserID string) error
	ToggleActive(ctx context.Context, businessID, roleID string, active bool, actorUserID string) (*domain.ApprovalRole, error)

	// AssignUserToRole binds req.UserID on behalf of req.AssignedBy, who
	// must be a business admin.
	AssignUserToRole(ctx context.Context, req AssignRequest) (*domain.ApprovalUser, error)
	UnassignUser(ctx context.Context, businessID, bindingID, actorUserID string) error
	ListRoleUsers(ctx context.Context, businessID, roleID string) ([]domain.ApprovalUser, error)

	ApprovalChecker
}

// ApprovalChecker answers whether a user may approve an action. The ledger
// depends on this slice of the policy engine only.
type ApprovalChecker interface {
	CanApprove(ctx context.Context, businessID, userID string, action domain.ActionType, amount int64) (domain.Decision, error)
}

type MembershipService interface {
	CreateBusiness(ctx context.Context, b *domain.Business, creator Profile) error
	RotateCodes(ctx context.Context, businessID, actorUserID string) (*domain.Business, error)
	JoinBusiness(ctx context.Context, req JoinRequest) (*domain.JoinResult, error)
	ApproveMember(ctx context.Context, businessID, pendingID, actorUserID string) (*domain.Member, error)
	RejectMember(ctx context.Context, businessID, pendingID, actorUserID string) error
	ListPendingMembers(ctx context.Context, businessID, actorUserID string) ([]domain.PendingMember, error)
	ListMembers(ctx context.Context, businessID string) ([]domain.Member, error)
}

// AdminAuthorizer decides whether a caller holds administrative authority
// over a business.
type AdminAuthorizer interface {
	IsBusinessAdmin(ctx context.Context, businessID, userID string) (bool, error)
}

// MemberAuthority is the membership view the approval engine needs: only
// admins manage roles, and only active members may hold one.
type MemberAuthority interface {
	AdminAuthorizer
	IsMember(ctx context.Context, businessID, userID string) (bool, error)
}

// MemberNotifier tells a joiner how their request was resolved.
type MemberNotifier interface {
	NotifyApproved(ctx context.Context, b *domain.Business, m *domain.Member) error
	NotifyRejected(ctx context.Context, b *domain.Business, p *domain.PendingMember) error
}

type RecordTransactionRequest struct {
	BusinessID     string
	CustomerID     string
	Type           domain.TransactionType
	Amount         int64
	Reference      string
	Note           string
	IdempotencyKey string

	// ActorUserID is the caller posting the entry. SecondaryApproverID is
	// required when the actor's authority only reaches the secondary tier.
	ActorUserID         string
	SecondaryApproverID string
}

type LedgerHistory struct {
	Transactions []domain.CustomerTransaction `json:"transactions"`
	// Degraded is set when the backend was unavailable and Transactions is
	// the last history read successfully, possibly empty.
	Degraded bool `json:"degraded"`
}

type CreditReport struct {
	CustomerID  string              `json:"customer_id"`
	CreditLimit int64               `json:"credit_limit"`
	CreditUsed  int64               `json:"credit_used"`
	Utilization string              `json:"utilization"`
	Status      domain.CreditStatus `json:"status"`
	OverLimit   bool                `json:"over_limit"`
}

type AssignRequest struct {
	BusinessID string
	RoleID     string
	UserID     string
	UserName   string
	UserEmail  string
	AssignedBy string
}

// Profile identifies the person behind a membership operation.
type Profile struct {
	UserID    string
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type JoinRequest struct {
	Code          string
	RequestedRole domain.MemberRole
	SystemCode    string
	Profile
}
