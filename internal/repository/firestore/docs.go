package firestore

import (
	"time"

	"bizops-backend/internal/domain"
)

type customerDoc struct {
	Name        string    `firestore:"name"`
	Email       string    `firestore:"email"`
	Phone       string    `firestore:"phone"`
	Address     string    `firestore:"address"`
	CreditLimit int64     `firestore:"creditLimit"`
	CreditUsed  int64     `firestore:"creditUsed"`
	TotalSpent  int64     `firestore:"totalSpent"`
	IsActive    bool      `firestore:"isActive"`
	Version     int64     `firestore:"version"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func toCustomerDoc(c *domain.Customer) customerDoc {
	return customerDoc{
		Name: c.Name, Email: c.Email, Phone: c.Phone, Address: c.Address,
		CreditLimit: c.CreditLimit, CreditUsed: c.CreditUsed, TotalSpent: c.TotalSpent,
		IsActive: c.IsActive, Version: c.Version, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func (d customerDoc) toDomain(businessID, id string) *domain.Customer {
	return &domain.Customer{
		ID: id, BusinessID: businessID, Name: d.Name, Email: d.Email, Phone: d.Phone, Address: d.Address,
		CreditLimit: d.CreditLimit, CreditUsed: d.CreditUsed, TotalSpent: d.TotalSpent,
		IsActive: d.IsActive, Version: d.Version, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

type transactionDoc struct {
	ID             string    `firestore:"id"`
	Type           string    `firestore:"type"`
	Amount         int64     `firestore:"amount"`
	BalanceAfter   int64     `firestore:"balanceAfter"`
	Reference      string    `firestore:"reference"`
	Note           string    `firestore:"note"`
	IdempotencyKey string    `firestore:"idempotencyKey,omitempty"`
	Sequence       int64     `firestore:"sequence"`
	RecordedBy     string    `firestore:"recordedBy"`
	CreatedAt      time.Time `firestore:"createdAt,serverTimestamp"`
}

func toTransactionDoc(t *domain.CustomerTransaction) transactionDoc {
	return transactionDoc{
		ID: t.ID, Type: string(t.Type), Amount: t.Amount, BalanceAfter: t.BalanceAfter,
		Reference: t.Reference, Note: t.Note, IdempotencyKey: t.IdempotencyKey,
		Sequence: t.Sequence, RecordedBy: t.RecordedBy, CreatedAt: t.CreatedAt,
	}
}

func (d transactionDoc) toDomain(businessID, customerID string) domain.CustomerTransaction {
	return domain.CustomerTransaction{
		ID: d.ID, BusinessID: businessID, CustomerID: customerID, Type: domain.TransactionType(d.Type),
		Amount: d.Amount, BalanceAfter: d.BalanceAfter, Reference: d.Reference, Note: d.Note,
		IdempotencyKey: d.IdempotencyKey, Sequence: d.Sequence, RecordedBy: d.RecordedBy, CreatedAt: d.CreatedAt,
	}
}

type roleDoc struct {
	Name                      string    `firestore:"name"`
	Description               string    `firestore:"description"`
	CanApproveOrders          bool      `firestore:"canApproveOrders"`
	CanApproveCredit          bool      `firestore:"canApproveCredit"`
	CanApproveTransfers       bool      `firestore:"canApproveTransfers"`
	MaxApprovalAmount         int64     `firestore:"maxApprovalAmount"`
	RequiresSecondaryApproval bool      `firestore:"requiresSecondaryApproval"`
	SecondaryApprovalAmount   int64     `firestore:"secondaryApprovalAmount"`
	IsActive                  bool      `firestore:"isActive"`
	CreatedAt                 time.Time `firestore:"createdAt"`
	UpdatedAt                 time.Time `firestore:"updatedAt"`
}

func toRoleDoc(r *domain.ApprovalRole) roleDoc {
	return roleDoc{
		Name: r.Name, Description: r.Description, CanApproveOrders: r.CanApproveOrders,
		CanApproveCredit: r.CanApproveCredit, CanApproveTransfers: r.CanApproveTransfers,
		MaxApprovalAmount: r.MaxApprovalAmount, RequiresSecondaryApproval: r.RequiresSecondaryApproval,
		SecondaryApprovalAmount: r.SecondaryApprovalAmount, IsActive: r.IsActive,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func (d roleDoc) toDomain(businessID, id string) *domain.ApprovalRole {
	return &domain.ApprovalRole{
		ID: id, BusinessID: businessID, Name: d.Name, Description: d.Description,
		CanApproveOrders: d.CanApproveOrders, CanApproveCredit: d.CanApproveCredit,
		CanApproveTransfers: d.CanApproveTransfers, MaxApprovalAmount: d.MaxApprovalAmount,
		RequiresSecondaryApproval: d.RequiresSecondaryApproval, SecondaryApprovalAmount: d.SecondaryApprovalAmount,
		IsActive: d.IsActive, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

type approvalUserDoc struct {
	UserID     string    `firestore:"userId"`
	UserName   string    `firestore:"userName"`
	UserEmail  string    `firestore:"userEmail"`
	RoleID     string    `firestore:"roleId"`
	AssignedAt time.Time `firestore:"assignedAt"`
	AssignedBy string    `firestore:"assignedBy"`
	IsActive   bool      `firestore:"isActive"`
}

func (d approvalUserDoc) toDomain(businessID, id string) *domain.ApprovalUser {
	return &domain.ApprovalUser{
		ID: id, BusinessID: businessID, UserID: d.UserID, UserName: d.UserName, UserEmail: d.UserEmail,
		RoleID: d.RoleID, AssignedAt: d.AssignedAt, AssignedBy: d.AssignedBy, IsActive: d.IsActive,
	}
}

type businessDoc struct {
	Name         string    `firestore:"name"`
	Email        string    `firestore:"email"`
	Phone        string    `firestore:"phone"`
	Address      string    `firestore:"address"`
	OwnerUserID  string    `firestore:"ownerUserId"`
	BusinessCode string    `firestore:"businessCode"`
	SystemCode   string    `firestore:"systemCode"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

func (d businessDoc) toDomain(id string) *domain.Business {
	return &domain.Business{
		ID: id, Name: d.Name, Email: d.Email, Phone: d.Phone, Address: d.Address,
		OwnerUserID: d.OwnerUserID, BusinessCode: d.BusinessCode, SystemCode: d.SystemCode, CreatedAt: d.CreatedAt,
	}
}

// codeDoc reserves a join code across all businesses.
type codeDoc struct {
	BusinessID string `firestore:"businessId"`
	Kind       string `firestore:"kind"`
}

const (
	codeKindBusiness = "business"
	codeKindSystem   = "system"
)

type pendingDoc struct {
	UserID        string    `firestore:"userId"`
	FirstName     string    `firestore:"firstName"`
	LastName      string    `firestore:"lastName"`
	Email         string    `firestore:"email"`
	Phone         string    `firestore:"phone"`
	RequestedRole string    `firestore:"requestedRole"`
	JoinedAt      time.Time `firestore:"joinedAt"`
}

func (d pendingDoc) toDomain(businessID, id string) *domain.PendingMember {
	return &domain.PendingMember{
		ID: id, BusinessID: businessID, UserID: d.UserID, FirstName: d.FirstName, LastName: d.LastName,
		Email: d.Email, Phone: d.Phone, RequestedRole: domain.MemberRole(d.RequestedRole), JoinedAt: d.JoinedAt,
	}
}

type memberDoc struct {
	FirstName  string    `firestore:"firstName"`
	LastName   string    `firestore:"lastName"`
	Email      string    `firestore:"email"`
	Phone      string    `firestore:"phone"`
	Role       string    `firestore:"role"`
	Status     string    `firestore:"status"`
	ApprovedBy string    `firestore:"approvedBy"`
	JoinedAt   time.Time `firestore:"joinedAt"`
}

func (d memberDoc) toDomain(businessID, userID string) *domain.Member {
	return &domain.Member{
		BusinessID: businessID, UserID: userID, FirstName: d.FirstName, LastName: d.LastName, Email: d.Email,
		Phone: d.Phone, Role: domain.MemberRole(d.Role), Status: domain.MemberStatus(d.Status),
		ApprovedBy: d.ApprovedBy, JoinedAt: d.JoinedAt,
	}
}
