package domain

import "time"

type MemberRole string

const (
	MemberRoleAdmin     MemberRole = "admin"
	MemberRoleManager   MemberRole = "manager"
	MemberRoleSalesRep  MemberRole = "sales_rep"
	MemberRoleInventory MemberRole = "inventory_clerk"
	MemberRoleViewer    MemberRole = "viewer"
)

// Valid reports whether r is a role a member may request.
func (r MemberRole) Valid() bool {
	switch r {
	case MemberRoleAdmin, MemberRoleManager, MemberRoleSalesRep, MemberRoleInventory, MemberRoleViewer:
		return true
	}
	return false
}

// Business holds the two join secrets. BusinessCode admits members into
// the pending queue; SystemCode elevates a joiner straight to admin.
type Business struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Address      string    `json:"address"`
	OwnerUserID  string    `json:"owner_user_id"`
	BusinessCode string    `json:"business_code"`
	SystemCode   string    `json:"system_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type PendingMember struct {
	ID            string     `json:"id"`
	BusinessID    string     `json:"business_id"`
	UserID        string     `json:"user_id"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	RequestedRole MemberRole `json:"requested_role"`
	JoinedAt      time.Time  `json:"joined_at"`
}

type MemberStatus string

const (
	MemberStatusActive MemberStatus = "ACTIVE"
)

type Member struct {
	BusinessID string       `json:"business_id"`
	UserID     string       `json:"user_id"`
	FirstName  string       `json:"first_name"`
	LastName   string       `json:"last_name"`
	Email      string       `json:"email"`
	Phone      string       `json:"phone,omitempty"`
	Role       MemberRole   `json:"role"`
	Status     MemberStatus `json:"status"`
	ApprovedBy string       `json:"approved_by,omitempty"`
	JoinedAt   time.Time    `json:"joined_at"`
}

func (m *Member) FullName() string {
	if m.LastName == "" {
		return m.FirstName
	}
	return m.FirstName + " " + m.LastName
}

// JoinOutcome tells the caller whether a join produced an active member
// or a provisional request awaiting approval.
type JoinOutcome string

const (
	JoinOutcomeActive  JoinOutcome = "active"
	JoinOutcomePending JoinOutcome = "pending"
)

type JoinResult struct {
	Outcome JoinOutcome    `json:"outcome"`
	Member  *Member        `json:"member,omitempty"`
	Pending *PendingMember `json:"pending,omitempty"`
}
