package domain

import (
	"strings"
	"time"
)

type ActionType string

const (
	ActionOrders    ActionType = "orders"
	ActionCredit    ActionType = "credit"
	ActionTransfers ActionType = "transfers"
)

// Valid reports whether a is a known approval action.
func (a ActionType) Valid() bool {
	switch a {
	case ActionOrders, ActionCredit, ActionTransfers:
		return true
	}
	return false
}

type ApprovalRole struct {
	ID                        string    `json:"id"`
	BusinessID                string    `json:"business_id"`
	Name                      string    `json:"name"`
	Description               string    `json:"description"`
	CanApproveOrders          bool      `json:"can_approve_orders"`
	CanApproveCredit          bool      `json:"can_approve_credit"`
	CanApproveTransfers       bool      `json:"can_approve_transfers"`
	MaxApprovalAmount         int64     `json:"max_approval_amount"`
	RequiresSecondaryApproval bool      `json:"requires_secondary_approval"`
	SecondaryApprovalAmount   int64     `json:"secondary_approval_amount"`
	IsActive                  bool      `json:"is_active"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// Permits reports whether the role carries the flag for action.
func (r *ApprovalRole) Permits(action ActionType) bool {
	switch action {
	case ActionOrders:
		return r.CanApproveOrders
	case ActionCredit:
		return r.CanApproveCredit
	case ActionTransfers:
		return r.CanApproveTransfers
	}
	return false
}

// Validate checks the role's name and thresholds.
func (r *ApprovalRole) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewValidationError("name", "must not be empty")
	}
	if r.MaxApprovalAmount < 0 {
		return NewValidationError("max_approval_amount", "must not be negative")
	}
	if r.SecondaryApprovalAmount < 0 {
		return NewValidationError("secondary_approval_amount", "must not be negative")
	}
	if r.RequiresSecondaryApproval && r.SecondaryApprovalAmount < r.MaxApprovalAmount {
		return NewValidationError("secondary_approval_amount", "must be at least max_approval_amount")
	}
	return nil
}

// ApprovalUser binds a business member to an approval role. RoleID is a
// weak reference; the role's active flag is always read at decision time.
type ApprovalUser struct {
	ID         string    `json:"id"`
	BusinessID string    `json:"business_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	UserEmail  string    `json:"user_email"`
	RoleID     string    `json:"role_id"`
	AssignedAt time.Time `json:"assigned_at"`
	AssignedBy string    `json:"assigned_by"`
	IsActive   bool      `json:"is_active"`
}
