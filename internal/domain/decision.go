package domain

import "fmt"

// Outcome is the result class of an approval check.
type Outcome int

const (
	// Denied means the user has no authority for the action at this amount.
	Denied Outcome = iota

	// Approved means the user's primary authority covers the amount.
	Approved

	// NeedsSecondaryApproval means the amount is above the primary
	// threshold but within the secondary ceiling; a second qualifying
	// approver must also sign off.
	NeedsSecondaryApproval
)

func (o Outcome) String() string {
	switch o {
	case Approved:
		return "approved"
	case NeedsSecondaryApproval:
		return "needs-secondary-approval"
	default:
		return "denied"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "approved":
		*o = Approved
	case "needs-secondary-approval":
		*o = NeedsSecondaryApproval
	case "denied":
		*o = Denied
	default:
		return fmt.Errorf("unknown approval outcome %q", b)
	}
	return nil
}

// DenyReason explains a Denied outcome.
type DenyReason string

const (
	ReasonNone            DenyReason = ""
	ReasonNoBinding       DenyReason = "no active approval role"
	ReasonRoleMissing     DenyReason = "approval role no longer exists"
	ReasonRoleInactive    DenyReason = "approval role is inactive"
	ReasonActionForbidden DenyReason = "role cannot approve this action"
	ReasonOverLimit       DenyReason = "amount exceeds approval authority"
)

type Decision struct {
	Outcome Outcome    `json:"outcome"`
	Reason  DenyReason `json:"reason,omitempty"`
	RoleID  string     `json:"role_id,omitempty"`
}

func (d Decision) Allowed() bool { return d.Outcome != Denied }

func deny(reason DenyReason, roleID string) Decision {
	return Decision{Outcome: Denied, Reason: reason, RoleID: roleID}
}

// Evaluate decides whether the holder of binding may approve action for
// amount. binding and role may be nil when absent from the store.
func Evaluate(binding *ApprovalUser, role *ApprovalRole, action ActionType, amount int64) Decision {
	if binding == nil || !binding.IsActive {
		return deny(ReasonNoBinding, "")
	}
	if role == nil {
		return deny(ReasonRoleMissing, binding.RoleID)
	}
	if !role.IsActive {
		return deny(ReasonRoleInactive, role.ID)
	}
	if !role.Permits(action) {
		return deny(ReasonActionForbidden, role.ID)
	}
	if amount <= role.MaxApprovalAmount {
		return Decision{Outcome: Approved, RoleID: role.ID}
	}
	if role.RequiresSecondaryApproval && amount <= role.SecondaryApprovalAmount {
		return Decision{Outcome: NeedsSecondaryApproval, RoleID: role.ID}
	}
	return deny(ReasonOverLimit, role.ID)
}
