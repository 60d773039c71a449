package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/service"
)

type roleRequest struct {
	Name                      string `json:"name"`
	Description               string `json:"description"`
	CanApproveOrders          bool   `json:"can_approve_orders"`
	CanApproveCredit          bool   `json:"can_approve_credit"`
	CanApproveTransfers       bool   `json:"can_approve_transfers"`
	MaxApprovalAmount         int64  `json:"max_approval_amount"`
	RequiresSecondaryApproval bool   `json:"requires_secondary_approval"`
	SecondaryApprovalAmount   int64  `json:"secondary_approval_amount"`
}

func (req roleRequest) toDomain(businessID, id string) *domain.ApprovalRole {
	return &domain.ApprovalRole{
		ID:                        id,
		BusinessID:                businessID,
		Name:                      req.Name,
		Description:               req.Description,
		CanApproveOrders:          req.CanApproveOrders,
		CanApproveCredit:          req.CanApproveCredit,
		CanApproveTransfers:       req.CanApproveTransfers,
		MaxApprovalAmount:         req.MaxApprovalAmount,
		RequiresSecondaryApproval: req.RequiresSecondaryApproval,
		SecondaryApprovalAmount:   req.SecondaryApprovalAmount,
	}
}

type toggleRequest struct {
	IsActive bool `json:"is_active"`
}

type assignRequest struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

type checkApprovalRequest struct {
	ActionType domain.ActionType `json:"action_type"`
	Amount     int64             `json:"amount"`
}

type checkApprovalResponse struct {
	Decision domain.Outcome    `json:"decision"`
	Reason   domain.DenyReason `json:"reason,omitempty"`
	RoleID   string            `json:"role_id,omitempty"`
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	role := req.toDomain(mux.Vars(r)["businessID"], "")
	if err := h.approvals.CreateRole(r.Context(), role, callerID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.approvals.ListRoles(r.Context(), mux.Vars(r)["businessID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": nonNil(roles)})
}

func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	role, err := h.approvals.GetRole(r.Context(), vars["businessID"], vars["roleID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	role := req.toDomain(vars["businessID"], vars["roleID"])
	if err := h.approvals.UpdateRole(r.Context(), role, callerID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.approvals.DeleteRole(r.Context(), vars["businessID"], vars["roleID"], callerID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ToggleRole(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	role, err := h.approvals.ToggleActive(r.Context(), vars["businessID"], vars["roleID"], req.IsActive, callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (h *Handler) AssignUser(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	binding, err := h.approvals.AssignUserToRole(r.Context(), service.AssignRequest{
		BusinessID: vars["businessID"],
		RoleID:     vars["roleID"],
		UserID:     req.UserID,
		UserName:   req.UserName,
		UserEmail:  req.UserEmail,
		AssignedBy: callerID(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, binding)
}

func (h *Handler) ListRoleUsers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	users, err := h.approvals.ListRoleUsers(r.Context(), vars["businessID"], vars["roleID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": nonNil(users)})
}

func (h *Handler) UnassignUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.approvals.UnassignUser(r.Context(), vars["businessID"], vars["bindingID"], callerID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckApproval evaluates the caller's own authority.
func (h *Handler) CheckApproval(w http.ResponseWriter, r *http.Request) {
	var req checkApprovalRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.approvals.CanApprove(r.Context(), mux.Vars(r)["businessID"], callerID(r), req.ActionType, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkApprovalResponse{Decision: d.Outcome, Reason: d.Reason, RoleID: d.RoleID})
}
