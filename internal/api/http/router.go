package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"bizops-backend/internal/service"
)

type Handler struct {
	ledger     service.CreditLedgerService
	approvals  service.ApprovalPolicyService
	membership service.MembershipService
}

func NewHandler(ledger service.CreditLedgerService, approvals service.ApprovalPolicyService, membership service.MembershipService) *Handler {
	return &Handler{ledger: ledger, approvals: approvals, membership: membership}
}

// NewRouter registers every API route. Route names key the security
// levels in config.EndpointSecurityConfig.
func NewRouter(h *Handler, auth *AuthMiddleware) *mux.Router {
	router := mux.NewRouter()
	router.Use(Logging, auth.Authenticate, auth.RequireMember)

	router.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet).Name("healthz")

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/join", h.Join).Methods(http.MethodPost).Name("join")
	v1.HandleFunc("/businesses", h.CreateBusiness).Methods(http.MethodPost).Name("createBusiness")

	biz := v1.PathPrefix("/businesses/{businessID}").Subrouter()
	biz.HandleFunc("/codes/rotate", h.RotateCodes).Methods(http.MethodPost).Name("rotateCodes")
	biz.HandleFunc("/pending-members", h.ListPendingMembers).Methods(http.MethodGet).Name("listPendingMembers")
	biz.HandleFunc("/pending-members/{memberID}/approve", h.ApproveMember).Methods(http.MethodPost).Name("approveMember")
	biz.HandleFunc("/pending-members/{memberID}/reject", h.RejectMember).Methods(http.MethodPost).Name("rejectMember")
	biz.HandleFunc("/members", h.ListMembers).Methods(http.MethodGet).Name("listMembers")

	biz.HandleFunc("/customers", h.CreateCustomer).Methods(http.MethodPost).Name("createCustomer")
	biz.HandleFunc("/customers", h.ListCustomers).Methods(http.MethodGet).Name("listCustomers")
	biz.HandleFunc("/customers/{customerID}", h.GetCustomer).Methods(http.MethodGet).Name("getCustomer")
	biz.HandleFunc("/customers/{customerID}", h.DeleteCustomer).Methods(http.MethodDelete).Name("deleteCustomer")
	biz.HandleFunc("/customers/{customerID}/active", h.SetCustomerActive).Methods(http.MethodPut).Name("setCustomerActive")
	biz.HandleFunc("/customers/{customerID}/credit-limit", h.SetCreditLimit).Methods(http.MethodPut).Name("setCreditLimit")
	biz.HandleFunc("/customers/{customerID}/credit-status", h.CreditStatus).Methods(http.MethodGet).Name("creditStatus")
	biz.HandleFunc("/customers/{customerID}/transactions", h.RecordTransaction).Methods(http.MethodPost).Name("recordTransaction")
	biz.HandleFunc("/customers/{customerID}/transactions", h.ListTransactions).Methods(http.MethodGet).Name("listTransactions")

	biz.HandleFunc("/approval-roles", h.CreateRole).Methods(http.MethodPost).Name("createRole")
	biz.HandleFunc("/approval-roles", h.ListRoles).Methods(http.MethodGet).Name("listRoles")
	biz.HandleFunc("/approval-roles/{roleID}", h.GetRole).Methods(http.MethodGet).Name("getRole")
	biz.HandleFunc("/approval-roles/{roleID}", h.UpdateRole).Methods(http.MethodPut).Name("updateRole")
	biz.HandleFunc("/approval-roles/{roleID}", h.DeleteRole).Methods(http.MethodDelete).Name("deleteRole")
	biz.HandleFunc("/approval-roles/{roleID}/toggle", h.ToggleRole).Methods(http.MethodPost).Name("toggleRole")
	biz.HandleFunc("/approval-roles/{roleID}/users", h.AssignUser).Methods(http.MethodPost).Name("assignUser")
	biz.HandleFunc("/approval-roles/{roleID}/users", h.ListRoleUsers).Methods(http.MethodGet).Name("listRoleUsers")
	biz.HandleFunc("/approval-users/{bindingID}", h.UnassignUser).Methods(http.MethodDelete).Name("unassignUser")
	biz.HandleFunc("/approvals/check", h.CheckApproval).Methods(http.MethodPost).Name("checkApproval")

	return router
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
