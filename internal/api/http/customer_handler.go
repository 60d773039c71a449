package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/service"
)

type createCustomerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	CreditLimit int64  `json:"credit_limit"`
}

type setActiveRequest struct {
	IsActive bool `json:"is_active"`
}

type setCreditLimitRequest struct {
	CreditLimit int64 `json:"credit_limit"`
}

type recordTransactionRequest struct {
	Type                domain.TransactionType `json:"type"`
	Amount              int64                  `json:"amount"`
	Reference           string                 `json:"reference"`
	Note                string                 `json:"note"`
	SecondaryApproverID string                 `json:"secondary_approver_id"`
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c := &domain.Customer{
		BusinessID:  mux.Vars(r)["businessID"],
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		CreditLimit: req.CreditLimit,
	}
	if err := h.ledger.CreateCustomer(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.ledger.ListCustomers(r.Context(), mux.Vars(r)["businessID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": nonNil(customers)})
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	c, err := h.ledger.GetCustomer(r.Context(), vars["businessID"], vars["customerID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.ledger.DeleteCustomer(r.Context(), vars["businessID"], vars["customerID"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetCustomerActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	if err := h.ledger.SetCustomerActive(r.Context(), vars["businessID"], vars["customerID"], req.IsActive); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetCreditLimit(w http.ResponseWriter, r *http.Request) {
	var req setCreditLimitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	if err := h.ledger.SetCreditLimit(r.Context(), vars["businessID"], vars["customerID"], req.CreditLimit, callerID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreditStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	report, err := h.ledger.CreditStatus(r.Context(), vars["businessID"], vars["customerID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// RecordTransaction passes the Idempotency-Key header through so a client
// retrying after a timeout gets the original entry back.
func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req recordTransactionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	txn, err := h.ledger.RecordTransaction(r.Context(), service.RecordTransactionRequest{
		BusinessID:          vars["businessID"],
		CustomerID:          vars["customerID"],
		Type:                req.Type,
		Amount:              req.Amount,
		Reference:           req.Reference,
		Note:                req.Note,
		IdempotencyKey:      r.Header.Get("Idempotency-Key"),
		ActorUserID:         callerID(r),
		SecondaryApproverID: req.SecondaryApproverID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	history, err := h.ledger.LedgerHistory(r.Context(), vars["businessID"], vars["customerID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	history.Transactions = nonNil(history.Transactions)
	if history.Degraded {
		w.Header().Set("Warning", `199 - "stale ledger history"`)
	}
	writeJSON(w, http.StatusOK, history)
}
