package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"bizops-backend/internal/domain"
	"bizops-backend/internal/service"
)

type createBusinessRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type joinRequest struct {
	Code          string            `json:"code"`
	RequestedRole domain.MemberRole `json:"requested_role"`
	SystemCode    string            `json:"system_code"`
	FirstName     string            `json:"first_name"`
	LastName      string            `json:"last_name"`
	Email         string            `json:"email"`
	Phone         string            `json:"phone"`
}

// profile fills the caller's profile from the request, falling back to the
// token claims for names and email.
func profile(r *http.Request, first, last, email, phone string) service.Profile {
	p := service.Profile{FirstName: first, LastName: last, Email: email, Phone: phone}
	if c, ok := ClaimsFromContext(r.Context()); ok {
		p.UserID = c.UserID
		if p.FirstName == "" {
			p.FirstName = c.FirstName
		}
		if p.LastName == "" {
			p.LastName = c.LastName
		}
		if p.Email == "" {
			p.Email = c.Email
		}
	}
	return p
}

func (h *Handler) CreateBusiness(w http.ResponseWriter, r *http.Request) {
	var req createBusinessRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	b := &domain.Business{Name: req.Name, Email: req.Email, Phone: req.Phone, Address: req.Address}
	if err := h.membership.CreateBusiness(r.Context(), b, profile(r, "", "", "", "")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) RotateCodes(w http.ResponseWriter, r *http.Request) {
	b, err := h.membership.RotateCodes(r.Context(), mux.Vars(r)["businessID"], callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Join answers 201 when the caller became an active member and 202 when
// the request is waiting for an admin.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.membership.JoinBusiness(r.Context(), service.JoinRequest{
		Code:          req.Code,
		RequestedRole: req.RequestedRole,
		SystemCode:    req.SystemCode,
		Profile:       profile(r, req.FirstName, req.LastName, req.Email, req.Phone),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusAccepted
	if res.Outcome == domain.JoinOutcomeActive {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

func (h *Handler) ListPendingMembers(w http.ResponseWriter, r *http.Request) {
	pending, err := h.membership.ListPendingMembers(r.Context(), mux.Vars(r)["businessID"], callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending_members": nonNil(pending)})
}

func (h *Handler) ApproveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	m, err := h.membership.ApproveMember(r.Context(), vars["businessID"], vars["memberID"], callerID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) RejectMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.membership.RejectMember(r.Context(), vars["businessID"], vars["memberID"], callerID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.membership.ListMembers(r.Context(), mux.Vars(r)["businessID"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": nonNil(members)})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
