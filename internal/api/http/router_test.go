package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "bizops-backend/internal/api/http"
	"bizops-backend/internal/config"
	"bizops-backend/internal/domain"
	"bizops-backend/internal/events"
	"bizops-backend/internal/repository/memory"
	"bizops-backend/internal/security"
	"bizops-backend/internal/service"
)

type testAPI struct {
	router http.Handler
	tokens security.TokenManager
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	pub := events.NopPublisher{}
	authorizer := service.NewMemberAuthorizer(store.Members)

	approvals := service.NewApprovalPolicyService(store, authorizer, pub)
	ledger, err := service.NewCreditLedgerService(store, approvals, pub, config.LedgerConfig{
		MaxRetries: 3, RetryInitialIntervalMs: 1, ApprovalThresholdCents: 100000, CacheSize: 8,
	})
	require.NoError(t, err)
	membership := service.NewMembershipService(store, service.NewCodeGenerator(6), authorizer,
		service.NewMemberNotifier(config.SendGridConfig{}), pub, config.MembershipConfig{CodeLength: 6, MaxCodeAttempts: 5})

	tokens := security.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour)
	h := api.NewHandler(ledger, approvals, membership)
	return &testAPI{router: api.NewRouter(h, api.NewAuthMiddleware(tokens, authorizer)), tokens: tokens}
}

func (a *testAPI) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := a.tokens.GenerateAccessToken(security.Identity{UserID: userID, Email: userID + "@example.test", FirstName: userID})
	require.NoError(t, err)
	return tok
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRouter_Authentication(t *testing.T) {
	a := newTestAPI(t)

	t.Run("HealthzIsPublic", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("MissingToken", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/v1/businesses", "", map[string]string{"name": "Acme"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/v1/businesses", "not-a-jwt", map[string]string{"name": "Acme"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRouter_MembershipFlow(t *testing.T) {
	a := newTestAPI(t)
	owner := a.token(t, "owner-1")
	rep := a.token(t, "rep-1")

	rec := a.do(t, http.MethodPost, "/v1/businesses", owner, map[string]string{"name": "Northwind"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	biz := decodeBody[domain.Business](t, rec)
	assert.Len(t, biz.BusinessCode, 6)
	assert.Len(t, biz.SystemCode, 6)
	base := "/v1/businesses/" + biz.ID

	rec = a.do(t, http.MethodPost, "/v1/join", rep, map[string]string{
		"code": biz.BusinessCode, "requested_role": "sales_rep", "first_name": "Rae",
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	joined := decodeBody[domain.JoinResult](t, rec)
	require.NotNil(t, joined.Pending)
	assert.Equal(t, "rep-1", joined.Pending.UserID)

	rec = a.do(t, http.MethodGet, base+"/customers", rep, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "pending members have no access yet")

	rec = a.do(t, http.MethodPost, fmt.Sprintf("%s/pending-members/%s/approve", base, joined.Pending.ID), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, base+"/customers", rep, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	t.Run("AdminJoinWithSystemCode", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/v1/join", a.token(t, "cfo-1"), map[string]string{
			"code": biz.BusinessCode, "requested_role": "admin", "system_code": biz.SystemCode,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		res := decodeBody[domain.JoinResult](t, rec)
		assert.Equal(t, domain.JoinOutcomeActive, res.Outcome)
	})

	t.Run("AdminJoinWithWrongSystemCode", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/v1/join", a.token(t, "mallory"), map[string]string{
			"code": biz.BusinessCode, "requested_role": "admin", "system_code": "WRONG1",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("NonAdminCannotApprove", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, base+"/pending-members", rep, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("UnknownCode", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/v1/join", rep, map[string]string{"code": "ZZZZZZ", "requested_role": "viewer"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouter_LedgerAndApprovals(t *testing.T) {
	a := newTestAPI(t)
	owner := a.token(t, "owner-1")

	rec := a.do(t, http.MethodPost, "/v1/businesses", owner, map[string]string{"name": "Northwind"})
	require.Equal(t, http.StatusCreated, rec.Code)
	base := "/v1/businesses/" + decodeBody[domain.Business](t, rec).ID

	rec = a.do(t, http.MethodPost, base+"/customers", owner, map[string]any{"name": "Acme", "credit_limit": 10000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cust := decodeBody[domain.Customer](t, rec)
	custPath := base + "/customers/" + cust.ID

	txn := map[string]any{"type": "invoice", "amount": 8000, "reference": "INV-1"}
	rec = a.do(t, http.MethodPost, custPath+"/transactions", owner, txn, "Idempotency-Key", "inv-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeBody[domain.CustomerTransaction](t, rec)

	rec = a.do(t, http.MethodPost, custPath+"/transactions", owner, txn, "Idempotency-Key", "inv-1")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, first.ID, decodeBody[domain.CustomerTransaction](t, rec).ID)

	rec = a.do(t, http.MethodGet, custPath+"/transactions", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[service.LedgerHistory](t, rec)
	assert.Len(t, history.Transactions, 1)
	assert.False(t, history.Degraded)

	rec = a.do(t, http.MethodGet, custPath+"/credit-status", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[service.CreditReport](t, rec)
	assert.Equal(t, domain.CreditStatusWarning, report.Status)

	t.Run("ValidationMapsTo400", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, custPath+"/transactions", owner, map[string]any{"type": "invoice", "amount": 0})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeBody[map[string]string](t, rec)
		assert.Equal(t, "amount", body["field"])
	})

	t.Run("UnknownFieldRejected", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, custPath+"/transactions", owner, map[string]any{"type": "invoice", "amount": 1, "amout": 2})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("OutstandingBalanceBlocksDelete", func(t *testing.T) {
		rec := a.do(t, http.MethodDelete, custPath, owner, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownCustomer", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, base+"/customers/nope", owner, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("LargeInvoiceNeedsApprovalRole", func(t *testing.T) {
		big := map[string]any{"type": "invoice", "amount": 200000}
		rec := a.do(t, http.MethodPost, custPath+"/transactions", owner, big)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = a.do(t, http.MethodPost, base+"/approval-roles", owner, map[string]any{
			"name": "Controller", "can_approve_credit": true, "max_approval_amount": 500000,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		role := decodeBody[domain.ApprovalRole](t, rec)

		rec = a.do(t, http.MethodPost, base+"/approval-roles/"+role.ID+"/users", owner, map[string]string{"user_id": "owner-1"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = a.do(t, http.MethodPost, base+"/approvals/check", owner, map[string]any{"action_type": "credit", "amount": 200000})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, fmt.Sprintf(`{"decision":"approved","role_id":%q}`, role.ID), rec.Body.String())

		rec = a.do(t, http.MethodPost, custPath+"/transactions", owner, big)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = a.do(t, http.MethodPost, base+"/approval-roles/"+role.ID+"/toggle", owner, map[string]bool{"is_active": false})
		require.Equal(t, http.StatusOK, rec.Code)
		rec = a.do(t, http.MethodPost, base+"/approvals/check", owner, map[string]any{"action_type": "credit", "amount": 10})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "denied", decodeBody[map[string]string](t, rec)["decision"])
	})
}

func TestRouter_RoleManagementRequiresAdmin(t *testing.T) {
	a := newTestAPI(t)
	owner := a.token(t, "owner-1")
	rep := a.token(t, "rep-1")

	rec := a.do(t, http.MethodPost, "/v1/businesses", owner, map[string]string{"name": "Northwind"})
	require.Equal(t, http.StatusCreated, rec.Code)
	biz := decodeBody[domain.Business](t, rec)
	base := "/v1/businesses/" + biz.ID

	rec = a.do(t, http.MethodPost, "/v1/join", rep, map[string]string{"code": biz.BusinessCode, "requested_role": "sales_rep"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	joined := decodeBody[domain.JoinResult](t, rec)
	rec = a.do(t, http.MethodPost, fmt.Sprintf("%s/pending-members/%s/approve", base, joined.Pending.ID), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	unlimited := map[string]any{"name": "Self Serve", "can_approve_credit": true, "max_approval_amount": int64(1) << 40}
	rec = a.do(t, http.MethodPost, base+"/approval-roles", rep, unlimited)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodPost, base+"/approval-roles", owner, map[string]any{
		"name": "Clerk", "can_approve_credit": true, "max_approval_amount": 1000,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	role := decodeBody[domain.ApprovalRole](t, rec)
	rolePath := base + "/approval-roles/" + role.ID

	rec = a.do(t, http.MethodPost, rolePath+"/users", owner, map[string]string{"user_id": "owner-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	binding := decodeBody[domain.ApprovalUser](t, rec)

	t.Run("NonAdminMutationsForbidden", func(t *testing.T) {
		cases := []struct {
			name   string
			method string
			path   string
			body   any
		}{
			{"UpdateRole", http.MethodPut, rolePath, unlimited},
			{"ToggleRole", http.MethodPost, rolePath + "/toggle", map[string]bool{"is_active": false}},
			{"AssignUser", http.MethodPost, rolePath + "/users", map[string]string{"user_id": "rep-1"}},
			{"UnassignUser", http.MethodDelete, base + "/approval-users/" + binding.ID, nil},
			{"DeleteRole", http.MethodDelete, rolePath, nil},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				rec := a.do(t, tc.method, tc.path, rep, tc.body)
				assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
			})
		}
	})

	t.Run("NonAdminStillReadsAndChecks", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, base+"/approval-roles", rep, nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = a.do(t, http.MethodPost, base+"/approvals/check", rep, map[string]any{"action_type": "credit", "amount": 10})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "denied", decodeBody[map[string]string](t, rec)["decision"])
	})

	t.Run("LargeAdjustmentStillBlocked", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, base+"/customers", owner, map[string]any{"name": "Acme", "credit_limit": 10000})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		cust := decodeBody[domain.Customer](t, rec)

		rec = a.do(t, http.MethodPost, base+"/customers/"+cust.ID+"/transactions", rep,
			map[string]any{"type": "credit-adjustment", "amount": 900000000})
		assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	})

	rec = a.do(t, http.MethodGet, rolePath, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[domain.ApprovalRole](t, rec)
	assert.True(t, got.IsActive)
	assert.Equal(t, int64(1000), got.MaxApprovalAmount)
}
