package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"bizops-backend/internal/config"
	"bizops-backend/internal/domain"
	"bizops-backend/internal/logger"
	"bizops-backend/internal/security"
)

type claimsKey struct{}

// ClaimsFromContext returns the verified caller, if any.
func ClaimsFromContext(ctx context.Context) (*security.UserClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*security.UserClaims)
	return c, ok
}

func callerID(r *http.Request) string {
	if c, ok := ClaimsFromContext(r.Context()); ok {
		return c.UserID
	}
	return ""
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return ""
}

// MemberLookup reports whether a user belongs to a business.
type MemberLookup interface {
	IsMember(ctx context.Context, businessID, userID string) (bool, error)
}

type AuthMiddleware struct {
	tokenManager security.TokenManager
	members      MemberLookup
}

func NewAuthMiddleware(tm security.TokenManager, members MemberLookup) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm, members: members}
}

// Authenticate verifies the bearer token unless the matched route is public.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if config.GetSecurityLevel(routeName(r)) == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authorization token is not provided", Code: "unauthenticated"})
			return
		}
		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token: " + err.Error(), Code: "unauthenticated"})
			return
		}
		if claims.Type != security.TokenTypeAccess {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "access token required", Code: "unauthorized"})
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = logger.WithContext(ctx, "user_id", claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireMember rejects callers who are not active members of the business
// named in the path. Routes without a business are passed through.
func (m *AuthMiddleware) RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		businessID := mux.Vars(r)["businessID"]
		if businessID == "" {
			next.ServeHTTP(w, r)
			return
		}
		ok, err := m.members.IsMember(r.Context(), businessID, callerID(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			writeError(w, r, domain.ErrUnauthorized)
			return
		}
		ctx := logger.WithContext(r.Context(), "business_id", businessID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:], true
	}
	return "", false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging tags the request context with a request ID and logs completion.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)

		ctx := logger.WithContext(r.Context(), "request_id", reqID, "route", routeName(r))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.FromContext(ctx).Info("HTTP request",
			"method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
