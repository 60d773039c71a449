package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"bizops-backend/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.NewValidationError("amount", "must be greater than zero"), http.StatusBadRequest},
		{domain.ErrOutstandingDebt, http.StatusBadRequest},
		{fmt.Errorf("failed to get customer: %w", domain.ErrCustomerNotFound), http.StatusNotFound},
		{domain.ErrInvalidSystemCode, http.StatusForbidden},
		{domain.ErrSecondaryApprovalRequired, http.StatusForbidden},
		{domain.ErrAlreadyExists, http.StatusConflict},
		{domain.ErrCodeExhausted, http.StatusConflict},
		{fmt.Errorf("write: %w", domain.ErrBackendUnavailable), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, _ := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}
