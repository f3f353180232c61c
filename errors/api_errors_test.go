package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/pilab-dev/talent-auth/domain"
	"github.com/stretchr/testify/assert"
)

func TestFromDomain(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrInvalidAccountKind, http.StatusBadRequest, InvalidAccountKind},
		{domain.ErrAccountNotFound, http.StatusNotFound, UserNotFound},
		{&domain.RegistrationRequiredError{Email: "a@x.com"}, http.StatusNotFound, UserNotFound},
		{domain.ErrPasswordLoginUnavailable, http.StatusConflict, PasswordLoginUnavailable},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, InvalidCredentials},
		{fmt.Errorf("%w: expired", domain.ErrInvalidToken), http.StatusUnauthorized, InvalidToken},
		{domain.ErrRateLimited, http.StatusTooManyRequests, RateLimited},
		{domain.ErrWeakPassword, http.StatusBadRequest, WeakPassword},
		{stderrors.New("mongo: connection reset"), http.StatusInternalServerError, ServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, body := FromDomain(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Description)
		})
	}
}

func TestFromDomain_HidesInternalDetails(t *testing.T) {
	_, body := FromDomain(stderrors.New("dial tcp 10.0.0.5:27017: refused"))
	assert.NotContains(t, body.Description, "10.0.0.5")
}
