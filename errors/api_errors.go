package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/pilab-dev/talent-auth/domain"
)

// APIError is the JSON body of every failed API call.
type APIError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Error codes returned to clients.
const (
	InvalidRequest           = "InvalidRequest"
	InvalidAccountKind       = "InvalidAccountKind"
	InvalidAssertion         = "InvalidAssertion"
	UserNotFound             = "UserNotFound"
	PasswordLoginUnavailable = "PasswordLoginUnavailable"
	InvalidCredentials       = "InvalidCredentials"
	PasswordAlreadySet       = "PasswordAlreadySet"
	AccountExists            = "AccountExists"
	IdentityConflict         = "IdentityConflict"
	InvalidToken             = "InvalidToken"
	WeakPassword             = "WeakPassword"
	InvalidEmail             = "InvalidEmail"
	Forbidden                = "Forbidden"
	RateLimited              = "RateLimited"
	ServerError              = "ServerError"
)

func New(code, description string) *APIError {
	return &APIError{Code: code, Description: description}
}

func NewInvalidRequest(description string) *APIError {
	return New(InvalidRequest, description)
}

func NewServerError() *APIError {
	return New(ServerError, "internal error")
}

type mapping struct {
	target error
	status int
	code   string
	desc   string
}

// Credential failures stay generic; the two actionable cases tell the caller
// what to do next.
var mappings = []mapping{
	{domain.ErrInvalidAccountKind, http.StatusBadRequest, InvalidAccountKind, "account kind must be candidate, professional or organization"},
	{domain.ErrInvalidAssertion, http.StatusUnauthorized, InvalidAssertion, "identity could not be verified"},
	{domain.ErrPasswordLoginUnavailable, http.StatusConflict, PasswordLoginUnavailable, "this account signs in with Google; use Google sign-in or set a password"},
	{domain.ErrAccountNotFound, http.StatusNotFound, UserNotFound, "no account found; please register"},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, InvalidCredentials, "invalid email or password"},
	{domain.ErrPasswordAlreadySet, http.StatusConflict, PasswordAlreadySet, "a password is already set for this account"},
	{domain.ErrAccountExists, http.StatusConflict, AccountExists, "an account with this email already exists"},
	{domain.ErrIdentityConflict, http.StatusConflict, IdentityConflict, "this account is linked to a different identity"},
	{domain.ErrInvalidToken, http.StatusUnauthorized, InvalidToken, "invalid or expired token"},
	{domain.ErrWeakPassword, http.StatusBadRequest, WeakPassword, "password must be between 8 and 72 bytes"},
	{domain.ErrInvalidEmail, http.StatusBadRequest, InvalidEmail, "invalid email address"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, RateLimited, "too many attempts, try again later"},
}

// FromDomain maps a service error to an HTTP status and body. Unknown errors
// become an opaque 500.
func FromDomain(err error) (int, *APIError) {
	for _, m := range mappings {
		if stderrors.Is(err, m.target) {
			return m.status, New(m.code, m.desc)
		}
	}
	return http.StatusInternalServerError, NewServerError()
}
