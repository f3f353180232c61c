package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAssertion         = errors.New("invalid external identity")
	ErrAccountNotFound          = errors.New("account not found")
	ErrPasswordLoginUnavailable = errors.New("password login unavailable for this account")
	ErrInvalidCredentials       = errors.New("invalid email or password")
	ErrPasswordAlreadySet       = errors.New("password already set")
	ErrInvalidAccountKind       = errors.New("invalid account kind")
	ErrRateLimited              = errors.New("too many attempts")
	ErrAccountExists            = errors.New("account already exists")
	ErrIdentityConflict         = errors.New("account is linked to a different external identity")
	ErrInvalidToken             = errors.New("invalid token")
	ErrWeakPassword             = errors.New("password does not meet policy")
	ErrInvalidEmail             = errors.New("invalid email address")
)

// RegistrationRequiredError is returned by a federated sign-in for an email
// that has no account in the partition. It carries what the caller needs to
// start registration and wraps ErrAccountNotFound.
type RegistrationRequiredError struct {
	Email       string
	DisplayName string
	Kind        AccountKind
}

func (e *RegistrationRequiredError) Error() string {
	return fmt.Sprintf("no %s account for %s", e.Kind, e.Email)
}

func (e *RegistrationRequiredError) Unwrap() error { return ErrAccountNotFound }
