package domain

import (
	"context"
)

// AccountRepository is the credential store of a single account-kind partition.
//
// Implementations enforce email uniqueness and sparse uniqueness of the external
// identity id themselves; Create returns ErrAccountExists on a violation. Finders
// return ErrAccountNotFound when nothing matches.
type AccountRepository interface {
	Kind() AccountKind
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByExternalID(ctx context.Context, externalID string) (*Account, error)
	Create(ctx context.Context, account *Account) error
	// Update persists the auth fields of an existing account (external id,
	// password hash, auth mode, email verification, last login).
	Update(ctx context.Context, account *Account) error
}
