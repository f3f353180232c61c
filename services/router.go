package services

import (
	"fmt"

	"github.com/pilab-dev/talent-auth/domain"
)

// AccountRouter dispatches a caller-declared account kind to its partition.
type AccountRouter struct {
	partitions map[domain.AccountKind]domain.AccountRepository
}

// NewAccountRouter builds a router from one repository per kind. Every kind
// in domain.AccountKinds must be covered exactly once.
func NewAccountRouter(repos ...domain.AccountRepository) (*AccountRouter, error) {
	partitions := make(map[domain.AccountKind]domain.AccountRepository, len(repos))
	for _, repo := range repos {
		kind := repo.Kind()
		if _, dup := partitions[kind]; dup {
			return nil, fmt.Errorf("duplicate repository for account kind %q", kind)
		}
		partitions[kind] = repo
	}
	for _, kind := range domain.AccountKinds {
		if _, ok := partitions[kind]; !ok {
			return nil, fmt.Errorf("no repository for account kind %q", kind)
		}
	}
	return &AccountRouter{partitions: partitions}, nil
}

// Partition resolves a raw kind token. Unknown tokens fail before any store
// is touched.
func (r *AccountRouter) Partition(token string) (domain.AccountRepository, error) {
	kind, err := domain.ParseAccountKind(token)
	if err != nil {
		return nil, err
	}
	return r.Repository(kind)
}

// Repository returns the partition for an already parsed kind.
func (r *AccountRouter) Repository(kind domain.AccountKind) (domain.AccountRepository, error) {
	repo, ok := r.partitions[kind]
	if !ok {
		return nil, domain.ErrInvalidAccountKind
	}
	return repo, nil
}
