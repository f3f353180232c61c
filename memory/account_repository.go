package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pilab-dev/talent-auth/domain"
)

// AccountRepository is an in-process credential store for one account kind.
// Suitable for development and tests; state is lost on restart.
type AccountRepository struct {
	kind domain.AccountKind

	mu         sync.RWMutex
	accounts   map[string]*domain.Account
	byEmail    map[string]string
	byExternal map[string]string
}

// NewAccountRepository creates an empty partition for kind.
func NewAccountRepository(kind domain.AccountKind) *AccountRepository {
	return &AccountRepository{
		kind:       kind,
		accounts:   make(map[string]*domain.Account),
		byEmail:    make(map[string]string),
		byExternal: make(map[string]string),
	}
}

func (r *AccountRepository) Kind() domain.AccountKind { return r.kind }

func (r *AccountRepository) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id)
}

func (r *AccountRepository) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(r.byEmail[domain.NormalizeEmail(email)])
}

func (r *AccountRepository) FindByExternalID(_ context.Context, externalID string) (*domain.Account, error) {
	if externalID == "" {
		return nil, domain.ErrAccountNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(r.byExternal[externalID])
}

func (r *AccountRepository) Create(_ context.Context, account *domain.Account) error {
	email := domain.NormalizeEmail(account.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[email]; taken {
		return domain.ErrAccountExists
	}
	if account.ExternalIdentityID != "" {
		if _, taken := r.byExternal[account.ExternalIdentityID]; taken {
			return domain.ErrAccountExists
		}
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if _, taken := r.accounts[account.ID]; taken {
		return domain.ErrAccountExists
	}

	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.Email = email
	account.Kind = r.kind

	stored := *account
	if account.LastLoginAt != nil {
		t := *account.LastLoginAt
		stored.LastLoginAt = &t
	}
	r.accounts[stored.ID] = &stored
	r.byEmail[email] = stored.ID
	if stored.ExternalIdentityID != "" {
		r.byExternal[stored.ExternalIdentityID] = stored.ID
	}
	return nil
}

func (r *AccountRepository) Update(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[account.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if ext := account.ExternalIdentityID; ext != "" {
		if owner, taken := r.byExternal[ext]; taken && owner != account.ID {
			return domain.ErrAccountExists
		}
	}

	// Empty credentials never overwrite stored ones.
	if ext := account.ExternalIdentityID; ext != "" && ext != stored.ExternalIdentityID {
		if stored.ExternalIdentityID != "" {
			delete(r.byExternal, stored.ExternalIdentityID)
		}
		r.byExternal[ext] = account.ID
		stored.ExternalIdentityID = ext
	}
	if account.PasswordHash != "" {
		stored.PasswordHash = account.PasswordHash
	}
	stored.AuthMode = account.AuthMode
	stored.EmailVerified = account.EmailVerified
	if account.LastLoginAt != nil {
		t := *account.LastLoginAt
		stored.LastLoginAt = &t
	}
	if account.DisplayName != "" {
		stored.DisplayName = account.DisplayName
	}
	if account.PictureURL != "" {
		stored.PictureURL = account.PictureURL
	}
	stored.UpdatedAt = time.Now().UTC()
	account.UpdatedAt = stored.UpdatedAt
	return nil
}

// Len reports the number of stored accounts.
func (r *AccountRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts)
}

func (r *AccountRepository) get(id string) (*domain.Account, error) {
	stored, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	out := *stored
	if stored.LastLoginAt != nil {
		t := *stored.LastLoginAt
		out.LastLoginAt = &t
	}
	return &out, nil
}

var _ domain.AccountRepository = (*AccountRepository)(nil)
