package mongodb_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pilab-dev/talent-auth/domain"
	"github.com/pilab-dev/talent-auth/mongodb"
	"github.com/pilab-dev/talent-auth/mongodb/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T, kind domain.AccountKind) *mongodb.AccountRepository {
	t.Helper()
	db := testutil.SetupTestMongoDB(t, "accounts_test")
	repo, err := mongodb.NewAccountRepository(context.Background(), db, kind)
	require.NoError(t, err)
	return repo
}

func TestCollectionFor(t *testing.T) {
	name, err := mongodb.CollectionFor(domain.AccountKindOrganization)
	require.NoError(t, err)
	assert.Equal(t, mongodb.OrganizationsCollection, name)

	_, err = mongodb.CollectionFor(domain.AccountKind("admin"))
	assert.ErrorIs(t, err, domain.ErrInvalidAccountKind)
}

func TestAccountRepository_CreateFindUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, domain.AccountKindCandidate)

	account := &domain.Account{Email: "Jane@Example.com", PasswordHash: "hash", AuthMode: domain.AuthModeLocal}
	require.NoError(t, repo.Create(ctx, account))
	assert.NotEmpty(t, account.ID)

	found, err := repo.FindByEmail(ctx, "jane@example.COM")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)
	assert.Equal(t, domain.AccountKindCandidate, found.Kind)
	assert.Equal(t, "hash", found.PasswordHash)

	now := time.Now().UTC().Truncate(time.Millisecond)
	found.ExternalIdentityID = "sub-1"
	found.AuthMode = domain.AuthModeBoth
	found.LastLoginAt = &now
	require.NoError(t, repo.Update(ctx, found))

	linked, err := repo.FindByExternalID(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, account.ID, linked.ID)
	assert.Equal(t, domain.AuthModeBoth, linked.AuthMode)
	assert.Equal(t, "hash", linked.PasswordHash)
	require.NotNil(t, linked.LastLoginAt)
	assert.True(t, now.Equal(*linked.LastLoginAt))

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &domain.Account{ID: "missing"}), domain.ErrAccountNotFound)
}

func TestAccountRepository_UniqueIndexes(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, domain.AccountKindProfessional)

	require.NoError(t, repo.Create(ctx, &domain.Account{Email: "a@x.com", ExternalIdentityID: "sub-1"}))
	assert.ErrorIs(t, repo.Create(ctx, &domain.Account{Email: "A@X.com"}), domain.ErrAccountExists)
	assert.ErrorIs(t, repo.Create(ctx, &domain.Account{Email: "b@x.com", ExternalIdentityID: "sub-1"}), domain.ErrAccountExists)

	// Several local-only accounts may coexist without an external id.
	require.NoError(t, repo.Create(ctx, &domain.Account{Email: "c@x.com"}))
	require.NoError(t, repo.Create(ctx, &domain.Account{Email: "d@x.com"}))
}

func TestAccountRepository_ConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t, domain.AccountKindOrganization)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Create(ctx, &domain.Account{Email: "race@x.com"})
		}()
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAccountExists)
	}
	assert.Equal(t, 1, created)
}
