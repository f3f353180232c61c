package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pilab-dev/talent-auth/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T, kind domain.AccountKind) *AccountRepository {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping PostgreSQL integration test")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	repo, err := NewAccountRepository(pool, kind)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", repo.table))
	require.NoError(t, err)
	return repo
}

func TestTableFor(t *testing.T) {
	table, err := TableFor(domain.AccountKindProfessional)
	require.NoError(t, err)
	assert.Equal(t, "professionals", table)

	_, err = TableFor("")
	assert.ErrorIs(t, err, domain.ErrInvalidAccountKind)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestAccountRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t, domain.AccountKindCandidate)

	acc := &domain.Account{Email: "Jane@Example.com", ExternalIdentityID: "sub-1", AuthMode: domain.AuthModeFederated}
	require.NoError(t, repo.Create(ctx, acc))

	assert.ErrorIs(t, repo.Create(ctx, &domain.Account{Email: "jane@example.com"}), domain.ErrAccountExists)
	assert.ErrorIs(t, repo.Create(ctx, &domain.Account{Email: "other@example.com", ExternalIdentityID: "sub-1"}), domain.ErrAccountExists)
	require.NoError(t, repo.Create(ctx, &domain.Account{Email: "l1@example.com"}))
	require.NoError(t, repo.Create(ctx, &domain.Account{Email: "l2@example.com"}))

	found, err := repo.FindByExternalID(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", found.Email)
	assert.Empty(t, found.PasswordHash)

	found.PasswordHash = "hash"
	found.AuthMode = domain.AuthModeBoth
	require.NoError(t, repo.Update(ctx, found))

	again, err := repo.FindByEmail(ctx, "JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", again.PasswordHash)
	assert.Equal(t, "sub-1", again.ExternalIdentityID)
	assert.Equal(t, domain.AuthModeBoth, again.AuthMode)

	assert.ErrorIs(t, repo.Update(ctx, &domain.Account{ID: "missing"}), domain.ErrAccountNotFound)
}
