package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pilab-dev/talent-auth/domain"
	"github.com/rs/zerolog/log"
)

// AccountRepository implements domain.AccountRepository over one table.
type AccountRepository struct {
	kind  domain.AccountKind
	table string
	pool  *pgxpool.Pool
}

// NewAccountRepository binds the table for kind. Run Migrate first.
func NewAccountRepository(pool *pgxpool.Pool, kind domain.AccountKind) (*AccountRepository, error) {
	table, err := TableFor(kind)
	if err != nil {
		return nil, err
	}
	return &AccountRepository{kind: kind, table: table, pool: pool}, nil
}

func (r *AccountRepository) Kind() domain.AccountKind { return r.kind }

const selectColumns = `id, email, display_name, picture_url,
	COALESCE(external_identity_id, ''), COALESCE(password_hash, ''),
	auth_mode, email_verified, last_login_at, created_at, updated_at`

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, "id", id)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, "email", domain.NormalizeEmail(email))
}

func (r *AccountRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.Account, error) {
	if externalID == "" {
		return nil, domain.ErrAccountNotFound
	}
	return r.findOne(ctx, "external_identity_id", externalID)
}

func (r *AccountRepository) findOne(ctx context.Context, column, value string) (*domain.Account, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, selectColumns, r.table, column)

	acc := &domain.Account{Kind: r.kind}
	var authMode string
	err := r.pool.QueryRow(ctx, q, value).Scan(
		&acc.ID, &acc.Email, &acc.DisplayName, &acc.PictureURL,
		&acc.ExternalIdentityID, &acc.PasswordHash,
		&authMode, &acc.EmailVerified, &acc.LastLoginAt, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		log.Error().Err(err).Str("table", r.table).Msg("Error finding account in PostgreSQL")
		return nil, err
	}
	acc.AuthMode = domain.AuthMode(authMode)
	return acc, nil
}

func (r *AccountRepository) Create(ctx context.Context, acc *domain.Account) error {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	acc.Email = domain.NormalizeEmail(acc.Email)
	acc.Kind = r.kind

	q := fmt.Sprintf(`INSERT INTO %s
		(id, email, display_name, picture_url, external_identity_id, password_hash,
		 auth_mode, email_verified, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10, now())
		RETURNING updated_at`, r.table)

	err := r.pool.QueryRow(ctx, q,
		acc.ID, acc.Email, acc.DisplayName, acc.PictureURL, acc.ExternalIdentityID, acc.PasswordHash,
		string(acc.AuthMode), acc.EmailVerified, acc.LastLoginAt, acc.CreatedAt,
	).Scan(&acc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAccountExists
		}
		log.Error().Err(err).Str("table", r.table).Msg("Error creating account in PostgreSQL")
		return err
	}
	return nil
}

// Update writes the auth fields. Empty credentials and profile fields keep
// their stored values.
func (r *AccountRepository) Update(ctx context.Context, acc *domain.Account) error {
	q := fmt.Sprintf(`UPDATE %s SET
		external_identity_id = COALESCE(NULLIF($1, ''), external_identity_id),
		password_hash        = COALESCE(NULLIF($2, ''), password_hash),
		auth_mode            = $3,
		email_verified       = $4,
		last_login_at        = COALESCE($5, last_login_at),
		display_name         = COALESCE(NULLIF($6, ''), display_name),
		picture_url          = COALESCE(NULLIF($7, ''), picture_url),
		updated_at           = now()
		WHERE id = $8 RETURNING updated_at`, r.table)

	err := r.pool.QueryRow(ctx, q,
		acc.ExternalIdentityID, acc.PasswordHash, string(acc.AuthMode), acc.EmailVerified,
		acc.LastLoginAt, acc.DisplayName, acc.PictureURL, acc.ID,
	).Scan(&acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAccountNotFound
		}
		if isUniqueViolation(err) {
			return domain.ErrAccountExists
		}
		log.Error().Err(err).Str("accountID", acc.ID).Msg("Error updating account in PostgreSQL")
		return err
	}
	return nil
}

var _ domain.AccountRepository = (*AccountRepository)(nil)
