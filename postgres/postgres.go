// Package postgres stores credential records in PostgreSQL through pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pilab-dev/talent-auth/domain"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schemaTemplate string

const uniqueViolation = "23505"

// TableFor maps an account kind to the table holding its records.
func TableFor(kind domain.AccountKind) (string, error) {
	switch kind {
	case domain.AccountKindCandidate:
		return "candidates", nil
	case domain.AccountKindProfessional:
		return "professionals", nil
	case domain.AccountKindOrganization:
		return "organizations", nil
	}
	return "", domain.ErrInvalidAccountKind
}

// Connect opens a pool and pings it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	log.Info().Msg("PostgreSQL pool initialized successfully.")
	return pool, nil
}

// Migrate creates the account tables and their unique indexes if missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, kind := range domain.AccountKinds {
		table, _ := TableFor(kind)
		ddl := strings.ReplaceAll(schemaTemplate, "{{table}}", table)
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
