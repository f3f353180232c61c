package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pilab-dev/talent-auth/domain"
	"github.com/pilab-dev/talent-auth/services"
)

func newIssueTokenCommand(opts *options) *cobra.Command {
	var (
		kind      string
		accountID string
		email     string
		refresh   bool
	)

	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue a session token for an account",
		Long:  "Signs a session token with the configured key. The account is not looked up; use this against test deployments.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := domain.ParseAccountKind(kind)
			if err != nil {
				return err
			}
			if email == "" {
				return errors.New("--email is required")
			}
			if err := opts.load(cmd); err != nil {
				return err
			}
			tokens, err := services.NewTokenServiceFromConfig(opts.cfg.Token)
			if err != nil {
				return err
			}

			if accountID == "" {
				accountID = uuid.NewString()
			}
			account := &domain.Account{ID: accountID, Kind: k, Email: domain.NormalizeEmail(email)}

			var token string
			if refresh {
				token, err = tokens.IssueRefreshToken(account)
			} else {
				token, err = tokens.IssueAccessToken(account)
			}
			if err != nil {
				return err
			}
			opts.logger.Info(cmd.Context(), "token issued", map[string]interface{}{
				"account_id": accountID,
				"kind":       string(k),
				"refresh":    refresh,
			})
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(domain.AccountKindCandidate), "account kind (candidate, professional, organization)")
	cmd.Flags().StringVar(&accountID, "id", "", "account id (random when empty)")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "issue a refresh token instead of an access token")
	return cmd
}

type verifiedToken struct {
	Valid              bool               `json:"valid" yaml:"valid"`
	TokenType          string             `json:"tokenType" yaml:"tokenType"`
	TokenID            string             `json:"tokenId,omitempty" yaml:"tokenId,omitempty"`
	AccountID          string             `json:"accountId" yaml:"accountId"`
	Kind               domain.AccountKind `json:"kind" yaml:"kind"`
	Email              string             `json:"email,omitempty" yaml:"email,omitempty"`
	ExternalIdentityID string             `json:"externalIdentityId,omitempty" yaml:"externalIdentityId,omitempty"`
	IssuedAt           time.Time          `json:"issuedAt" yaml:"issuedAt"`
	ExpiresAt          time.Time          `json:"expiresAt" yaml:"expiresAt"`
	ExpiresIn          string             `json:"expiresIn" yaml:"expiresIn"`
}

func newVerifiedToken(claims *domain.SessionClaims) verifiedToken {
	tokenType := "access"
	if claims.IsRefresh() {
		tokenType = domain.RefreshTokenType
	}
	return verifiedToken{
		Valid:              true,
		TokenType:          tokenType,
		TokenID:            claims.TokenID,
		AccountID:          claims.AccountID,
		Kind:               claims.Kind,
		Email:              claims.Email,
		ExternalIdentityID: claims.ExternalIdentityID,
		IssuedAt:           claims.IssuedAt,
		ExpiresAt:          claims.ExpiresAt,
		ExpiresIn:          time.Until(claims.ExpiresAt).Round(time.Second).String(),
	}
}

func newVerifyTokenCommand(opts *options) *cobra.Command {
	var (
		refresh bool
		output  string
	)

	cmd := &cobra.Command{
		Use:   "verify-token <token>",
		Short: "Verify a session token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.load(cmd); err != nil {
				return err
			}
			tokens, err := services.NewTokenServiceFromConfig(opts.cfg.Token)
			if err != nil {
				return err
			}

			token := strings.TrimSpace(strings.TrimPrefix(args[0], "Bearer "))
			var claims *domain.SessionClaims
			if refresh {
				claims, err = tokens.VerifyRefreshToken(token)
			} else {
				claims, err = tokens.VerifyAccessToken(token)
			}
			if err != nil {
				return err
			}

			out := newVerifiedToken(claims)
			switch output {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			case "yaml":
				b, err := yaml.Marshal(out)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			default:
				return fmt.Errorf("unsupported output format %q", output)
			}
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "expect a refresh token")
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format (yaml or json)")
	return cmd
}
