package domain

import (
	"strings"
	"time"
)

// AccountKind identifies one of the disjoint account partitions.
type AccountKind string

const (
	AccountKindCandidate    AccountKind = "candidate"
	AccountKindProfessional AccountKind = "professional"
	AccountKindOrganization AccountKind = "organization"
)

// AccountKinds lists every supported kind in a stable order.
var AccountKinds = []AccountKind{
	AccountKindCandidate,
	AccountKindProfessional,
	AccountKindOrganization,
}

// ParseAccountKind maps a caller-declared kind token to an AccountKind.
func ParseAccountKind(s string) (AccountKind, error) {
	kind := AccountKind(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range AccountKinds {
		if k == kind {
			return k, nil
		}
	}
	return "", ErrInvalidAccountKind
}

// AuthMode defines which credential paths an account supports.
type AuthMode string

const (
	AuthModeFederated AuthMode = "federated"
	AuthModeLocal     AuthMode = "local"
	AuthModeBoth      AuthMode = "both"
)

// Account is the credential record of one account within its kind partition.
// Profile fields live in the same document/row but are owned by the profile store.
type Account struct {
	ID                 string      `bson:"_id" json:"id"`
	Kind               AccountKind `bson:"-" json:"accountKind"`
	Email              string      `bson:"email" json:"email"`
	DisplayName        string      `bson:"display_name,omitempty" json:"displayName,omitempty"`
	PictureURL         string      `bson:"picture_url,omitempty" json:"pictureUrl,omitempty"`
	ExternalIdentityID string      `bson:"external_identity_id,omitempty" json:"-"`
	PasswordHash       string      `bson:"password_hash,omitempty" json:"-"`
	AuthMode           AuthMode    `bson:"auth_mode,omitempty" json:"authMode,omitempty"`
	EmailVerified      bool        `bson:"email_verified" json:"emailVerified"`
	LastLoginAt        *time.Time  `bson:"last_login_at,omitempty" json:"lastLoginAt,omitempty"`
	CreatedAt          time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time   `bson:"updated_at" json:"updatedAt"`
}

func (a *Account) HasPassword() bool { return a.PasswordHash != "" }

func (a *Account) HasExternalIdentity() bool { return a.ExternalIdentityID != "" }

// DeriveAuthMode returns the auth mode implied by the credentials present on
// the account. Credentials are never removed by this subsystem, so the derived
// mode can only widen over the account lifetime.
func (a *Account) DeriveAuthMode() AuthMode {
	switch {
	case a.HasPassword() && a.HasExternalIdentity():
		return AuthModeBoth
	case a.HasPassword():
		return AuthModeLocal
	case a.HasExternalIdentity():
		return AuthModeFederated
	default:
		return ""
	}
}

// MarkLogin stamps a successful authentication.
func (a *Account) MarkLogin(now time.Time) {
	t := now.UTC()
	a.LastLoginAt = &t
}

// NormalizeEmail lower-cases and trims an email for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ExternalIdentity holds the facts extracted from a verified identity assertion.
type ExternalIdentity struct {
	ExternalID    string `json:"externalId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl"`
	EmailVerified bool   `json:"emailVerified"`
}
