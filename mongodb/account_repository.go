package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pilab-dev/talent-auth/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// AccountRepository implements domain.AccountRepository over one collection.
// Documents are shared with the profile store; this repository only writes
// the auth fields.
type AccountRepository struct {
	kind     domain.AccountKind
	accounts *mongo.Collection
}

// NewAccountRepository creates the repository for kind and ensures its indexes.
func NewAccountRepository(ctx context.Context, db *mongo.Database, kind domain.AccountKind) (*AccountRepository, error) {
	name, err := CollectionFor(kind)
	if err != nil {
		return nil, err
	}
	repo := &AccountRepository{
		kind:     kind,
		accounts: db.Collection(name),
	}
	// Uniqueness is enforced by these indexes, so failing to build them is fatal.
	if err := repo.createIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *AccountRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_email").SetUnique(true),
		},
		{
			// Sparse: accounts without a federated identity do not take part.
			Keys:    bson.D{{Key: "external_identity_id", Value: 1}},
			Options: options.Index().SetName("uniq_external_identity_id").SetUnique(true).SetSparse(true),
		},
	}

	_, err := r.accounts.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", r.accounts.Name(), err)
	}
	log.Info().Msgf("Indexes for %s collection ensured.", r.accounts.Name())
	return nil
}

func (r *AccountRepository) Kind() domain.AccountKind { return r.kind }

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *AccountRepository) FindByExternalID(ctx context.Context, externalID string) (*domain.Account, error) {
	if externalID == "" {
		return nil, domain.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"external_identity_id": externalID})
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var account domain.Account
	err := r.accounts.FindOne(ctx, filter).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		log.Error().Err(err).Str("collection", r.accounts.Name()).Msg("Error finding account in MongoDB")
		return nil, err
	}
	account.Kind = r.kind
	return &account, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	account.Email = domain.NormalizeEmail(account.Email)
	account.Kind = r.kind

	_, err := r.accounts.InsertOne(ctx, account)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAccountExists
		}
		log.Error().Err(err).Str("collection", r.accounts.Name()).Msg("Error creating account in MongoDB")
		return err
	}
	return nil
}

func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	if account.ID == "" {
		return errors.New("account ID is required for update")
	}
	account.UpdatedAt = time.Now().UTC()

	set := bson.M{
		"auth_mode":      account.AuthMode,
		"email_verified": account.EmailVerified,
		"updated_at":     account.UpdatedAt,
	}
	// Credentials are only ever added, so empty values are never written.
	if account.ExternalIdentityID != "" {
		set["external_identity_id"] = account.ExternalIdentityID
	}
	if account.PasswordHash != "" {
		set["password_hash"] = account.PasswordHash
	}
	if account.LastLoginAt != nil {
		set["last_login_at"] = account.LastLoginAt
	}
	if account.DisplayName != "" {
		set["display_name"] = account.DisplayName
	}
	if account.PictureURL != "" {
		set["picture_url"] = account.PictureURL
	}

	result, err := r.accounts.UpdateOne(ctx, bson.M{"_id": account.ID}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAccountExists
		}
		log.Error().Err(err).Str("accountID", account.ID).Msg("Error updating account in MongoDB")
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

var _ domain.AccountRepository = (*AccountRepository)(nil)
