package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantd/internal/models"
	"github.com/wolfeidau/tenantd/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoErrNamespaceExists is the server error code returned when creating a
// collection that already exists.
const mongoErrNamespaceExists = 48

// TenantStoreConfig holds configuration for the MongoDB tenant store.
type TenantStoreConfig struct {
	// URI is the MongoDB connection string.
	URI string

	// Database is the master database holding organization and admin records
	// as well as the per-tenant collections.
	// Default: "MasterDB"
	Database string

	// OrgCollection is the master collection holding organization records.
	// Default: "organizations"
	OrgCollection string

	// AdminCollection is the master collection holding admin records.
	// Default: "admin_users"
	AdminCollection string

	// QueryTimeoutSeconds is the maximum time a store call can run before it
	// fails with store.ErrStoreUnavailable.
	// Default: 10 seconds
	QueryTimeoutSeconds int32
}

// Validate checks that the configuration is valid.
func (c *TenantStoreConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("connection URI is required")
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *TenantStoreConfig) ApplyDefaults() {
	if c.Database == "" {
		c.Database = "MasterDB"
	}
	if c.OrgCollection == "" {
		c.OrgCollection = "organizations"
	}
	if c.AdminCollection == "" {
		c.AdminCollection = "admin_users"
	}
	if c.QueryTimeoutSeconds == 0 {
		c.QueryTimeoutSeconds = 10
	}
}

var _ store.TenantStore = (*TenantStore)(nil)

// TenantStore implements store.TenantStore using MongoDB. Organization and
// admin records live in two master collections; tenant partitions are
// dynamically created collections in the same database.
type TenantStore struct {
	client       *mongo.Client
	db           *mongo.Database
	orgs         *mongo.Collection
	admins       *mongo.Collection
	queryTimeout time.Duration
}

// organizationDoc is the BSON shape of an organization record. IDs are stored
// as canonical UUID strings.
type organizationDoc struct {
	OrgID          string    `bson:"_id"`
	Name           string    `bson:"organization_name"`
	CollectionName string    `bson:"collection_name"`
	AdminID        string    `bson:"admin_user_id"`
	IsActive       bool      `bson:"is_active"`
	CreatedAt      time.Time `bson:"created_at"`
}

type adminDoc struct {
	AdminID      string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	OrgID        *string   `bson:"organization_id"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// NewTenantStore connects to MongoDB, verifies connectivity, and ensures the
// unique indexes on the master collections.
func NewTenantStore(ctx context.Context, cfg *TenantStoreConfig) (*TenantStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store config is required")
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)

	s := &TenantStore{
		client:       client,
		db:           db,
		orgs:         db.Collection(cfg.OrgCollection),
		admins:       db.Collection(cfg.AdminCollection),
		queryTimeout: time.Duration(cfg.QueryTimeoutSeconds) * time.Second,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ensure indexes: %w", err)
	}

	return s, nil
}

// ensureIndexes declares the unique indexes that back the DuplicateKey error
// contract.
func (s *TenantStore) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	_, err := s.orgs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "organization_name", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "collection_name", Value: 1}}, Options: unique},
	})
	if err != nil {
		return err
	}

	_, err = s.admins.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: unique,
	})
	return err
}

// opCtx bounds a single store call with the configured query timeout.
func (s *TenantStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.queryTimeout)
}

// mapMongoError maps driver errors to sentinel errors. Timeouts and network
// failures surface as store.ErrStoreUnavailable.
func mapMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return fmt.Errorf("%w: %s", store.ErrStoreUnavailable, err)
	}
	return err
}

// FindOrganization retrieves an organization by name.
func (s *TenantStore) FindOrganization(ctx context.Context, name string) (*models.Organization, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc organizationDoc
	err := s.orgs.FindOne(ctx, bson.M{"organization_name": name}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, mapMongoError(err)
	}

	return doc.toModel()
}

// FindAdmin retrieves an admin by email.
func (s *TenantStore) FindAdmin(ctx context.Context, email string) (*models.Admin, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var doc adminDoc
	err := s.admins.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrAdminNotFound
		}
		return nil, mapMongoError(err)
	}

	return doc.toModel()
}

// InsertOrganization creates a new organization record.
func (s *TenantStore) InsertOrganization(ctx context.Context, org *models.Organization) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	doc := organizationDoc{
		OrgID:          org.OrgID.String(),
		Name:           org.Name,
		CollectionName: org.CollectionName,
		AdminID:        org.AdminID.String(),
		IsActive:       org.IsActive,
		CreatedAt:      org.CreatedAt,
	}

	if _, err := s.orgs.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrOrganizationExists
		}
		return mapMongoError(err)
	}

	log.Debug().
		Str("org_id", doc.OrgID).
		Str("name", org.Name).
		Msg("Inserted organization")

	return nil
}

// InsertAdmin creates a new admin record.
func (s *TenantStore) InsertAdmin(ctx context.Context, admin *models.Admin) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	doc := adminDoc{
		AdminID:      admin.AdminID.String(),
		Email:        admin.Email,
		PasswordHash: admin.PasswordHash,
		CreatedAt:    admin.CreatedAt,
		UpdatedAt:    admin.UpdatedAt,
	}
	if admin.OrgID != nil {
		orgID := admin.OrgID.String()
		doc.OrgID = &orgID
	}

	if _, err := s.admins.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateEmail
		}
		return mapMongoError(err)
	}

	log.Debug().
		Str("admin_id", doc.AdminID).
		Msg("Inserted admin")

	return nil
}

// UpdateAdmin applies a partial update to an admin record.
func (s *TenantStore) UpdateAdmin(ctx context.Context, adminID uuid.UUID, update store.AdminUpdate) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	set := bson.M{"updated_at": time.Now()}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.PasswordHash != nil {
		set["password_hash"] = *update.PasswordHash
	}
	if update.OrgID != nil {
		set["organization_id"] = update.OrgID.String()
	}

	result, err := s.admins.UpdateOne(ctx, bson.M{"_id": adminID.String()}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateEmail
		}
		return mapMongoError(err)
	}

	if result.MatchedCount == 0 {
		return store.ErrAdminNotFound
	}

	return nil
}

// DeleteOrganization deletes an organization record by ID.
func (s *TenantStore) DeleteOrganization(ctx context.Context, orgID uuid.UUID) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.orgs.DeleteOne(ctx, bson.M{"_id": orgID.String()})
	if err != nil {
		return mapMongoError(err)
	}

	if result.DeletedCount == 0 {
		return store.ErrOrganizationNotFound
	}

	log.Info().
		Str("org_id", orgID.String()).
		Msg("Deleted organization")

	return nil
}

// DeleteAdmin deletes an admin record by ID.
func (s *TenantStore) DeleteAdmin(ctx context.Context, adminID uuid.UUID) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.admins.DeleteOne(ctx, bson.M{"_id": adminID.String()})
	if err != nil {
		return mapMongoError(err)
	}

	if result.DeletedCount == 0 {
		return store.ErrAdminNotFound
	}

	return nil
}

// CreatePartition creates the named tenant collection.
func (s *TenantStore) CreatePartition(ctx context.Context, name string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.db.CreateCollection(ctx, name); err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Code == mongoErrNamespaceExists {
			return store.ErrPartitionExists
		}
		return mapMongoError(err)
	}

	log.Info().Str("partition", name).Msg("Created tenant partition")

	return nil
}

// DropPartition drops the named tenant collection. Dropping a missing
// collection is a no-op at the server.
func (s *TenantStore) DropPartition(ctx context.Context, name string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if err := s.db.Collection(name).Drop(ctx); err != nil {
		return mapMongoError(err)
	}

	log.Info().Str("partition", name).Msg("Dropped tenant partition")

	return nil
}

// Close disconnects from MongoDB.
func (s *TenantStore) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)
	defer cancel()

	if err := s.client.Disconnect(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to disconnect from mongodb")
	}
}

func (d *organizationDoc) toModel() (*models.Organization, error) {
	orgID, err := uuid.Parse(d.OrgID)
	if err != nil {
		return nil, fmt.Errorf("corrupt organization id %q: %w", d.OrgID, err)
	}
	adminID, err := uuid.Parse(d.AdminID)
	if err != nil {
		return nil, fmt.Errorf("corrupt admin id %q: %w", d.AdminID, err)
	}

	return &models.Organization{
		OrgID:          orgID,
		Name:           d.Name,
		CollectionName: d.CollectionName,
		AdminID:        adminID,
		IsActive:       d.IsActive,
		CreatedAt:      d.CreatedAt,
	}, nil
}

func (d *adminDoc) toModel() (*models.Admin, error) {
	adminID, err := uuid.Parse(d.AdminID)
	if err != nil {
		return nil, fmt.Errorf("corrupt admin id %q: %w", d.AdminID, err)
	}

	admin := &models.Admin{
		AdminID:      adminID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}

	if d.OrgID != nil {
		orgID, err := uuid.Parse(*d.OrgID)
		if err != nil {
			return nil, fmt.Errorf("corrupt organization id %q: %w", *d.OrgID, err)
		}
		admin.OrgID = &orgID
	}

	return admin, nil
}
