package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Its-donkey/storefront/internal/ui/model"
	"github.com/Its-donkey/storefront/logging"
)

// Collection names used by MongoStore.
const (
	ProfilesCollection = "profiles"
	AccountsCollection = "accounts"
	AuditCollection    = "audit_log"
)

const defaultOperationTimeout = 5 * time.Second

// MongoStore persists records in a MongoDB database.
type MongoStore struct {
	db      *mongo.Database
	timeout time.Duration
	logger  *logging.Logger
	now     func() time.Time
}

// MongoOptions configures ConnectMongo.
type MongoOptions struct {
	URI              string
	Database         string
	AppName          string
	OperationTimeout time.Duration
	Logger           *logging.Logger
}

// ConnectMongo dials MongoDB, verifies the connection and ensures indexes.
func ConnectMongo(ctx context.Context, opts MongoOptions) (*MongoStore, *mongo.Client, error) {
	if strings.TrimSpace(opts.URI) == "" {
		return nil, nil, errors.New("profiles: mongo uri is required")
	}
	if strings.TrimSpace(opts.Database) == "" {
		return nil, nil, errors.New("profiles: mongo database is required")
	}
	clientOptions := options.Client().ApplyURI(opts.URI)
	if opts.AppName != "" {
		clientOptions.SetAppName(opts.AppName)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	store := NewMongoStore(client.Database(opts.Database), opts.OperationTimeout, opts.Logger)
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return store, client, nil
}

// NewMongoStore wraps an existing database handle.
func NewMongoStore(db *mongo.Database, timeout time.Duration, logger *logging.Logger) *MongoStore {
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &MongoStore{
		db:      db,
		timeout: timeout,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the unique identity index on profiles and lookup indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.Collection(ProfilesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "uid", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("profiles_uid_unique"),
	})
	if err != nil {
		return fmt.Errorf("create profiles index: %w", err)
	}
	_, err = s.db.Collection(AccountsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "profile_id", Value: 1}},
		Options: options.Index().SetName("accounts_profile_id"),
	})
	if err != nil {
		return fmt.Errorf("create accounts index: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByUID(ctx context.Context, uid string) (model.Profile, error) {
	if strings.TrimSpace(uid) == "" {
		return model.Profile{}, fmt.Errorf("%w: uid is required", ErrInvalid)
	}
	return s.findProfile(ctx, bson.D{{Key: "uid", Value: uid}})
}

func (s *MongoStore) Get(ctx context.Context, id string) (model.Profile, error) {
	if strings.TrimSpace(id) == "" {
		return model.Profile{}, fmt.Errorf("%w: id is required", ErrInvalid)
	}
	return s.findProfile(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *MongoStore) findProfile(ctx context.Context, filter bson.D) (model.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var profile model.Profile
	startTime := time.Now()
	err := s.db.Collection(ProfilesCollection).FindOne(ctx, filter).Decode(&profile)
	s.logger.Debug(logging.CategoryProfiles, "profile query", map[string]any{"cost": time.Since(startTime).String()})
	if err != nil {
		return model.Profile{}, mapMongoError(err)
	}
	return profile, nil
}

func (s *MongoStore) CreateProfile(ctx context.Context, profile model.Profile) (model.Profile, error) {
	if strings.TrimSpace(profile.UID) == "" {
		return model.Profile{}, fmt.Errorf("%w: uid is required", ErrInvalid)
	}
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = s.now()
	}
	if err := s.insert(ctx, ProfilesCollection, profile); err != nil {
		return model.Profile{}, err
	}
	s.logger.Info(logging.CategoryProfiles, "profile created", map[string]any{"id": profile.ID, "uid": profile.UID})
	return profile, nil
}

func (s *MongoStore) DeleteProfile(ctx context.Context, id string) error {
	return s.deleteByID(ctx, ProfilesCollection, id)
}

func (s *MongoStore) CreateAccount(ctx context.Context, account model.Account) (model.Account, error) {
	if account.ProfileID == "" {
		return model.Account{}, fmt.Errorf("%w: profile id is required", ErrInvalid)
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.now()
	}
	if err := s.insert(ctx, AccountsCollection, account); err != nil {
		return model.Account{}, err
	}
	return account, nil
}

func (s *MongoStore) DeleteAccount(ctx context.Context, id string) error {
	return s.deleteByID(ctx, AccountsCollection, id)
}

func (s *MongoStore) AppendAudit(ctx context.Context, entry model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	return s.insert(ctx, AuditCollection, entry)
}

func (s *MongoStore) insert(ctx context.Context, collection string, doc any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return mapMongoError(err)
	}
	return nil
}

func (s *MongoStore) deleteByID(ctx context.Context, collection, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.db.Collection(collection).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return mapMongoError(err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	s.logger.Info(logging.CategoryProfiles, "record deleted", map[string]any{"collection": collection, "id": id})
	return nil
}

func mapMongoError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return fmt.Errorf("database operation failed: %w", err)
	}
}
