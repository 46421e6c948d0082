package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/utafrali/auth-service/internal/domain"
	"github.com/utafrali/auth-service/internal/repository"
	"github.com/utafrali/auth-service/pkg/database"
	apperrors "github.com/utafrali/auth-service/pkg/errors"
)

// CollectionName is the collection holding user documents.
const CollectionName = "users"

var _ repository.UserRepository = (*UserRepository)(nil)

// collection is the subset of *mongo.Collection the repository uses.
type collection interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	ReplaceOne(ctx context.Context, filter, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error)
}

// userDocument is the stored shape of a user.
type userDocument struct {
	ID           string     `bson:"_id"`
	Name         string     `bson:"name"`
	Email        string     `bson:"email"`
	PasswordHash string     `bson:"password"`
	IsVerified   bool       `bson:"isVerified"`
	Role         string     `bson:"roles"`
	LastLogin    *time.Time `bson:"lastLogin,omitempty"`
	CreatedAt    time.Time  `bson:"createdAt"`
	UpdatedAt    time.Time  `bson:"updatedAt"`
}

func toDocument(u *domain.User) userDocument {
	return userDocument{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		IsVerified:   u.IsVerified,
		Role:         u.Role,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDocument) toDomain() *domain.User {
	u := &domain.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		IsVerified:   d.IsVerified,
		Role:         d.Role,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if d.LastLogin != nil {
		u.RecordLogin(*d.LastLogin)
	}
	return u
}

// UserRepository implements repository.UserRepository on a MongoDB collection.
type UserRepository struct {
	coll   collection
	hasher repository.PasswordHasher
	now    func() time.Time
}

// NewUserRepository creates a MongoDB-backed user repository over db.users.
func NewUserRepository(db *mongo.Database, hasher repository.PasswordHasher) *UserRepository {
	return newUserRepository(db.Collection(CollectionName), hasher)
}

func newUserRepository(coll collection, hasher repository.PasswordHasher) *UserRepository {
	return &UserRepository{coll: coll, hasher: hasher, now: time.Now}
}

// EnsureIndexes creates the unique email index. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(CollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("email_unique"),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}
	return nil
}

// Create inserts a new unverified user.
func (r *UserRepository) Create(ctx context.Context, name, email, password string) (_ *domain.User, err error) {
	u := domain.NewUser(name, email, password)
	if err := repository.PreparePassword(u, r.hasher); err != nil {
		return nil, err
	}
	u.ID = uuid.NewString()
	u.CreatedAt = r.now().UTC()
	u.UpdatedAt = u.CreatedAt

	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "users.insert", "insertOne users")
	defer func() { end(err) }()

	if _, err = r.coll.InsertOne(ctx, toDocument(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.DuplicateEmail()
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// FindByID retrieves a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "users.find_by_id", bson.D{{Key: "_id", Value: id}})
}

// FindByEmail retrieves a user by normalized email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "users.find_by_email", bson.D{{Key: "email", Value: domain.NormalizeEmail(email)}})
}

// Save replaces the stored document with u and bumps updatedAt.
func (r *UserRepository) Save(ctx context.Context, u *domain.User) (err error) {
	if err := repository.CheckRole(u); err != nil {
		return err
	}
	if err := repository.PreparePassword(u, r.hasher); err != nil {
		return err
	}
	u.Name = domain.NormalizeName(u.Name)
	u.Email = domain.NormalizeEmail(u.Email)
	u.UpdatedAt = r.now().UTC()

	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "users.replace", "replaceOne users")
	defer func() { end(err) }()

	res, err := r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: u.ID}}, toDocument(u))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.DuplicateEmail()
		}
		return fmt.Errorf("replace user: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("User")
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, operation string, filter bson.D) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, operation, "findOne users")
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var doc userDocument
	if err = r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("User")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}
