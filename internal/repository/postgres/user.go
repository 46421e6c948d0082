package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/auth-service/internal/domain"
	"github.com/utafrali/auth-service/internal/repository"
	"github.com/utafrali/auth-service/pkg/database"
	apperrors "github.com/utafrali/auth-service/pkg/errors"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, password_hash, is_verified, role, last_login, created_at, updated_at`

var _ repository.UserRepository = (*UserRepository)(nil)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db     database.DBTX
	hasher repository.PasswordHasher
	now    func() time.Time
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX, hasher repository.PasswordHasher) *UserRepository {
	return &UserRepository{db: db, hasher: hasher, now: time.Now}
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

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "users.insert", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.IsVerified,
		u.Role,
		u.LastLogin,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.DuplicateEmail()
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

// FindByID retrieves a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(ctx, "users.find_by_id", query, id)
}

// FindByEmail retrieves a user by normalized email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(ctx, "users.find_by_email", query, domain.NormalizeEmail(email))
}

// Save updates an existing user and bumps updated_at.
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

	query := `
		UPDATE users
		SET name = $1, email = $2, password_hash = $3, is_verified = $4,
		    role = $5, last_login = $6, updated_at = $7
		WHERE id = $8`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "users.update", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query,
		u.Name,
		u.Email,
		u.PasswordHash,
		u.IsVerified,
		u.Role,
		u.LastLogin,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.DuplicateEmail()
		}
		return fmt.Errorf("update user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("User")
	}

	return nil
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, operation, query string, args ...any) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, operation, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var u domain.User
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.IsVerified,
		&u.Role,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("User")
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

// isUniqueViolation checks for SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return err != nil && strings.Contains(err.Error(), uniqueViolation)
}
