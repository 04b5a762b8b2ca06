package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/seatledger/pkg/domain"
)

const userColumns = `id, name, email, password_hash, is_active, roles, metadata, created_at, updated_at`

// UsersRepository handles user persistence.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// Create creates a new user. A duplicate email yields domain.ErrEmailTaken.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	metadata, err := marshalMetadata(user.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, is_active, roles, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, user.IsActive,
		pq.Array(user.Roles), metadata, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err, "users_email_key") {
		return domain.ErrEmailTaken
	}
	return err
}

// GetByID retrieves a user by ID.
func (r *UsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves a user by email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.getOne(ctx, query, email)
}

// Update replaces the mutable fields of a user.
func (r *UsersRepository) Update(ctx context.Context, user *domain.User) error {
	metadata, err := marshalMetadata(user.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET name = $2, email = $3, password_hash = $4, is_active = $5, roles = $6,
		    metadata = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, user.IsActive,
		pq.Array(user.Roles), metadata, user.UpdatedAt,
	)
	if isUniqueViolation(err, "users_email_key") {
		return domain.ErrEmailTaken
	}
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List returns users matching the filter ordered by creation time.
func (r *UsersRepository) List(ctx context.Context, filter domain.UserFilter) ([]*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1::boolean IS NULL OR is_active = $1)
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, nullableBool(filter.Active))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UsersRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var (
		roles    pq.StringArray
		metadata []byte
	)
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.IsActive,
		&roles, &metadata, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Roles = []string(roles)
	if user.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, err
	}
	return user, nil
}
